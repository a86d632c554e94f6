package engine

import (
	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// severityTier maps a factor severity onto a priority tier.
var severityTier = map[ir.Severity]ir.Tier{
	ir.SeverityCritical: ir.P0,
	ir.SeverityHigh:     ir.P1,
	ir.SeverityLow:      ir.P2,
	ir.SeverityNone:     ir.P3,
}

// AssignPriority applies the factor rule table. The worst factor wins:
//
//	impact=blocking, security=vulnerability or data_risk=loss  -> P0
//	any of major, mostUsers, incorrect, weakness               -> P1
//	any of minor, someUsers, incomplete, hardening             -> P2
//	otherwise                                                  -> P3
//
// Unknown levels carry no severity.
func AssignPriority(factors ir.FactorScores) ir.Tier {
	worst := ir.SeverityNone
	for _, fl := range factors.Levels() {
		sev, err := ir.FactorSeverity(fl.Factor, fl.Level)
		if err != nil {
			continue
		}
		worst = max(worst, sev)
	}
	return severityTier[worst]
}

// scenarioFactors merges the factor scores of every assigned value.
func scenarioFactors(vals []ir.Value) ir.FactorScores {
	var out ir.FactorScores
	for _, v := range vals {
		out = out.Worst(v.Factors)
	}
	return out
}

// branchOutcomes lists the side of each branch a scenario exercises.
// Branches without a when-predicate are not tied to any scenario.
func branchOutcomes(sc ir.Scenario, branches []ir.Branch) []ir.BranchOutcome {
	var out []ir.BranchOutcome
	for _, b := range branches {
		if len(b.When) == 0 {
			continue
		}
		taken := sc.Satisfies(ir.Selector(b.When))
		tier := b.FalsePriority
		if taken {
			tier = b.TruePriority
		}
		out = append(out, ir.BranchOutcome{BranchID: b.ID, Outcome: taken, Priority: ir.MoreSevere(tier, ir.P3)})
	}
	return out
}

// Assign computes a scenario's tier from the given factor scores: the most
// severe of the factor tier, every branch side the scenario exercises, and
// the bucket a priority-bucketed run placed it in.
func Assign(sc ir.Scenario, factors ir.FactorScores) ir.Tier {
	tier := AssignPriority(factors)
	for _, b := range sc.Branches {
		tier = ir.MoreSevere(tier, b.Priority)
	}
	if sc.Bucket != "" {
		tier = ir.MoreSevere(tier, sc.Bucket)
	}
	return tier
}
