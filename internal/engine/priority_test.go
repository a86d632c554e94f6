package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

func TestAssignPriority_RuleTable(t *testing.T) {
	tests := []struct {
		name    string
		factors ir.FactorScores
		want    ir.Tier
	}{
		{"no factors", ir.FactorScores{}, ir.P3},
		{"blocking impact", ir.FactorScores{Impact: "blocking"}, ir.P0},
		{"vulnerability", ir.FactorScores{Security: "vulnerability"}, ir.P0},
		{"data loss", ir.FactorScores{DataRisk: "loss"}, ir.P0},
		{"major impact", ir.FactorScores{Impact: "major"}, ir.P1},
		{"most users", ir.FactorScores{Frequency: "mostUsers"}, ir.P1},
		{"incorrect data", ir.FactorScores{DataRisk: "incorrect"}, ir.P1},
		{"weakness", ir.FactorScores{Security: "weakness"}, ir.P1},
		{"minor impact", ir.FactorScores{Impact: "minor"}, ir.P2},
		{"some users", ir.FactorScores{Frequency: "someUsers"}, ir.P2},
		{"incomplete data", ir.FactorScores{DataRisk: "incomplete"}, ir.P2},
		{"hardening", ir.FactorScores{Security: "hardening"}, ir.P2},
		{"cosmetic few users", ir.FactorScores{Impact: "cosmetic", Frequency: "fewUsers"}, ir.P3},
		{"worst factor wins", ir.FactorScores{Impact: "cosmetic", Frequency: "fewUsers", Security: "vulnerability"}, ir.P0},
		{"unknown level ignored", ir.FactorScores{Impact: "apocalyptic", Frequency: "someUsers"}, ir.P2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssignPriority(tt.factors))
		})
	}
}

// Raising any single factor never lowers the tier.
func TestAssignPriority_Monotone(t *testing.T) {
	ladders := map[ir.Factor][]string{
		ir.FactorImpact:    {"", "cosmetic", "minor", "major", "blocking"},
		ir.FactorFrequency: {"", "fewUsers", "someUsers", "mostUsers"},
		ir.FactorDataRisk:  {"", "none", "incomplete", "incorrect", "loss"},
		ir.FactorSecurity:  {"", "none", "hardening", "weakness", "vulnerability"},
	}
	set := func(s ir.FactorScores, f ir.Factor, level string) ir.FactorScores {
		switch f {
		case ir.FactorImpact:
			s.Impact = level
		case ir.FactorFrequency:
			s.Frequency = level
		case ir.FactorDataRisk:
			s.DataRisk = level
		case ir.FactorSecurity:
			s.Security = level
		}
		return s
	}
	bases := []ir.FactorScores{
		{},
		{Frequency: "someUsers"},
		{Impact: "major", DataRisk: "incomplete"},
	}

	for _, base := range bases {
		for f, ladder := range ladders {
			prev := AssignPriority(set(base, f, ladder[0]))
			for _, level := range ladder[1:] {
				got := AssignPriority(set(base, f, level))
				assert.LessOrEqual(t, got.Rank(), prev.Rank(), "%s=%s over %+v", f, level, base)
				prev = got
			}
		}
	}
}

func TestAssign_MostSevereOfFactorsBranchesAndBucket(t *testing.T) {
	sc := ir.Scenario{
		Branches: []ir.BranchOutcome{
			{BranchID: "b1", Outcome: true, Priority: ir.P2},
			{BranchID: "b2", Outcome: false, Priority: ir.P3},
		},
	}
	assert.Equal(t, ir.P2, Assign(sc, ir.FactorScores{}))
	assert.Equal(t, ir.P1, Assign(sc, ir.FactorScores{Security: "weakness"}))

	sc.Bucket = ir.P0
	assert.Equal(t, ir.P0, Assign(sc, ir.FactorScores{}))
}

func TestBranchOutcomes(t *testing.T) {
	branches := []ir.Branch{
		{ID: "paid", When: map[string]string{"plan": "pro"}, TruePriority: ir.P0, FalsePriority: ir.P2},
		{ID: "free-text", Condition: "user clicks twice", TruePriority: ir.P0},
		{ID: "implicit", When: map[string]string{"plan": "free"}},
	}
	sc := ir.Scenario{Assignment: []ir.Assignment{{Dimension: "plan", Value: "pro"}}}

	assert.Equal(t, []ir.BranchOutcome{
		{BranchID: "paid", Outcome: true, Priority: ir.P0},
		{BranchID: "implicit", Outcome: false, Priority: ir.P3},
	}, branchOutcomes(sc, branches))
}

func TestScenarioFactors_WorstPerFactor(t *testing.T) {
	got := scenarioFactors([]ir.Value{
		{ID: "a", Factors: ir.FactorScores{Impact: "minor", Frequency: "mostUsers"}},
		{ID: "b", Factors: ir.FactorScores{Impact: "blocking", Frequency: "fewUsers"}},
		{ID: "c"},
	})
	assert.Equal(t, ir.FactorScores{Impact: "blocking", Frequency: "mostUsers"}, got)
}
