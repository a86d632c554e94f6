package ledger

import (
	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// Counts tallies scenarios by coverage state. Covered counts passed and
// skipped-with-reason; Skipped counts only skips without a reason, so
// Total == Covered + Pending + Failed + Skipped always holds.
type Counts struct {
	Total   int `json:"total"`
	Covered int `json:"covered"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func (c *Counts) add(e ir.LedgerEntry) {
	c.Total++
	switch {
	case e.Covered():
		c.Covered++
	case e.Status == ir.StatusFailed:
		c.Failed++
	case e.Status == ir.StatusSkipped:
		c.Skipped++
	default:
		c.Pending++
	}
}

// Ratio returns Covered/Total, or 1 when there is nothing to cover.
func (c Counts) Ratio() float64 {
	if c.Total == 0 {
		return 1
	}
	return float64(c.Covered) / float64(c.Total)
}

// Completion summarizes the active run. ByCategory always holds every tier.
type Completion struct {
	Counts
	ByCategory map[ir.Tier]Counts `json:"by_category"`
}

// Completion recomputes coverage of the active run from the current
// entries. Nothing is cached between calls.
func (l *Ledger) Completion() Completion {
	c := Completion{ByCategory: make(map[ir.Tier]Counts, len(ir.Tiers))}
	for _, tier := range ir.Tiers {
		c.ByCategory[tier] = Counts{}
	}

	for _, e := range l.Entries() {
		c.add(e)
		tier := ir.MoreSevere(e.Scenario.Priority, ir.P3)
		tc := c.ByCategory[tier]
		tc.add(e)
		c.ByCategory[tier] = tc
	}

	for tier, tc := range c.ByCategory {
		scenariosByState.WithLabelValues(string(tier), "covered").Set(float64(tc.Covered))
		scenariosByState.WithLabelValues(string(tier), "pending").Set(float64(tc.Pending))
		scenariosByState.WithLabelValues(string(tier), "failed").Set(float64(tc.Failed))
		scenariosByState.WithLabelValues(string(tier), "skipped").Set(float64(tc.Skipped))
	}
	return c
}
