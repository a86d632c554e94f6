package ir

import "fmt"

// Tier is a priority tier. P0 is the most severe.
type Tier string

const (
	P0 Tier = "P0"
	P1 Tier = "P1"
	P2 Tier = "P2"
	P3 Tier = "P3"
)

// Tiers lists every tier from most to least severe.
var Tiers = []Tier{P0, P1, P2, P3}

// Rank orders tiers: 0 for P0 up to 3 for P3. Unknown or empty tiers rank
// as P3 so they can never raise severity.
func (t Tier) Rank() int {
	switch t {
	case P0:
		return 0
	case P1:
		return 1
	case P2:
		return 2
	default:
		return 3
	}
}

// MoreSevere returns the more severe of two tiers.
func MoreSevere(a, b Tier) Tier {
	if b.Rank() < a.Rank() {
		return normalizeTier(b)
	}
	return normalizeTier(a)
}

func normalizeTier(t Tier) Tier {
	return Tiers[t.Rank()]
}

// ParseTier parses "P0".."P3". The empty string is P3.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case P0, P1, P2, P3:
		return Tier(s), nil
	case "":
		return P3, nil
	default:
		return "", fmt.Errorf("invalid priority tier %q: must be one of P0, P1, P2, P3", s)
	}
}

// Severity is a factor level on a common scale. SeverityCritical maps to
// P0, SeverityHigh to P1, SeverityLow to P2, SeverityNone to P3.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityHigh
	SeverityCritical
)

// Factor names the four factor axes.
type Factor string

const (
	FactorImpact    Factor = "impact"
	FactorFrequency Factor = "frequency"
	FactorDataRisk  Factor = "data_risk"
	FactorSecurity  Factor = "security"
)

// factorLevels maps each factor's level names to severities. Frequency has
// no critical level.
var factorLevels = map[Factor]map[string]Severity{
	FactorImpact: {
		"blocking": SeverityCritical,
		"major":    SeverityHigh,
		"minor":    SeverityLow,
		"cosmetic": SeverityNone,
		"none":     SeverityNone,
	},
	FactorFrequency: {
		"mostUsers": SeverityHigh,
		"someUsers": SeverityLow,
		"fewUsers":  SeverityNone,
		"none":      SeverityNone,
	},
	FactorDataRisk: {
		"loss":       SeverityCritical,
		"incorrect":  SeverityHigh,
		"incomplete": SeverityLow,
		"none":       SeverityNone,
	},
	FactorSecurity: {
		"vulnerability": SeverityCritical,
		"weakness":      SeverityHigh,
		"hardening":     SeverityLow,
		"none":          SeverityNone,
	},
}

// FactorSeverity resolves a level name for a factor. The empty level is
// SeverityNone.
func FactorSeverity(f Factor, level string) (Severity, error) {
	if level == "" {
		return SeverityNone, nil
	}
	levels, ok := factorLevels[f]
	if !ok {
		return SeverityNone, fmt.Errorf("unknown factor %q", f)
	}
	sev, ok := levels[level]
	if !ok {
		return SeverityNone, fmt.Errorf("unknown %s level %q", f, level)
	}
	return sev, nil
}

// FactorScores are the raw factor levels of a scenario or value.
type FactorScores struct {
	Impact    string `json:"impact,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	DataRisk  string `json:"data_risk,omitempty"`
	Security  string `json:"security,omitempty"`
}

// IsZero reports whether no factor is set.
func (s FactorScores) IsZero() bool {
	return s == FactorScores{}
}

// Levels returns the factor -> level pairs in a fixed order.
func (s FactorScores) Levels() []FactorLevel {
	return []FactorLevel{
		{FactorImpact, s.Impact},
		{FactorFrequency, s.Frequency},
		{FactorDataRisk, s.DataRisk},
		{FactorSecurity, s.Security},
	}
}

// Validate checks every level name.
func (s FactorScores) Validate() error {
	for _, fl := range s.Levels() {
		if _, err := FactorSeverity(fl.Factor, fl.Level); err != nil {
			return err
		}
	}
	return nil
}

// Worst merges two score sets factor by factor, keeping the more severe
// level. Unknown levels lose to known ones.
func (s FactorScores) Worst(o FactorScores) FactorScores {
	pick := func(f Factor, a, b string) string {
		sa, errA := FactorSeverity(f, a)
		sb, errB := FactorSeverity(f, b)
		switch {
		case errA != nil:
			return b
		case errB != nil:
			return a
		case sb > sa:
			return b
		default:
			return a
		}
	}
	return FactorScores{
		Impact:    pick(FactorImpact, s.Impact, o.Impact),
		Frequency: pick(FactorFrequency, s.Frequency, o.Frequency),
		DataRisk:  pick(FactorDataRisk, s.DataRisk, o.DataRisk),
		Security:  pick(FactorSecurity, s.Security, o.Security),
	}
}

// FactorLevel pairs a factor with a level name.
type FactorLevel struct {
	Factor Factor
	Level  string
}
