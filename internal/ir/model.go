package ir

import "fmt"

// ValueKind classifies a dimension value.
type ValueKind string

const (
	KindBoundary    ValueKind = "boundary"
	KindEquivalence ValueKind = "equivalence"
	KindWildcard    ValueKind = "wildcard"
)

// ValidValueKinds defines allowed value kinds.
var ValidValueKinds = map[ValueKind]bool{
	KindBoundary:    true,
	KindEquivalence: true,
	KindWildcard:    true,
}

// Wildcard is the printed and hashed form of a wildcard ("don't care")
// assignment, regardless of the id the dimension declares for it.
const Wildcard = "*"

// Value is one discrete value or equivalence class of a dimension.
type Value struct {
	ID          string       `json:"id"`
	Kind        ValueKind    `json:"kind"`
	Description string       `json:"description,omitempty"`
	Nominal     bool         `json:"nominal,omitempty"` // happy-path value
	Failure     bool         `json:"failure,omitempty"` // false/failure branch of the dimension
	Factors     FactorScores `json:"factors,omitempty"`
}

// IsWildcard reports whether v matches any value on its axis.
func (v Value) IsWildcard() bool {
	return v.Kind == KindWildcard
}

// Dimension is one axis of variation with its ordered values.
type Dimension struct {
	ID       string  `json:"id"`
	Label    string  `json:"label,omitempty"`
	Values   []Value `json:"values"`
	Optional bool    `json:"optional,omitempty"` // zero values allowed
}

// Concrete returns the non-wildcard values in declaration order.
func (d Dimension) Concrete() []Value {
	out := make([]Value, 0, len(d.Values))
	for _, v := range d.Values {
		if !v.IsWildcard() {
			out = append(out, v)
		}
	}
	return out
}

// WildcardValue returns the declared wildcard, or an implicit one.
func (d Dimension) WildcardValue() Value {
	for _, v := range d.Values {
		if v.IsWildcard() {
			return v
		}
	}
	return Value{ID: Wildcard, Kind: KindWildcard, Description: "any " + d.ID}
}

// NominalValue returns the happy-path value: the one flagged nominal,
// else the first equivalence value, else the first concrete value.
func (d Dimension) NominalValue() (Value, bool) {
	concrete := d.Concrete()
	for _, v := range concrete {
		if v.Nominal {
			return v, true
		}
	}
	for _, v := range concrete {
		if v.Kind == KindEquivalence {
			return v, true
		}
	}
	if len(concrete) > 0 {
		return concrete[0], true
	}
	return Value{}, false
}

// Value looks up a value by id. The wildcard form "*" resolves to the
// dimension's wildcard value.
func (d Dimension) Value(id string) (Value, bool) {
	if id == Wildcard {
		return d.WildcardValue(), true
	}
	for _, v := range d.Values {
		if v.ID == id {
			return v, true
		}
	}
	return Value{}, false
}

// ValueRef names a value within a dimension.
type ValueRef struct {
	Dimension string `json:"dimension"`
	Value     string `json:"value"`
}

func (r ValueRef) String() string {
	return fmt.Sprintf("%s=%s", r.Dimension, r.Value)
}

// GuardRule declares that a value excludes a set of other values.
// Declarations may be one-sided; the compiler closes them.
type GuardRule struct {
	DimensionID string     `json:"dimension_id"`
	ValueID     string     `json:"value_id"`
	Excludes    []ValueRef `json:"excludes"`
}

// Source returns the guarded value as a ValueRef.
func (g GuardRule) Source() ValueRef {
	return ValueRef{Dimension: g.DimensionID, Value: g.ValueID}
}

// Branch is an atomic decision outcome a scenario set must cover.
type Branch struct {
	ID            string            `json:"id"`
	Condition     string            `json:"condition,omitempty"` // free text
	When          map[string]string `json:"when,omitempty"`      // dimension -> value predicate
	TruePriority  Tier              `json:"true_priority"`
	FalsePriority Tier              `json:"false_priority"`
}

// Selector is a partial assignment used to pick scenarios (dimension -> value).
type Selector map[string]string

// Model is a loaded dimension model for one change-set.
type Model struct {
	Name       string      `json:"name"`
	Dimensions []Dimension `json:"dimensions"`
	Guards     []GuardRule `json:"guards,omitempty"`
	Branches   []Branch    `json:"branches,omitempty"`
	Critical   []Selector  `json:"critical,omitempty"` // P1 selection for priority-bucketed runs
}

// Dimension looks up a dimension by id.
func (m *Model) Dimension(id string) (Dimension, bool) {
	for _, d := range m.Dimensions {
		if d.ID == id {
			return d, true
		}
	}
	return Dimension{}, false
}

// DimensionIndex returns the declaration index of a dimension, or -1.
func (m *Model) DimensionIndex(id string) int {
	for i, d := range m.Dimensions {
		if d.ID == id {
			return i
		}
	}
	return -1
}
