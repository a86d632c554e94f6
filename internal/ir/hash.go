package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for algorithm migration.
const (
	DomainScenario = "bdt/scenario/v1"
	DomainModel    = "bdt/model/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null separator
// keeps domain and data boundaries unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ScenarioID derives a scenario id from its dimension:value pairs. Pair
// order does not matter: the pairs hash as a canonical JSON object, whose
// keys are sorted.
func ScenarioID(assign []Assignment) (string, error) {
	obj := make(IRObject, len(assign))
	for _, a := range assign {
		if _, dup := obj[a.Dimension]; dup {
			return "", fmt.Errorf("ScenarioID: dimension %q assigned twice", a.Dimension)
		}
		obj[a.Dimension] = IRString(a.Value)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ScenarioID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainScenario, canonical), nil
}

// MustScenarioID is like ScenarioID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustScenarioID(assign []Assignment) string {
	id, err := ScenarioID(assign)
	if err != nil {
		panic(err)
	}
	return id
}

// ModelHash fingerprints the identity-relevant parts of a model: dimension
// and value ids in order, and guard edges. Labels and descriptions are
// ignored so cosmetic edits keep the hash.
func ModelHash(m *Model) (string, error) {
	dims := make(IRArray, 0, len(m.Dimensions))
	for _, d := range m.Dimensions {
		vals := make(IRArray, 0, len(d.Values))
		for _, v := range d.Values {
			vals = append(vals, IRObject{"id": IRString(v.ID), "kind": IRString(string(v.Kind))})
		}
		dims = append(dims, IRObject{
			"id":       IRString(d.ID),
			"optional": IRBool(d.Optional),
			"values":   vals,
		})
	}
	guards := make(IRArray, 0, len(m.Guards))
	for _, g := range m.Guards {
		excl := make(IRArray, 0, len(g.Excludes))
		for _, e := range g.Excludes {
			excl = append(excl, IRString(e.String()))
		}
		guards = append(guards, IRObject{
			"source":   IRString(g.Source().String()),
			"excludes": excl,
		})
	}
	canonical, err := MarshalCanonical(IRObject{
		"dimensions": dims,
		"guards":     guards,
	})
	if err != nil {
		return "", fmt.Errorf("ModelHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainModel, canonical), nil
}
