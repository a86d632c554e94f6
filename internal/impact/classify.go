// Package impact classifies how a change affects the observed behavior of
// each feature.
//
// A snapshot is any structured value (decoded YAML or JSON) describing what
// a feature returns or does. Classification compares the before and after
// snapshots structurally:
//
//	absent  -> absent    none
//	equal   -> equal     none, or refactored when the caller says the path changed
//	present -> absent    breaking
//	absent  -> present   new
//	removed key or element, or a kind change     breaking
//	changed leaf                                 changed
//	added keys or elements only                  new
//
// Breaking wins over changed, which wins over new.
package impact

import (
	"fmt"
	"strconv"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// Classify compares two snapshots. A nil snapshot means the behavior is
// absent on that side. Differences are listed in key order.
func Classify(before, after ir.IRValue, refactored bool) (ir.ImpactCategory, []string) {
	switch {
	case before == nil && after == nil:
		return ir.ImpactNone, nil
	case before == nil:
		return ir.ImpactNew, []string{"added $"}
	case after == nil:
		return ir.ImpactBreaking, []string{"removed $"}
	}

	var d differ
	d.walk("$", before, after)
	switch {
	case d.breaking:
		return ir.ImpactBreaking, d.out
	case d.changed:
		return ir.ImpactChanged, d.out
	case d.added:
		return ir.ImpactNew, d.out
	case refactored:
		return ir.ImpactRefactored, nil
	default:
		return ir.ImpactNone, nil
	}
}

type differ struct {
	out      []string
	breaking bool
	changed  bool
	added    bool
}

func (d *differ) walk(path string, a, b ir.IRValue) {
	ka, kb := ir.KindOf(a), ir.KindOf(b)
	if ka != kb {
		d.breaking = true
		d.out = append(d.out, fmt.Sprintf("kind %s: %s -> %s", path, ka, kb))
		return
	}

	switch av := a.(type) {
	case ir.IRObject:
		bv := b.(ir.IRObject)
		for _, k := range av.SortedKeys() {
			be, ok := bv[k]
			if !ok {
				d.breaking = true
				d.out = append(d.out, "removed "+childPath(path, k))
				continue
			}
			d.walk(childPath(path, k), av[k], be)
		}
		for _, k := range bv.SortedKeys() {
			if _, ok := av[k]; !ok {
				d.added = true
				d.out = append(d.out, "added "+childPath(path, k))
			}
		}
	case ir.IRArray:
		bv := b.(ir.IRArray)
		n := min(len(av), len(bv))
		for i := 0; i < n; i++ {
			d.walk(path+"["+strconv.Itoa(i)+"]", av[i], bv[i])
		}
		for i := n; i < len(av); i++ {
			d.breaking = true
			d.out = append(d.out, fmt.Sprintf("removed %s[%d]", path, i))
		}
		for i := n; i < len(bv); i++ {
			d.added = true
			d.out = append(d.out, fmt.Sprintf("added %s[%d]", path, i))
		}
	default:
		if !ir.Equal(a, b) {
			d.changed = true
			d.out = append(d.out, fmt.Sprintf("changed %s: %s -> %s", path, render(a), render(b)))
		}
	}
}

func childPath(path, key string) string {
	return path + "." + key
}

func render(v ir.IRValue) string {
	out, err := ir.MarshalSnapshot(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return out
}
