// Package merge3 merges two edited documents against their common base.
// Objects and properties are matched by identity key, each difference is
// classified, and everything that cannot be auto-resolved is surfaced as a
// conflict record rather than guessed.
package merge3

import (
	"fmt"

	"github.com/TrueCyan/unityflow/pkg/document"
	"github.com/TrueCyan/unityflow/pkg/semdiff"
)

// Disposition describes the merge status of one property path.
type Disposition int

const (
	Unchanged Disposition = iota
	OursOnly
	TheirsOnly
	BothSame
	Conflict
)

func (d Disposition) String() string {
	switch d {
	case Unchanged:
		return "Unchanged"
	case OursOnly:
		return "OursOnly"
	case TheirsOnly:
		return "TheirsOnly"
	case BothSame:
		return "BothSame"
	case Conflict:
		return "Conflict"
	}
	return fmt.Sprintf("Disposition(%d)", int(d))
}

// Policy picks a side for value conflicts. Structural conflicts are never
// policy-resolved.
type Policy int

const (
	PolicyNone Policy = iota
	PolicyOurs
	PolicyTheirs
)

// PropertyConflict records a property both sides changed differently.
type PropertyConflict struct {
	ObjectKey    string          `json:"objectKey"`
	ClassName    string          `json:"className"`
	PropertyPath string          `json:"propertyPath"`
	Base         *document.Value `json:"-"`
	Ours         *document.Value `json:"-"`
	Theirs       *document.Value `json:"-"`
}

func (c PropertyConflict) String() string {
	return fmt.Sprintf("conflict %s.%s: base=%s ours=%s theirs=%s",
		c.ObjectKey, c.PropertyPath, c.Base, c.Ours, c.Theirs)
}

// StructuralConflict records an object-level clash no value selection can
// settle: add/add with different content, add-vs-delete, delete-vs-modify.
type StructuralConflict struct {
	ObjectKey   string `json:"objectKey"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

func (c StructuralConflict) String() string {
	return fmt.Sprintf("structural conflict (%s) at %s: %s", c.Kind, c.ObjectKey, c.Description)
}

// Result is the merge outcome. Merged is always usable; when Conflicts or
// Structural are non-empty it carries base values at the conflicting paths
// (unless a policy resolved them).
type Result struct {
	Merged     *document.Document
	Conflicts  []PropertyConflict
	Structural []StructuralConflict
}

// Clean reports whether everything auto-resolved.
func (r *Result) Clean() bool {
	return len(r.Conflicts) == 0 && len(r.Structural) == 0
}

// Options tunes the merge.
type Options struct {
	Policy Policy
	// Epsilon is handed to the underlying comparisons.
	Epsilon float64
}

// DefaultOptions surfaces conflicts and uses the differ's epsilon.
func DefaultOptions() Options {
	return Options{Policy: PolicyNone, Epsilon: semdiff.DefaultOptions().Epsilon}
}

// Merge three-way merges ours and theirs against base.
func Merge(base, ours, theirs *document.Document, opts Options) (*Result, error) {
	diffOpts := semdiff.Options{Epsilon: opts.Epsilon}
	dOurs := semdiff.Compare(base, ours, diffOpts)
	dTheirs := semdiff.Compare(base, theirs, diffOpts)

	res := &Result{}

	objectChanges, structural := mergeObjects(dOurs, dTheirs)
	res.Structural = structural

	propertyChanges, conflicts := mergeProperties(ours, theirs, dOurs, dTheirs, opts, diffOpts)
	res.Conflicts = conflicts

	// Drop property changes on objects a structural conflict owns; the
	// conflict record covers them.
	blocked := make(map[string]bool)
	for _, sc := range structural {
		blocked[sc.ObjectKey] = true
	}
	applied := &semdiff.Diff{Objects: objectChanges}
	for _, pc := range propertyChanges {
		if !blocked[pc.ObjectKey] {
			applied.Properties = append(applied.Properties, pc)
		}
	}

	merged, err := semdiff.Apply(base, applied)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	res.Merged = merged
	return res, nil
}

// mergeObjects reconciles whole-object additions and removals.
func mergeObjects(dOurs, dTheirs *semdiff.Diff) ([]semdiff.ObjectChange, []StructuralConflict) {
	index := func(d *semdiff.Diff) map[string]semdiff.ObjectChange {
		m := make(map[string]semdiff.ObjectChange)
		for _, oc := range d.Objects {
			m[oc.ObjectKey] = oc
		}
		return m
	}
	oursObj := index(dOurs)
	theirsObj := index(dTheirs)

	touched := func(d *semdiff.Diff, key string) bool {
		for _, pc := range d.Properties {
			if pc.ObjectKey == key {
				return true
			}
		}
		return false
	}

	var out []semdiff.ObjectChange
	var structural []StructuralConflict
	seen := make(map[string]bool)
	// Handles whose removal is structurally conflicted. A rename the differ
	// could not rematch shows up as a removal plus an addition of the same
	// handle; when the removal is frozen the paired addition must be frozen
	// too, or the object would be duplicated.
	frozen := make(map[document.Handle]bool)

	handle := func(key string) {
		if seen[key] {
			return
		}
		seen[key] = true
		o, inOurs := oursObj[key]
		t, inTheirs := theirsObj[key]

		switch {
		case inOurs && inTheirs:
			if o.Kind == t.Kind {
				if o.Kind == semdiff.Removed {
					out = append(out, o)
					return
				}
				// Added on both sides: identical content merges, anything
				// else is add/add.
				if document.ObjectDigest(o.Object) == document.ObjectDigest(t.Object) {
					out = append(out, o)
					return
				}
				structural = append(structural, StructuralConflict{
					ObjectKey:   key,
					Kind:        "add/add",
					Description: "both sides added different objects at the same identity",
				})
				return
			}
			structural = append(structural, StructuralConflict{
				ObjectKey:   key,
				Kind:        "add/delete",
				Description: "one side added, the other removed, at the same identity",
			})

		case inOurs:
			if o.Kind == semdiff.Removed && touched(dTheirs, key) {
				structural = append(structural, StructuralConflict{
					ObjectKey:   key,
					Kind:        "delete/modify",
					Description: "ours deleted an object theirs modified",
				})
				if o.Object != nil {
					frozen[o.Object.Handle] = true
				}
				return
			}
			out = append(out, o)

		case inTheirs:
			if t.Kind == semdiff.Removed && touched(dOurs, key) {
				structural = append(structural, StructuralConflict{
					ObjectKey:   key,
					Kind:        "delete/modify",
					Description: "theirs deleted an object ours modified",
				})
				if t.Object != nil {
					frozen[t.Object.Handle] = true
				}
				return
			}
			out = append(out, t)
		}
	}

	for _, oc := range dOurs.Objects {
		handle(oc.ObjectKey)
	}
	for _, oc := range dTheirs.Objects {
		handle(oc.ObjectKey)
	}

	if len(frozen) > 0 {
		kept := out[:0]
		for _, oc := range out {
			if oc.Object != nil && frozen[oc.Object.Handle] {
				continue
			}
			kept = append(kept, oc)
		}
		out = kept
	}
	return out, structural
}

// mergeProperties classifies per-path changes and resolves what it can.
func mergeProperties(ours, theirs *document.Document, dOurs, dTheirs *semdiff.Diff, opts Options, diffOpts semdiff.Options) ([]semdiff.PropertyChange, []PropertyConflict) {
	type pathKey struct {
		object string
		path   string
	}
	index := func(d *semdiff.Diff) (map[pathKey]semdiff.PropertyChange, []pathKey) {
		m := make(map[pathKey]semdiff.PropertyChange)
		var order []pathKey
		for _, pc := range d.Properties {
			k := pathKey{pc.ObjectKey, pc.PropertyPath}
			if _, dup := m[k]; !dup {
				order = append(order, k)
			}
			m[k] = pc
		}
		return m, order
	}
	oursProps, oursOrder := index(dOurs)
	theirsProps, theirsOrder := index(dTheirs)

	var out []semdiff.PropertyChange
	var conflicts []PropertyConflict
	seen := make(map[pathKey]bool)

	handle := func(k pathKey) {
		if seen[k] {
			return
		}
		seen[k] = true
		o, inOurs := oursProps[k]
		t, inTheirs := theirsProps[k]

		switch classifyProperty(ours, theirs, o, inOurs, t, inTheirs, diffOpts) {
		case OursOnly:
			out = append(out, o)
		case TheirsOnly:
			out = append(out, t)
		case BothSame:
			out = append(out, o)
		case Conflict:
			switch opts.Policy {
			case PolicyOurs:
				out = append(out, o)
			case PolicyTheirs:
				out = append(out, t)
			default:
				conflicts = append(conflicts, PropertyConflict{
					ObjectKey:    k.object,
					ClassName:    o.ClassName,
					PropertyPath: k.path,
					Base:         o.Old,
					Ours:         o.New,
					Theirs:       t.New,
				})
			}
		}
	}

	for _, k := range oursOrder {
		handle(k)
	}
	for _, k := range theirsOrder {
		handle(k)
	}
	return out, conflicts
}

func classifyProperty(oursDoc, theirsDoc *document.Document, o semdiff.PropertyChange, inOurs bool, t semdiff.PropertyChange, inTheirs bool, diffOpts semdiff.Options) Disposition {
	switch {
	case inOurs && !inTheirs:
		return OursOnly
	case !inOurs && inTheirs:
		return TheirsOnly
	case !inOurs && !inTheirs:
		return Unchanged
	}
	if o.Kind == semdiff.Removed && t.Kind == semdiff.Removed {
		return BothSame
	}
	if o.Kind != t.Kind {
		return Conflict
	}
	if semdiff.ValuesEqual(oursDoc, theirsDoc, o.New, t.New, diffOpts) {
		return BothSame
	}
	return Conflict
}
