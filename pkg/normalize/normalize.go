// Package normalize puts documents into a canonical form so that
// semantically equal files serialize to identical bytes.
package normalize

import (
	"fmt"
	"math"
	"sort"

	"github.com/TrueCyan/unityflow/pkg/document"
)

// quaternionProperties name fields whose mapping values are rotations.
var quaternionProperties = map[string]bool{
	"m_LocalRotation": true,
	"m_Rotation":      true,
	"localRotation":   true,
	"rotation":        true,
}

// Options controls which canonicalization passes run.
type Options struct {
	// SortObjects orders objects by handle ascending.
	SortObjects bool
	// SortModifications orders m_Modifications by (target.fileID,
	// propertyPath), and the removed/added component lists by target ref.
	SortModifications bool
	// NormalizeQuaternions flips rotations to w >= 0 and rescales them to
	// unit length.
	NormalizeQuaternions bool
	// FloatPrecision rounds floats to this many decimal places when > 0.
	// Zero leaves float values untouched.
	FloatPrecision int
	// OrderIndependentArrays names sequence fields whose element order
	// carries no meaning; their reference elements are sorted by fileID.
	OrderIndependentArrays map[string]bool
}

// DefaultOptions enables every structural pass and leaves float values
// alone. Only m_Component is treated as order-independent; child transform
// order is meaningful and stays put.
func DefaultOptions() Options {
	return Options{
		SortObjects:            true,
		SortModifications:      true,
		NormalizeQuaternions:   true,
		FloatPrecision:         0,
		OrderIndependentArrays: map[string]bool{"m_Component": true},
	}
}

// Warning reports a value the normalizer had to skip.
type Warning struct {
	Handle  document.Handle
	Path    string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("&%d %s: %s", int64(w.Handle), w.Path, w.Message)
}

// Normalize canonicalizes a document in place and returns any warnings.
// Running it twice produces the same bytes as running it once.
func Normalize(doc *document.Document, opts Options) []Warning {
	var warnings []Warning
	for _, o := range doc.Objects {
		warnings = append(warnings, normalizeObject(o, opts)...)
	}
	if opts.SortObjects {
		sort.SliceStable(doc.Objects, func(i, j int) bool {
			return doc.Objects[i].Handle < doc.Objects[j].Handle
		})
	}
	return warnings
}

func normalizeObject(o *document.Object, opts Options) []Warning {
	var warnings []Warning
	content := o.Content()
	if content == nil {
		return nil
	}
	if opts.SortModifications {
		if mod, ok := content.Get("m_Modification"); ok && mod.Kind == document.KindMap {
			warnings = append(warnings, sortModificationBlock(o.Handle, mod.Map)...)
		}
	}
	normalizeValue(document.MapValue(o.Data), "", opts)
	return warnings
}

// sortModificationBlock orders the three override lists inside a
// PrefabInstance's m_Modification mapping.
func sortModificationBlock(h document.Handle, mod *document.Map) []Warning {
	var warnings []Warning

	if mods, ok := mod.Get("m_Modifications"); ok && mods.Kind == document.KindSeq {
		warnings = append(warnings, sortOverrideEntries(h, mods.Seq)...)
	}
	if removed, ok := mod.Get("m_RemovedComponents"); ok && removed.Kind == document.KindSeq {
		sortRefList(removed.Seq)
	}
	if added, ok := mod.Get("m_AddedComponents"); ok && added.Kind == document.KindSeq {
		sort.SliceStable(added.Seq, func(i, j int) bool {
			a := entryRefKey(added.Seq[i], "targetCorrespondingSourceObject")
			b := entryRefKey(added.Seq[j], "targetCorrespondingSourceObject")
			return a.less(b)
		})
	}
	return warnings
}

// sortOverrideEntries sorts modification entries by (target.fileID,
// propertyPath). Entries that are not mappings are left at the front and
// reported.
func sortOverrideEntries(h document.Handle, entries []*document.Value) []Warning {
	var warnings []Warning
	for i, e := range entries {
		if e.Kind != document.KindMap {
			warnings = append(warnings, Warning{
				Handle:  h,
				Path:    fmt.Sprintf("m_Modification.m_Modifications[%d]", i),
				Message: "entry is not a mapping, left unsorted",
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		fi, pi := modificationKey(entries[i])
		fj, pj := modificationKey(entries[j])
		if fi != fj {
			return fi < fj
		}
		return pi < pj
	})
	return warnings
}

func modificationKey(entry *document.Value) (int64, string) {
	if entry.Kind != document.KindMap {
		return math.MinInt64, ""
	}
	var fileID int64
	if target, ok := entry.Map.Get("target"); ok && target.Kind == document.KindRef {
		fileID = int64(target.Ref.Handle)
	}
	var path string
	if p, ok := entry.Map.Get("propertyPath"); ok && p.Kind == document.KindString {
		path = p.Str
	}
	return fileID, path
}

type refKey struct {
	fileID  int64
	guid    string
	refType int64
}

func (a refKey) less(b refKey) bool {
	if a.fileID != b.fileID {
		return a.fileID < b.fileID
	}
	if a.guid != b.guid {
		return a.guid < b.guid
	}
	return a.refType < b.refType
}

func entryRefKey(entry *document.Value, key string) refKey {
	if entry.Kind != document.KindMap {
		return refKey{}
	}
	target, ok := entry.Map.Get(key)
	if !ok || target.Kind != document.KindRef {
		return refKey{}
	}
	return refKey{
		fileID:  int64(target.Ref.Handle),
		guid:    target.Ref.GUID,
		refType: target.Ref.Type,
	}
}

// sortRefList orders a sequence of reference entries by target ref. Used
// for m_RemovedComponents, whose entries are {fileID: ...} style refs.
func sortRefList(entries []*document.Value) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entryRef(entries[i]).less(entryRef(entries[j]))
	})
}

func entryRef(e *document.Value) refKey {
	switch e.Kind {
	case document.KindRef:
		return refKey{fileID: int64(e.Ref.Handle), guid: e.Ref.GUID, refType: e.Ref.Type}
	case document.KindMap:
		return entryRefKey(e, "target")
	}
	return refKey{}
}

func normalizeValue(v *document.Value, parentKey string, opts Options) {
	switch v.Kind {
	case document.KindMap:
		if opts.NormalizeQuaternions && quaternionProperties[parentKey] && isQuaternionMap(v.Map) {
			normalizeQuaternion(v.Map, opts)
		}
		for _, k := range v.Map.Keys() {
			child, _ := v.Map.Get(k)
			normalizeValue(child, k, opts)
		}

	case document.KindSeq:
		if opts.OrderIndependentArrays[parentKey] && len(v.Seq) > 0 {
			sortReferenceArray(v.Seq)
		}
		for _, item := range v.Seq {
			normalizeValue(item, parentKey, opts)
		}

	case document.KindFloat:
		if opts.FloatPrecision > 0 {
			v.Float = roundFloat(v.Float, opts.FloatPrecision)
		}
	}
}

func isQuaternionMap(m *document.Map) bool {
	for _, k := range []string{"x", "y", "z", "w"} {
		if _, ok := m.Get(k); !ok {
			return false
		}
	}
	return true
}

// normalizeQuaternion flips the rotation to the w >= 0 hemisphere and
// rescales it to unit length. Component kinds become floats.
func normalizeQuaternion(m *document.Map, opts Options) {
	comp := func(key string, def float64) float64 {
		v, ok := m.Get(key)
		if !ok {
			return def
		}
		if f, ok := v.AsFloat(); ok {
			return f
		}
		return def
	}
	x, y, z, w := comp("x", 0), comp("y", 0), comp("z", 0), comp("w", 1)

	if w < 0 {
		x, y, z, w = -x, -y, -z, -w
	}
	length := math.Sqrt(x*x + y*y + z*z + w*w)
	if length > 0 {
		x, y, z, w = x/length, y/length, z/length, w/length
	}

	set := func(key string, f float64) {
		if opts.FloatPrecision > 0 {
			f = roundFloat(f, opts.FloatPrecision)
		}
		if f == 0 {
			f = 0 // avoid -0 from hemisphere flips
		}
		m.Set(key, document.FloatValue(f))
	}
	set("x", x)
	set("y", y)
	set("z", z)
	set("w", w)
}

// sortReferenceArray orders reference entries by fileID. Handles both the
// m_Component shape ({component: {fileID: X}}) and bare refs.
func sortReferenceArray(entries []*document.Value) {
	key := func(e *document.Value) int64 {
		switch e.Kind {
		case document.KindRef:
			return int64(e.Ref.Handle)
		case document.KindMap:
			if comp, ok := e.Map.Get("component"); ok && comp.Kind == document.KindRef {
				return int64(comp.Ref.Handle)
			}
			if fid, ok := e.Map.Get("fileID"); ok && fid.Kind == document.KindInt {
				return fid.Int
			}
		}
		return 0
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return key(entries[i]) < key(entries[j])
	})
}

func roundFloat(f float64, places int) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	shift := math.Pow(10, float64(places))
	r := math.Round(f*shift) / shift
	if r == 0 {
		return 0 // avoid -0
	}
	return r
}
