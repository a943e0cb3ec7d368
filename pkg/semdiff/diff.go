// Package semdiff compares documents property by property, matching objects
// by identity key rather than handle so that wholesale renumbering produces
// an empty diff.
package semdiff

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/TrueCyan/unityflow/pkg/document"
)

// ChangeKind classifies a change.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "Added"
	case Removed:
		return "Removed"
	case Modified:
		return "Modified"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

func (k ChangeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// PropertyChange is one leaf-level difference inside a matched object.
type PropertyChange struct {
	ObjectKey    string          `json:"objectKey"`
	ClassName    string          `json:"className"`
	PropertyPath string          `json:"propertyPath"`
	Kind         ChangeKind      `json:"kind"`
	Old          *document.Value `json:"-"`
	New          *document.Value `json:"-"`
}

func (c PropertyChange) String() string {
	switch c.Kind {
	case Added:
		return fmt.Sprintf("%s %s.%s = %s", c.Kind, c.ObjectKey, c.PropertyPath, c.New)
	case Removed:
		return fmt.Sprintf("%s %s.%s (was %s)", c.Kind, c.ObjectKey, c.PropertyPath, c.Old)
	}
	return fmt.Sprintf("%s %s.%s: %s -> %s", c.Kind, c.ObjectKey, c.PropertyPath, c.Old, c.New)
}

func (c PropertyChange) MarshalJSON() ([]byte, error) {
	type alias PropertyChange
	return json.Marshal(struct {
		alias
		Old string `json:"old,omitempty"`
		New string `json:"new,omitempty"`
	}{alias(c), valueString(c.Old), valueString(c.New)})
}

func valueString(v *document.Value) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// ObjectChange is a whole-object addition or removal.
type ObjectChange struct {
	ObjectKey string           `json:"objectKey"`
	ClassName string           `json:"className"`
	Kind      ChangeKind       `json:"kind"`
	Object    *document.Object `json:"-"`
}

// Diff is the full comparison result.
type Diff struct {
	Objects    []ObjectChange   `json:"objects"`
	Properties []PropertyChange `json:"properties"`
}

// Empty reports whether the two documents compared equal.
func (d *Diff) Empty() bool {
	return len(d.Objects) == 0 && len(d.Properties) == 0
}

// Options tunes the comparison.
type Options struct {
	// Epsilon is the tolerance for float comparison.
	Epsilon float64
}

// DefaultOptions uses an epsilon wide enough to absorb single-precision
// round-trip noise.
func DefaultOptions() Options {
	return Options{Epsilon: 1e-5}
}

// Compare diffs two documents. Matched objects are compared field by field
// with local references translated through the identity-key space, so a
// renumbered but otherwise identical file diffs empty. Renamed objects are
// rematched by handle, so a rename reads as an m_Name change rather than
// the removal and re-addition of the whole subtree.
func Compare(a, b *document.Document, opts Options) *Diff {
	ka, kb := buildKeySpace(a), buildKeySpace(b)
	rematch(ka, kb)
	cmp := &comparer{a: ka, b: kb, opts: opts}
	d := &Diff{}

	seen := make(map[string]bool)
	keys := make([]string, 0, len(ka.order)+len(kb.order))
	for _, k := range ka.order {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, k := range kb.order {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	for _, key := range keys {
		oa, inA := ka.byKey[key]
		ob, inB := kb.byKey[key]
		switch {
		case inA && !inB:
			d.Objects = append(d.Objects, ObjectChange{
				ObjectKey: key, ClassName: oa.Class.String(), Kind: Removed, Object: oa,
			})
		case !inA && inB:
			d.Objects = append(d.Objects, ObjectChange{
				ObjectKey: key, ClassName: ob.Class.String(), Kind: Added, Object: ob,
			})
		case oa.Class != ob.Class:
			d.Objects = append(d.Objects, ObjectChange{
				ObjectKey: key, ClassName: oa.Class.String(), Kind: Removed, Object: oa,
			})
			d.Objects = append(d.Objects, ObjectChange{
				ObjectKey: key, ClassName: ob.Class.String(), Kind: Added, Object: ob,
			})
		default:
			d.Properties = append(d.Properties, cmp.compareObjects(key, oa, ob)...)
		}
	}
	return d
}

type comparer struct {
	a, b *keySpace
	opts Options
}

func (c *comparer) compareObjects(key string, oa, ob *document.Object) []PropertyChange {
	var out []PropertyChange
	class := oa.Class.String()
	emit := func(kind ChangeKind, path string, old, new *document.Value) {
		out = append(out, PropertyChange{
			ObjectKey:    key,
			ClassName:    class,
			PropertyPath: path,
			Kind:         kind,
			Old:          old,
			New:          new,
		})
	}
	c.compareMaps(oa.Data, ob.Data, "", emit)
	return out
}

type emitFunc func(kind ChangeKind, path string, old, new *document.Value)

func (c *comparer) compareMaps(ma, mb *document.Map, path string, emit emitFunc) {
	for _, k := range ma.Keys() {
		va, _ := ma.Get(k)
		p := joinPath(path, k)
		vb, ok := mb.Get(k)
		if !ok {
			emit(Removed, p, va, nil)
			continue
		}
		c.compareValues(va, vb, p, k, emit)
	}
	for _, k := range mb.Keys() {
		if _, ok := ma.Get(k); !ok {
			vb, _ := mb.Get(k)
			emit(Added, joinPath(path, k), nil, vb)
		}
	}
}

func (c *comparer) compareValues(va, vb *document.Value, path, parentKey string, emit emitFunc) {
	if va.Kind != vb.Kind {
		// Numeric kinds still compare by value.
		fa, okA := va.AsFloat()
		fb, okB := vb.AsFloat()
		if okA && okB {
			if math.Abs(fa-fb) > c.opts.Epsilon {
				emit(Modified, path, va, vb)
			}
			return
		}
		emit(Modified, path, va, vb)
		return
	}

	switch va.Kind {
	case document.KindMap:
		c.compareMaps(va.Map, vb.Map, path, emit)

	case document.KindSeq:
		if parentKey == "m_Modifications" {
			c.compareModificationLists(va.Seq, vb.Seq, path, emit)
			return
		}
		if isRefList(va.Seq) && isRefList(vb.Seq) {
			if !c.refSetsEqual(va.Seq, vb.Seq) {
				emit(Modified, path, va, vb)
			}
			return
		}
		c.compareSeqs(va.Seq, vb.Seq, path, parentKey, emit)

	case document.KindRef:
		if !c.refsEqual(va.Ref, vb.Ref) {
			emit(Modified, path, va, vb)
		}

	case document.KindFloat:
		if math.Abs(va.Float-vb.Float) > c.opts.Epsilon {
			emit(Modified, path, va, vb)
		}

	default:
		if !va.Equal(vb) {
			emit(Modified, path, va, vb)
		}
	}
}

func (c *comparer) compareSeqs(sa, sb []*document.Value, path, parentKey string, emit emitFunc) {
	n := len(sa)
	if len(sb) < n {
		n = len(sb)
	}
	for i := 0; i < n; i++ {
		c.compareValues(sa[i], sb[i], fmt.Sprintf("%s[%d]", path, i), parentKey, emit)
	}
	for i := n; i < len(sa); i++ {
		emit(Removed, fmt.Sprintf("%s[%d]", path, i), sa[i], nil)
	}
	for i := n; i < len(sb); i++ {
		emit(Added, fmt.Sprintf("%s[%d]", path, i), nil, sb[i])
	}
}

// compareModificationLists matches override entries by (target,
// propertyPath) instead of position, so canonical re-sorting never reads
// as a change.
func (c *comparer) compareModificationLists(sa, sb []*document.Value, path string, emit emitFunc) {
	keyed := func(seq []*document.Value) (map[string]*document.Value, []string) {
		m := make(map[string]*document.Value)
		var order []string
		for _, entry := range seq {
			k := modEntryKey(entry)
			if _, dup := m[k]; !dup {
				order = append(order, k)
			}
			m[k] = entry // duplicates resolve last-wins
		}
		return m, order
	}
	ma, orderA := keyed(sa)
	mb, orderB := keyed(sb)

	for _, k := range orderA {
		p := path + "[" + k + "]"
		ea := ma[k]
		eb, ok := mb[k]
		if !ok {
			emit(Removed, p, ea, nil)
			continue
		}
		if !c.modEntriesEqual(ea, eb) {
			emit(Modified, p, ea, eb)
		}
	}
	for _, k := range orderB {
		if _, ok := ma[k]; !ok {
			emit(Added, path+"["+k+"]", nil, mb[k])
		}
	}
}

func (c *comparer) modEntriesEqual(ea, eb *document.Value) bool {
	if ea.Kind != document.KindMap || eb.Kind != document.KindMap {
		return ea.Equal(eb)
	}
	equal := true
	mark := func(kind ChangeKind, path string, old, new *document.Value) { equal = false }
	c.compareMaps(ea.Map, eb.Map, "", mark)
	return equal
}

// modEntryKey builds the (target, propertyPath) key for an override entry.
func modEntryKey(entry *document.Value) string {
	if entry.Kind != document.KindMap {
		return "@" + entry.String()
	}
	var target, path string
	if t, ok := entry.Map.Get("target"); ok && t.Kind == document.KindRef {
		target = fmt.Sprintf("%d/%s", int64(t.Ref.Handle), t.Ref.GUID)
	}
	if p, ok := entry.Map.Get("propertyPath"); ok && p.Kind == document.KindString {
		path = p.Str
	}
	return target + "|" + path
}

// refsEqual compares references through the identity-key space: two local
// refs match when they point at objects with the same identity, whatever
// their handles are.
func (c *comparer) refsEqual(ra, rb *document.Ref) bool {
	if ra.IsNull() || rb.IsNull() {
		return ra.IsNull() && rb.IsNull()
	}
	if ra.External() || rb.External() {
		return ra.GUID == rb.GUID && ra.Handle == rb.Handle && ra.Type == rb.Type
	}
	keyA, okA := c.a.keyOf[ra.Handle]
	keyB, okB := c.b.keyOf[rb.Handle]
	if okA && okB {
		return keyA == keyB
	}
	// Dangling on either side: fall back to raw handles.
	return ra.Handle == rb.Handle
}

func (c *comparer) refIdentity(seq *keySpace, r *document.Ref) string {
	if r.IsNull() {
		return "null"
	}
	if r.External() {
		return fmt.Sprintf("ext:%s/%d/%d", r.GUID, int64(r.Handle), r.Type)
	}
	if key, ok := seq.keyOf[r.Handle]; ok {
		return "key:" + key
	}
	return fmt.Sprintf("handle:%d", int64(r.Handle))
}

// refSetsEqual compares two reference lists as sets.
func (c *comparer) refSetsEqual(sa, sb []*document.Value) bool {
	if len(sa) != len(sb) {
		return false
	}
	counts := make(map[string]int)
	for _, v := range sa {
		counts[c.refIdentity(c.a, v.Ref)]++
	}
	for _, v := range sb {
		counts[c.refIdentity(c.b, v.Ref)]--
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}

// ValuesEqual reports whether two values drawn from two documents compare
// equal under the diff rules: epsilon floats, identity-keyed references,
// keyed modification lists.
func ValuesEqual(aDoc, bDoc *document.Document, a, b *document.Value, opts Options) bool {
	ka, kb := buildKeySpace(aDoc), buildKeySpace(bDoc)
	rematch(ka, kb)
	cmp := &comparer{a: ka, b: kb, opts: opts}
	equal := true
	mark := func(kind ChangeKind, path string, old, new *document.Value) { equal = false }
	cmp.compareValues(a, b, "", "", mark)
	return equal
}

func isRefList(seq []*document.Value) bool {
	if len(seq) == 0 {
		return false
	}
	for _, v := range seq {
		if v.Kind != document.KindRef {
			return false
		}
	}
	return true
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// Format renders a diff as a readable report.
func (d *Diff) Format() string {
	if d.Empty() {
		return "no differences\n"
	}
	var b strings.Builder
	for _, oc := range d.Objects {
		fmt.Fprintf(&b, "%s object %s (%s)\n", oc.Kind, oc.ObjectKey, oc.ClassName)
	}
	for _, pc := range d.Properties {
		fmt.Fprintf(&b, "%s\n", pc)
	}
	return b.String()
}
