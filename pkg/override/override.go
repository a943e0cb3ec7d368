// Package override resolves prefab-instance patch lists: given a base
// document and an instance's modifications, compute the values the
// instantiated objects actually carry.
package override

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TrueCyan/unityflow/pkg/document"
	"github.com/TrueCyan/unityflow/pkg/resolve"
)

// MaxChainDepth bounds how many nested instance layers a resolution chain
// may fold before it is treated as corrupt.
const MaxChainDepth = 32

// ErrChainTooDeep reports a resolution chain past MaxChainDepth layers.
var ErrChainTooDeep = errors.New("override chain too deep")

// Modification is one patch entry from m_Modifications.
type Modification struct {
	Target       *document.Ref
	PropertyPath string
	Value        *document.Value
	ObjectRef    *document.Ref
}

// Instance is a parsed PrefabInstance: where it points and what it changes.
type Instance struct {
	Handle     document.Handle
	SourceGUID string
	// Modifications in document order. Under canonical order the list is
	// sorted by (target handle, propertyPath), which makes last-wins
	// deterministic for duplicate paths.
	Modifications []Modification
	// RemovedComponents and AddedComponents carry the structural overrides.
	RemovedComponents []*document.Ref
	AddedComponents   []*document.Ref
}

// ParseInstance extracts the override data from a PrefabInstance object.
// Malformed entries are skipped, mirroring the normalizer's tolerance.
func ParseInstance(o *document.Object) (*Instance, error) {
	if o.Class != document.ClassPrefabInstance {
		return nil, fmt.Errorf("parse instance &%d: class %s is not a PrefabInstance", int64(o.Handle), o.Class)
	}
	inst := &Instance{Handle: o.Handle}
	if src := o.Field("m_SourcePrefab"); src != nil && src.Kind == document.KindRef {
		inst.SourceGUID = src.Ref.GUID
	}

	if mods := o.Field("m_Modification", "m_Modifications"); mods != nil && mods.Kind == document.KindSeq {
		for _, entry := range mods.Seq {
			m, ok := parseModification(entry)
			if !ok {
				continue
			}
			inst.Modifications = append(inst.Modifications, m)
		}
	}
	if removed := o.Field("m_Modification", "m_RemovedComponents"); removed != nil && removed.Kind == document.KindSeq {
		for _, entry := range removed.Seq {
			if entry.Kind == document.KindRef {
				inst.RemovedComponents = append(inst.RemovedComponents, entry.Ref)
			}
		}
	}
	if added := o.Field("m_Modification", "m_AddedComponents"); added != nil && added.Kind == document.KindSeq {
		for _, entry := range added.Seq {
			if entry.Kind != document.KindMap {
				continue
			}
			if ref, ok := entry.Map.Get("targetCorrespondingSourceObject"); ok && ref.Kind == document.KindRef {
				inst.AddedComponents = append(inst.AddedComponents, ref.Ref)
			}
		}
	}
	return inst, nil
}

func parseModification(entry *document.Value) (Modification, bool) {
	if entry.Kind != document.KindMap {
		return Modification{}, false
	}
	var m Modification
	if target, ok := entry.Map.Get("target"); ok && target.Kind == document.KindRef {
		m.Target = target.Ref
	}
	if m.Target == nil {
		return Modification{}, false
	}
	path, ok := entry.Map.Get("propertyPath")
	if !ok || path.Kind != document.KindString || path.Str == "" {
		return Modification{}, false
	}
	m.PropertyPath = path.Str
	if v, ok := entry.Map.Get("value"); ok {
		m.Value = v
	} else {
		m.Value = document.NullValue()
	}
	if ref, ok := entry.Map.Get("objectReference"); ok && ref.Kind == document.KindRef {
		m.ObjectRef = ref.Ref
	}
	return m, true
}

// Instances collects every PrefabInstance in the document, in object order.
func Instances(doc *document.Document) []*Instance {
	var out []*Instance
	for _, o := range doc.PrefabInstances() {
		inst, err := ParseInstance(o)
		if err != nil {
			continue
		}
		out = append(out, inst)
	}
	return out
}

// Result is the outcome of an effective-value lookup.
type Result struct {
	Value *document.Value
	// Overridden is set when a modification supplied the value rather
	// than the base object.
	Overridden bool
	// Resolved is false when neither the base nor any layer could supply
	// the property. Callers treat unresolved values as not comparable.
	Resolved bool
}

// EffectiveValue computes the value target.path has after applying the
// instance's modifications over the base document. Duplicate paths resolve
// last-wins.
func (inst *Instance) EffectiveValue(base *document.Document, target document.Handle, path string) Result {
	res := Result{}

	idx := resolve.NewIndex(base)
	if obj := idx.Lookup(target); obj != nil {
		if v := navigate(obj.Content(), path); v != nil {
			res.Value = v
			res.Resolved = true
		}
	}

	for _, m := range inst.Modifications {
		if m.Target.Handle != target || m.PropertyPath != path {
			continue
		}
		res.Value = modificationValue(m)
		res.Overridden = true
		res.Resolved = true
	}
	return res
}

// modificationValue picks the patch payload: a non-null objectReference
// wins over the scalar value slot.
func modificationValue(m Modification) *document.Value {
	if m.ObjectRef != nil && !m.ObjectRef.IsNull() {
		return document.RefValue(*m.ObjectRef)
	}
	if m.Value == nil {
		return document.NullValue()
	}
	return m.Value
}

// Chain is an ordered stack of instance layers, innermost first.
type Chain struct {
	Layers []*Instance
}

// EffectiveValue folds the chain left to right: the base supplies the
// initial value, each outer layer's modifications overwrite it.
func (c *Chain) EffectiveValue(base *document.Document, target document.Handle, path string) (Result, error) {
	if len(c.Layers) > MaxChainDepth {
		return Result{}, fmt.Errorf("resolve %s on &%d: %w (%d layers)", path, int64(target), ErrChainTooDeep, len(c.Layers))
	}
	res := Result{}
	idx := resolve.NewIndex(base)
	if obj := idx.Lookup(target); obj != nil {
		if v := navigate(obj.Content(), path); v != nil {
			res.Value = v
			res.Resolved = true
		}
	}
	for _, layer := range c.Layers {
		for _, m := range layer.Modifications {
			if m.Target.Handle != target || m.PropertyPath != path {
				continue
			}
			res.Value = modificationValue(m)
			res.Overridden = true
			res.Resolved = true
		}
	}
	return res, nil
}

// navigate walks a property path through a value tree. Segments are dotted
// field names; Array.data[i] segments index into sequences.
func navigate(m *document.Map, path string) *document.Value {
	if m == nil || path == "" {
		return nil
	}
	cur := document.MapValue(m)
	for _, seg := range strings.Split(path, ".") {
		name, index, indexed := splitIndex(seg)
		if cur.Kind != document.KindMap {
			return nil
		}
		next, ok := cur.Map.Get(name)
		if !ok {
			return nil
		}
		cur = next
		if indexed {
			if cur.Kind != document.KindSeq || index < 0 || index >= len(cur.Seq) {
				return nil
			}
			cur = cur.Seq[index]
		}
	}
	return cur
}

// splitIndex splits a path segment like "data[3]" into its name and index.
func splitIndex(seg string) (string, int, bool) {
	open := strings.IndexByte(seg, '[')
	if open < 0 || !strings.HasSuffix(seg, "]") {
		return seg, 0, false
	}
	idx, err := strconv.Atoi(seg[open+1 : len(seg)-1])
	if err != nil {
		return seg, 0, false
	}
	return seg[:open], idx, true
}
