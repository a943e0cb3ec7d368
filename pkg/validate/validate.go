// Package validate checks documents for structural problems and reports
// them as findings. Data problems never surface as errors; the only fatal
// condition is failing to parse the file at all.
package validate

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/TrueCyan/unityflow/pkg/document"
	"github.com/TrueCyan/unityflow/pkg/resolve"
)

// Severity ranks findings. Error-severity findings drive non-zero exits.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "INFO":
		*s = Info
	case "WARNING":
		*s = Warning
	case "ERROR":
		*s = Error
	default:
		return fmt.Errorf("unknown severity %q", name)
	}
	return nil
}

// Finding is one problem located in a document.
type Finding struct {
	Severity     Severity        `json:"severity"`
	Handle       document.Handle `json:"fileID,omitempty"`
	PropertyPath string          `json:"propertyPath,omitempty"`
	Message      string          `json:"message"`
	Suggestion   string          `json:"suggestion,omitempty"`
}

func (f Finding) String() string {
	s := fmt.Sprintf("[%s]", f.Severity)
	if f.Handle != 0 {
		s += fmt.Sprintf(" (fileID: %d)", int64(f.Handle))
	}
	s += " " + f.Message
	if f.PropertyPath != "" {
		s += " at " + f.PropertyPath
	}
	if f.Suggestion != "" {
		s += " - " + f.Suggestion
	}
	return s
}

// Report collects every finding for one document.
type Report struct {
	Findings []Finding `json:"findings"`
}

// Valid reports whether the document carries no error-severity findings.
func (r *Report) Valid() bool {
	return r.Count(Error) == 0
}

// Count tallies findings at a severity.
func (r *Report) Count(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// Validate runs every check over the document.
func Validate(doc *document.Document) *Report {
	r := &Report{}
	r.checkDuplicateHandles(doc)

	idx := resolve.NewIndex(doc)
	for _, o := range doc.Objects {
		r.checkObjectStructure(o)
		r.checkReferences(o, idx)
	}
	r.checkTransformCycles(doc, idx)
	r.checkOverridePolicy(doc, idx)
	return r
}

func (r *Report) checkDuplicateHandles(doc *document.Document) {
	seen := make(map[document.Handle]int)
	for _, o := range doc.Objects {
		seen[o.Handle]++
	}
	for _, o := range doc.Objects {
		if seen[o.Handle] > 1 {
			r.add(Finding{
				Severity: Error,
				Handle:   o.Handle,
				Message:  fmt.Sprintf("duplicate fileID used by %d objects", seen[o.Handle]),
			})
			seen[o.Handle] = 0 // report each handle once
		}
	}
}

func (r *Report) checkObjectStructure(o *document.Object) {
	if o.Class == 0 {
		r.add(Finding{Severity: Error, Handle: o.Handle, Message: "invalid class ID: 0"})
	}
	if o.Data.Len() == 0 {
		if !o.Stripped {
			r.add(Finding{Severity: Warning, Handle: o.Handle, Message: "object has no data"})
		}
		return
	}
	if root := o.RootKey(); root != "" {
		if expected := o.Class.String(); o.Class.Known() && root != expected {
			r.add(Finding{
				Severity: Warning,
				Handle:   o.Handle,
				Message:  fmt.Sprintf("root key %q does not match %q for class ID %d", root, expected, uint32(o.Class)),
			})
		}
	}

	switch o.Class {
	case document.ClassGameObject:
		r.checkGameObject(o)
	case document.ClassTransform, document.ClassRectTransform:
		r.checkTransform(o)
	case document.ClassPrefabInstance:
		r.checkPrefabInstance(o)
	}
}

func (r *Report) checkGameObject(o *document.Object) {
	content := o.Content()
	if _, ok := content.Get("m_Name"); !ok {
		r.add(Finding{
			Severity:     Warning,
			Handle:       o.Handle,
			PropertyPath: "GameObject.m_Name",
			Message:      "GameObject missing m_Name",
		})
	}
	if _, ok := content.Get("m_Component"); !ok {
		r.add(Finding{
			Severity:     Info,
			Handle:       o.Handle,
			PropertyPath: "GameObject.m_Component",
			Message:      "GameObject has no components",
		})
	}
}

func (r *Report) checkTransform(o *document.Object) {
	content := o.Content()
	for _, prop := range []string{"m_LocalPosition", "m_LocalRotation", "m_LocalScale"} {
		if _, ok := content.Get(prop); !ok {
			r.add(Finding{
				Severity:     Warning,
				Handle:       o.Handle,
				PropertyPath: "Transform." + prop,
				Message:      "Transform missing " + prop,
			})
		}
	}
	if rot, ok := content.Get("m_LocalRotation"); ok && rot.Kind == document.KindMap {
		r.checkQuaternion(o, rot.Map, "m_LocalRotation")
	}
}

func (r *Report) checkQuaternion(o *document.Object, q *document.Map, path string) {
	comps := [4]float64{}
	for i, key := range []string{"x", "y", "z", "w"} {
		v, ok := q.Get(key)
		if !ok {
			r.add(Finding{
				Severity:     Error,
				Handle:       o.Handle,
				PropertyPath: path,
				Message:      "quaternion missing component " + key,
			})
			return
		}
		f, ok := v.AsFloat()
		if !ok {
			r.add(Finding{
				Severity:     Error,
				Handle:       o.Handle,
				PropertyPath: path,
				Message:      fmt.Sprintf("quaternion component %s is not numeric", key),
			})
			return
		}
		comps[i] = f
	}
	length := math.Sqrt(comps[0]*comps[0] + comps[1]*comps[1] + comps[2]*comps[2] + comps[3]*comps[3])
	if math.Abs(length-1) > 0.01 {
		r.add(Finding{
			Severity:     Warning,
			Handle:       o.Handle,
			PropertyPath: path,
			Message:      fmt.Sprintf("quaternion is not normalized (length=%.4f)", length),
			Suggestion:   "normalize to unit length",
		})
	}
}

func (r *Report) checkPrefabInstance(o *document.Object) {
	src := o.Field("m_SourcePrefab")
	if src == nil || src.Kind != document.KindRef {
		r.add(Finding{
			Severity:     Warning,
			Handle:       o.Handle,
			PropertyPath: "PrefabInstance.m_SourcePrefab",
			Message:      "PrefabInstance missing m_SourcePrefab",
		})
		return
	}
	if src.Ref.GUID == "" {
		r.add(Finding{
			Severity:     Warning,
			Handle:       o.Handle,
			PropertyPath: "PrefabInstance.m_SourcePrefab.guid",
			Message:      "m_SourcePrefab has no GUID",
			Suggestion:   "prefab reference may be broken",
		})
	}
	r.checkDuplicateModifications(o)
}

// checkDuplicateModifications flags repeated (target, propertyPath) entries.
// The override resolver picks one deterministically, but the duplication
// itself is worth surfacing.
func (r *Report) checkDuplicateModifications(o *document.Object) {
	mods := o.Field("m_Modification", "m_Modifications")
	if mods == nil || mods.Kind != document.KindSeq {
		return
	}
	type key struct {
		handle document.Handle
		path   string
	}
	seen := make(map[key]bool)
	for _, entry := range mods.Seq {
		if entry.Kind != document.KindMap {
			continue
		}
		target, _ := entry.Map.Get("target")
		path, _ := entry.Map.Get("propertyPath")
		if target == nil || target.Kind != document.KindRef || path == nil || path.Kind != document.KindString {
			continue
		}
		k := key{target.Ref.Handle, path.Str}
		if seen[k] {
			r.add(Finding{
				Severity:     Warning,
				Handle:       o.Handle,
				PropertyPath: path.Str,
				Message:      fmt.Sprintf("duplicate modification for target %d", int64(target.Ref.Handle)),
				Suggestion:   "last entry wins under canonical order",
			})
		}
		seen[k] = true
	}
}

// checkReferences walks the object's value tree and reports internal
// references (no guid) whose fileID resolves to nothing. fileID 0 is a null
// reference, not a problem.
func (r *Report) checkReferences(o *document.Object, idx *resolve.Index) {
	var walk func(v *document.Value, path string)
	walk = func(v *document.Value, path string) {
		switch v.Kind {
		case document.KindRef:
			if v.Ref.External() || v.Ref.IsNull() {
				return
			}
			if idx.Lookup(v.Ref.Handle) == nil {
				r.add(Finding{
					Severity:     Error,
					Handle:       o.Handle,
					PropertyPath: path,
					Message:      fmt.Sprintf("reference to non-existent fileID %d", int64(v.Ref.Handle)),
					Suggestion:   "reference is dangling or should carry a guid",
				})
			}
		case document.KindMap:
			for _, k := range v.Map.Keys() {
				child, _ := v.Map.Get(k)
				if path == "" {
					walk(child, k)
				} else {
					walk(child, path+"."+k)
				}
			}
		case document.KindSeq:
			for i, item := range v.Seq {
				walk(item, fmt.Sprintf("%s[%d]", path, i))
			}
		}
	}
	walk(document.MapValue(o.Data), "")
}

// checkTransformCycles looks for loops in the parent/child graph. A cycle
// makes hierarchy rebuild impossible, so it is an error.
func (r *Report) checkTransformCycles(doc *document.Document, idx *resolve.Index) {
	parent := make(map[document.Handle]document.Handle)
	for _, o := range doc.Objects {
		if !o.Class.IsTransform() {
			continue
		}
		father := o.Field("m_Father")
		if father == nil || father.Kind != document.KindRef || father.Ref.Handle == 0 {
			continue
		}
		parent[o.Handle] = father.Ref.Handle
	}

	const (
		white = 0
		grey  = 1
		black = 2
	)
	state := make(map[document.Handle]int)
	var visit func(h document.Handle) bool
	visit = func(h document.Handle) bool {
		switch state[h] {
		case grey:
			return true
		case black:
			return false
		}
		state[h] = grey
		cyclic := false
		if p, ok := parent[h]; ok {
			cyclic = visit(p)
		}
		state[h] = black
		return cyclic
	}

	reported := make(map[document.Handle]bool)
	for h := range parent {
		if state[h] == white && visit(h) && !reported[h] {
			r.add(Finding{
				Severity: Error,
				Handle:   h,
				Message:  "transform parent chain forms a cycle",
			})
			reported[h] = true
		}
	}
}

// checkOverridePolicy flags modifications targeting objects in the reserved
// class range. Those objects are engine bookkeeping and must never be
// patched like components.
func (r *Report) checkOverridePolicy(doc *document.Document, idx *resolve.Index) {
	for _, o := range doc.PrefabInstances() {
		mods := o.Field("m_Modification", "m_Modifications")
		if mods == nil || mods.Kind != document.KindSeq {
			continue
		}
		for _, entry := range mods.Seq {
			if entry.Kind != document.KindMap {
				continue
			}
			target, _ := entry.Map.Get("target")
			if target == nil || target.Kind != document.KindRef || target.Ref.External() {
				continue
			}
			resolved := idx.Lookup(target.Ref.Handle)
			if resolved == nil || !resolved.Class.Reserved() {
				continue
			}
			path := ""
			if p, ok := entry.Map.Get("propertyPath"); ok && p.Kind == document.KindString {
				path = p.Str
			}
			r.add(Finding{
				Severity:     Error,
				Handle:       o.Handle,
				PropertyPath: path,
				Message:      fmt.Sprintf("modification targets reserved class %d object %d", uint32(resolved.Class), int64(target.Ref.Handle)),
				Suggestion:   "reserved-range objects must not be patched",
			})
		}
	}
}
