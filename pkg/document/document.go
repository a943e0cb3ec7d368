// Package document models the tagged-object YAML dialect used by engine
// scene, prefab, and asset files: a flat list of class-tagged objects keyed by
// a per-file integer handle, cross-referencing each other by handle and, for
// external assets, by GUID.
package document

import "fmt"

// Handle is the per-document unique identifier of an object. Negative values
// are legal and appear routinely in real files.
type Handle int64

// ClassID is the engine's numeric type tag for an object.
type ClassID uint32

// Well-known class ids. Objects with other ids are carried through untouched.
const (
	ClassGameObject     ClassID = 1
	ClassTransform      ClassID = 4
	ClassCamera         ClassID = 20
	ClassMeshRenderer   ClassID = 23
	ClassMeshFilter     ClassID = 33
	ClassRigidbody      ClassID = 54
	ClassBoxCollider    ClassID = 65
	ClassAudioSource    ClassID = 82
	ClassMonoBehaviour  ClassID = 114
	ClassSpriteRenderer ClassID = 212
	ClassCanvasRenderer ClassID = 222
	ClassCanvas         ClassID = 223
	ClassRectTransform  ClassID = 224
	ClassCanvasGroup    ClassID = 225
	ClassPrefabInstance ClassID = 1001
)

// ReservedClassFloor marks the start of the reserved class-id range. Objects
// in this range are internal sentinels (e.g. the source-prefab root marker)
// and must never be treated as ordinary components.
const ReservedClassFloor ClassID = 100000000

var classNames = map[ClassID]string{
	ClassGameObject:     "GameObject",
	ClassTransform:      "Transform",
	ClassCamera:         "Camera",
	ClassMeshRenderer:   "MeshRenderer",
	ClassMeshFilter:     "MeshFilter",
	ClassRigidbody:      "Rigidbody",
	ClassBoxCollider:    "BoxCollider",
	ClassAudioSource:    "AudioSource",
	ClassMonoBehaviour:  "MonoBehaviour",
	ClassSpriteRenderer: "SpriteRenderer",
	ClassCanvasRenderer: "CanvasRenderer",
	ClassCanvas:         "Canvas",
	ClassRectTransform:  "RectTransform",
	ClassCanvasGroup:    "CanvasGroup",
	ClassPrefabInstance: "PrefabInstance",
}

func (c ClassID) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint32(c))
}

// IsTransform reports whether the class is a Transform or RectTransform.
func (c ClassID) IsTransform() bool {
	return c == ClassTransform || c == ClassRectTransform
}

// Reserved reports whether the class id is in the protected sentinel range.
func (c ClassID) Reserved() bool {
	return c >= ReservedClassFloor
}

// Known reports whether the class id has a registered name.
func (c ClassID) Known() bool {
	_, ok := classNames[c]
	return ok
}

// Object is one tagged document in the file. Data holds the full parsed body,
// which by convention has a single root key naming the class
// (e.g. "Transform"), with the real fields nested under it.
type Object struct {
	Class    ClassID
	Handle   Handle
	Stripped bool
	Data     *Map
}

// RootKey returns the single top-level key of the object body, or "" when the
// body is empty (stripped placeholders are often empty).
func (o *Object) RootKey() string {
	if o.Data == nil || o.Data.Len() == 0 {
		return ""
	}
	return o.Data.Keys()[0]
}

// Content returns the field mapping under the root key, or nil.
func (o *Object) Content() *Map {
	root := o.RootKey()
	if root == "" {
		return nil
	}
	v, ok := o.Data.Get(root)
	if !ok || v.Kind != KindMap {
		return nil
	}
	return v.Map
}

func (o *Object) ClassName() string {
	return o.Class.String()
}

// Field navigates Content() through nested mappings by key, returning nil
// when any step is absent or not a mapping.
func (o *Object) Field(keys ...string) *Value {
	c := o.Content()
	if c == nil {
		return nil
	}
	var v *Value
	for _, key := range keys {
		if c == nil {
			return nil
		}
		var ok bool
		if v, ok = c.Get(key); !ok {
			return nil
		}
		c = v.Map
	}
	return v
}

func (o *Object) Clone() *Object {
	return &Object{
		Class:    o.Class,
		Handle:   o.Handle,
		Stripped: o.Stripped,
		Data:     o.Data.Clone(),
	}
}

func (o *Object) String() string {
	return fmt.Sprintf("Object(%s &%d)", o.Class, o.Handle)
}

// Document is an ordered list of objects parsed from one file. Declared order
// is not semantically meaningful; the normalizer imposes the canonical order.
type Document struct {
	Objects    []*Object
	SourcePath string
}

// ByHandle returns the first object with the given handle, or nil. For
// repeated lookups build an index with resolve.Index.
func (d *Document) ByHandle(h Handle) *Object {
	for _, o := range d.Objects {
		if o.Handle == h {
			return o
		}
	}
	return nil
}

// ByClass returns all objects with the given class id, in document order.
func (d *Document) ByClass(c ClassID) []*Object {
	var out []*Object
	for _, o := range d.Objects {
		if o.Class == c {
			out = append(out, o)
		}
	}
	return out
}

func (d *Document) GameObjects() []*Object     { return d.ByClass(ClassGameObject) }
func (d *Document) PrefabInstances() []*Object { return d.ByClass(ClassPrefabInstance) }

// Handles returns the set of handles currently present in the document,
// including duplicates only once.
func (d *Document) Handles() map[Handle]struct{} {
	set := make(map[Handle]struct{}, len(d.Objects))
	for _, o := range d.Objects {
		set[o.Handle] = struct{}{}
	}
	return set
}

// Add appends an object to the document.
func (d *Document) Add(o *Object) {
	d.Objects = append(d.Objects, o)
}

// Remove deletes the object with the given handle. It reports whether an
// object was removed. Modifications elsewhere that pointed at the handle are
// left in place; they become validator warnings, not silent deletions.
func (d *Document) Remove(h Handle) bool {
	for i, o := range d.Objects {
		if o.Handle == h {
			d.Objects = append(d.Objects[:i], d.Objects[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		Objects:    make([]*Object, len(d.Objects)),
		SourcePath: d.SourcePath,
	}
	for i, o := range d.Objects {
		out.Objects[i] = o.Clone()
	}
	return out
}
