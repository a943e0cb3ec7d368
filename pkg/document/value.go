package document

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindMap
	KindSeq
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindMap:
		return "mapping"
	case KindSeq:
		return "sequence"
	case KindRef:
		return "reference"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// Value is one node in an object's field tree: a scalar, an ordered mapping,
// a sequence, or an object reference.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Map   *Map
	Seq   []*Value
	Ref   *Ref
}

// Ref points at another object, either within the same document (empty GUID)
// or in an external asset (GUID set). Type carries the reference-kind integer
// that rides along in serialized references.
type Ref struct {
	Handle Handle
	GUID   string
	Type   int64
}

// IsNull reports whether the reference is the null reference {fileID: 0}.
func (r *Ref) IsNull() bool {
	return r.Handle == 0 && r.GUID == ""
}

// External reports whether the reference points outside the current document.
func (r *Ref) External() bool {
	return r.GUID != ""
}

func NullValue() *Value            { return &Value{Kind: KindNull} }
func BoolValue(b bool) *Value      { return &Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) *Value      { return &Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) *Value  { return &Value{Kind: KindFloat, Float: f} }
func StringValue(s string) *Value  { return &Value{Kind: KindString, Str: s} }
func MapValue(m *Map) *Value       { return &Value{Kind: KindMap, Map: m} }
func SeqValue(vs ...*Value) *Value { return &Value{Kind: KindSeq, Seq: vs} }
func RefValue(r Ref) *Value        { return &Value{Kind: KindRef, Ref: &r} }

// LocalRef builds an internal reference value to handle h.
func LocalRef(h Handle) *Value {
	return RefValue(Ref{Handle: h})
}

// Equal reports exact structural equality. Float comparison is exact here;
// tolerance-aware comparison lives in the differ.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		if math.IsNaN(v.Float) && math.IsNaN(o.Float) {
			return true
		}
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindRef:
		return *v.Ref == *o.Ref
	case KindSeq:
		if len(v.Seq) != len(o.Seq) {
			return false
		}
		for i := range v.Seq {
			if !v.Seq[i].Equal(o.Seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if v.Map.Len() != o.Map.Len() {
			return false
		}
		for _, k := range v.Map.Keys() {
			ov, ok := o.Map.Get(k)
			if !ok {
				return false
			}
			mv, _ := v.Map.Get(k)
			if !mv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of the value.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{Kind: v.Kind, Bool: v.Bool, Int: v.Int, Float: v.Float, Str: v.Str}
	switch v.Kind {
	case KindRef:
		r := *v.Ref
		out.Ref = &r
	case KindSeq:
		out.Seq = make([]*Value, len(v.Seq))
		for i, e := range v.Seq {
			out.Seq[i] = e.Clone()
		}
	case KindMap:
		out.Map = v.Map.Clone()
	}
	return out
}

// AsFloat returns the numeric value of an int or float scalar.
func (v *Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}

// String renders a debug representation; serialization lives in emit.go.
func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	switch v.Kind {
	case KindNull:
		return "~"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.Str)
	case KindRef:
		if v.Ref.External() {
			return fmt.Sprintf("ref(%d@%s)", v.Ref.Handle, v.Ref.GUID)
		}
		return fmt.Sprintf("ref(%d)", v.Ref.Handle)
	case KindSeq:
		return fmt.Sprintf("seq(len=%d)", len(v.Seq))
	case KindMap:
		return fmt.Sprintf("map(len=%d)", v.Map.Len())
	}
	return "?"
}

// Map is a mapping that remembers key insertion order. Field order inside an
// object is semantically meaningful on emission, so a plain Go map is not
// enough.
type Map struct {
	keys []string
	vals map[string]*Value
}

func NewMap() *Map {
	return &Map{vals: make(map[string]*Value)}
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The returned slice is shared;
// callers must not mutate it.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

func (m *Map) Get(key string) (*Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Set inserts or replaces a key. New keys append to the order.
func (m *Map) Set(key string, v *Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Delete removes a key, preserving the relative order of the rest.
func (m *Map) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	out := &Map{
		keys: append([]string(nil), m.keys...),
		vals: make(map[string]*Value, len(m.vals)),
	}
	for k, v := range m.vals {
		out.vals[k] = v.Clone()
	}
	return out
}
