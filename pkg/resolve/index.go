// Package resolve maps references to objects: local handles within a
// document, and guids to assets across a project tree.
package resolve

import (
	"github.com/TrueCyan/unityflow/pkg/document"
)

// Index is a handle lookup table over a single document.
type Index struct {
	byHandle map[document.Handle]*document.Object
}

// NewIndex builds a handle index. Later objects win on duplicate handles;
// the validator reports the duplication separately.
func NewIndex(doc *document.Document) *Index {
	idx := &Index{byHandle: make(map[document.Handle]*document.Object, len(doc.Objects))}
	for _, o := range doc.Objects {
		idx.byHandle[o.Handle] = o
	}
	return idx
}

// Lookup returns the object a local reference targets, or nil for the null
// handle and dangling references.
func (idx *Index) Lookup(h document.Handle) *document.Object {
	if h == 0 {
		return nil
	}
	return idx.byHandle[h]
}

// Resolve follows a reference within the document. External references
// (guid set) and null references return nil.
func (idx *Index) Resolve(r *document.Ref) *document.Object {
	if r == nil || r.External() || r.IsNull() {
		return nil
	}
	return idx.Lookup(r.Handle)
}
