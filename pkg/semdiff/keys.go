package semdiff

import (
	"fmt"

	"github.com/TrueCyan/unityflow/pkg/document"
	"github.com/TrueCyan/unityflow/pkg/hierarchy"
)

// keySpace matches a document's objects to stable identity keys. Handles
// carry no meaning across independently edited copies, so matching goes
// through hierarchy paths instead: a GameObject is its path, a component is
// (owner path, class, script guid, ordinal among same-type siblings).
type keySpace struct {
	byKey map[string]*document.Object
	keyOf map[document.Handle]string
	order []string
}

func buildKeySpace(doc *document.Document) *keySpace {
	ks := &keySpace{
		byKey: make(map[string]*document.Object),
		keyOf: make(map[document.Handle]string),
	}
	tree := hierarchy.Build(doc)
	byHandle := make(map[document.Handle]*document.Object, len(doc.Objects))
	for _, o := range doc.Objects {
		byHandle[o.Handle] = o
	}

	tree.Walk(func(n *hierarchy.Node) {
		path := n.Path()
		if o := byHandle[n.Handle]; o != nil {
			ks.assign(path, o)
		}
		// Components keyed under their owner, counted per (class, guid).
		ordinals := make(map[string]int)
		for _, ch := range n.Components {
			comp := byHandle[ch]
			if comp == nil {
				continue
			}
			base := fmt.Sprintf("%s#%s%s", path, comp.Class, scriptSuffix(comp))
			i := ordinals[base]
			ordinals[base] = i + 1
			key := base
			if i > 0 {
				key = fmt.Sprintf("%s[%d]", base, i)
			}
			ks.assign(key, comp)
		}
	})

	// Anything left (settings blocks, orphaned components) keys by class
	// name and ordinal in document order.
	ordinals := make(map[string]int)
	for _, o := range doc.Objects {
		if _, done := ks.keyOf[o.Handle]; done {
			continue
		}
		base := "#" + o.Class.String() + scriptSuffix(o)
		i := ordinals[base]
		ordinals[base] = i + 1
		key := base
		if i > 0 {
			key = fmt.Sprintf("%s[%d]", base, i)
		}
		ks.assign(key, o)
	}
	return ks
}

// rematch pairs objects whose identity key moved because of a rename. A
// GameObject's key is its hierarchy path, so renaming it (or an ancestor)
// relocates the object and its subtree to fresh keys even though nothing
// else changed. For each a-side key missing from b, the object's handle is
// looked up on the b side: when that handle exists there under a key of the
// same class that a does not use, the b entry is rekeyed to the a key so
// the pair diffs as a property change instead of a remove plus an add.
// Handles are only trusted here because both documents descend from the
// same file; independently authored files never share handle meaning.
func rematch(ka, kb *keySpace) {
	for _, key := range ka.order {
		if _, ok := kb.byKey[key]; ok {
			continue
		}
		oa := ka.byKey[key]
		keyB, ok := kb.keyOf[oa.Handle]
		if !ok {
			continue
		}
		if _, taken := ka.byKey[keyB]; taken {
			continue
		}
		ob := kb.byKey[keyB]
		if ob == nil || ob.Class != oa.Class {
			continue
		}
		kb.rekey(keyB, key)
	}
}

// rekey moves an entry to a new key, keeping its slot in iteration order.
func (ks *keySpace) rekey(old, new string) {
	o := ks.byKey[old]
	delete(ks.byKey, old)
	ks.byKey[new] = o
	ks.keyOf[o.Handle] = new
	for i, k := range ks.order {
		if k == old {
			ks.order[i] = new
			break
		}
	}
}

func (ks *keySpace) assign(key string, o *document.Object) {
	if _, taken := ks.byKey[key]; taken {
		// Duplicate handles produce colliding keys; keep the first and
		// suffix the rest so nothing is silently dropped.
		for i := 1; ; i++ {
			alt := fmt.Sprintf("%s~%d", key, i)
			if _, taken := ks.byKey[alt]; !taken {
				key = alt
				break
			}
		}
	}
	ks.byKey[key] = o
	ks.keyOf[o.Handle] = key
	ks.order = append(ks.order, key)
}

// scriptSuffix distinguishes MonoBehaviours by their script asset.
func scriptSuffix(o *document.Object) string {
	if o.Class != document.ClassMonoBehaviour {
		return ""
	}
	script := o.Field("m_Script")
	if script == nil || script.Kind != document.KindRef || script.Ref.GUID == "" {
		return ""
	}
	return "(" + script.Ref.GUID + ")"
}
