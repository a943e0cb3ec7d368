// Package hierarchy rebuilds the GameObject tree a document describes:
// parent/child structure from transforms, component lists, and prefab
// instance attachment points.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TrueCyan/unityflow/pkg/document"
)

// Node is one entry in the reconstructed tree: a GameObject, or a
// PrefabInstance standing in for an entire nested asset.
type Node struct {
	// Handle of the GameObject or PrefabInstance object.
	Handle document.Handle
	Name   string
	// Transform is the handle of the node's Transform or RectTransform.
	// Zero for PrefabInstance nodes.
	Transform document.Handle
	IsUI      bool

	Parent   *Node
	Children []*Node

	// Components lists attached component handles in declaration order,
	// the transform included.
	Components []document.Handle

	// PrefabInstance marks nodes standing in for an instantiated asset;
	// SourceGUID is the asset it instantiates.
	IsPrefabInstance bool
	SourceGUID       string

	// Stripped GameObjects exist only as attachment points into a nested
	// prefab instance.
	Stripped bool

	// disambiguated name, set once the tree is assembled
	pathName string
}

// Tree is the assembled hierarchy for one document.
type Tree struct {
	Roots []*Node

	byHandle    map[document.Handle]*Node
	byTransform map[document.Handle]*Node
}

// Build reconstructs the tree. Objects that do not participate (components,
// settings blocks) are reachable through their owning node's Components.
func Build(doc *document.Document) *Tree {
	t := &Tree{
		byHandle:    make(map[document.Handle]*Node),
		byTransform: make(map[document.Handle]*Node),
	}

	transforms := make(map[document.Handle]*document.Object) // transform handle -> object
	goForTransform := make(map[document.Handle]document.Handle)
	var instances []*document.Object

	for _, o := range doc.Objects {
		switch {
		case o.Class.IsTransform():
			transforms[o.Handle] = o
			if ref := o.Field("m_GameObject"); ref != nil && ref.Kind == document.KindRef {
				goForTransform[o.Handle] = ref.Ref.Handle
			}
		case o.Class == document.ClassGameObject:
			t.addGameObject(o)
		case o.Class == document.ClassPrefabInstance:
			t.addPrefabInstance(o)
			instances = append(instances, o)
		}
	}

	// Attach transforms to their GameObject nodes.
	for th, tr := range transforms {
		node := t.byHandle[goForTransform[th]]
		if node == nil {
			if !tr.Stripped {
				continue
			}
			// A stripped transform with no local GameObject marks an
			// attachment point into a prefab instance.
			node = &Node{Handle: goForTransform[th], Stripped: true}
			t.byHandle[node.Handle] = node
		}
		node.Transform = th
		node.IsUI = tr.Class == document.ClassRectTransform
		t.byTransform[th] = node
	}

	t.link(transforms)
	for _, o := range instances {
		t.attachInstance(o, t.byHandle[o.Handle])
	}
	t.collectRoots()
	t.disambiguate()
	return t
}

func (t *Tree) addGameObject(o *document.Object) {
	node := &Node{Handle: o.Handle, Stripped: o.Stripped}
	if name := o.Field("m_Name"); name != nil && name.Kind == document.KindString {
		node.Name = name.Str
	}
	if comps := o.Field("m_Component"); comps != nil && comps.Kind == document.KindSeq {
		for _, entry := range comps.Seq {
			if entry.Kind != document.KindMap {
				continue
			}
			if ref, ok := entry.Map.Get("component"); ok && ref.Kind == document.KindRef {
				node.Components = append(node.Components, ref.Ref.Handle)
			}
		}
	}
	t.byHandle[o.Handle] = node
}

func (t *Tree) addPrefabInstance(o *document.Object) {
	node := &Node{Handle: o.Handle, IsPrefabInstance: true}
	if src := o.Field("m_SourcePrefab"); src != nil && src.Kind == document.KindRef {
		node.SourceGUID = src.Ref.GUID
	}
	// The instance's display name comes from an m_Name override when one
	// exists.
	if mods := o.Field("m_Modification", "m_Modifications"); mods != nil && mods.Kind == document.KindSeq {
		for _, entry := range mods.Seq {
			if entry.Kind != document.KindMap {
				continue
			}
			p, _ := entry.Map.Get("propertyPath")
			if p == nil || p.Kind != document.KindString || p.Str != "m_Name" {
				continue
			}
			if v, ok := entry.Map.Get("value"); ok && v.Kind == document.KindString {
				node.Name = v.Str
			}
		}
	}
	t.byHandle[o.Handle] = node
}

// link wires parent/child edges. Child order comes from m_Children, which
// is authoritative; transforms absent from their parent's list are appended
// in handle order.
func (t *Tree) link(transforms map[document.Handle]*document.Object) {
	attached := make(map[document.Handle]bool)

	handles := make([]document.Handle, 0, len(transforms))
	for th := range transforms {
		handles = append(handles, th)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	for _, th := range handles {
		tr := transforms[th]
		node := t.byTransform[th]
		if node == nil {
			continue
		}
		if children := tr.Field("m_Children"); children != nil && children.Kind == document.KindSeq {
			for _, c := range children.Seq {
				if c.Kind != document.KindRef {
					continue
				}
				child := t.byTransform[c.Ref.Handle]
				if child == nil || child == node {
					continue
				}
				child.Parent = node
				node.Children = append(node.Children, child)
				attached[child.Transform] = true
			}
		}
	}

	// Fall back to m_Father for transforms no parent lists.
	for _, th := range handles {
		if attached[th] {
			continue
		}
		node := t.byTransform[th]
		if node == nil || node.Parent != nil {
			continue
		}
		father := transforms[th].Field("m_Father")
		if father == nil || father.Kind != document.KindRef || father.Ref.Handle == 0 {
			continue
		}
		parent := t.byTransform[father.Ref.Handle]
		if parent == nil || parent == node {
			continue
		}
		node.Parent = parent
		parent.Children = append(parent.Children, node)
	}

}

func (t *Tree) collectRoots() {
	for _, node := range t.byHandle {
		if node.Parent == nil {
			t.Roots = append(t.Roots, node)
		}
	}
	sort.Slice(t.Roots, func(i, j int) bool { return t.Roots[i].Handle < t.Roots[j].Handle })
}

// attachInstance parents a PrefabInstance node under its m_TransformParent
// target.
func (t *Tree) attachInstance(o *document.Object, node *Node) {
	parentRef := o.Field("m_Modification", "m_TransformParent")
	if parentRef == nil || parentRef.Kind != document.KindRef || parentRef.Ref.Handle == 0 {
		return
	}
	parent := t.byTransform[parentRef.Ref.Handle]
	if parent == nil {
		return
	}
	node.Parent = parent
	parent.Children = append(parent.Children, node)
}

// disambiguate assigns path names, suffixing same-named siblings with their
// ordinal: Name, Name[1], Name[2].
func (t *Tree) disambiguate() {
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		seen := make(map[string]int)
		for _, n := range nodes {
			i := seen[n.Name]
			seen[n.Name] = i + 1
			if i == 0 {
				n.pathName = n.Name
			} else {
				n.pathName = fmt.Sprintf("%s[%d]", n.Name, i)
			}
			walk(n.Children)
		}
	}
	walk(t.Roots)
}

// ByHandle returns the node for a GameObject or PrefabInstance handle.
func (t *Tree) ByHandle(h document.Handle) *Node {
	return t.byHandle[h]
}

// ByTransform returns the node owning a transform handle.
func (t *Tree) ByTransform(h document.Handle) *Node {
	return t.byTransform[h]
}

// Path renders the node's position as /Root/Child/Leaf using disambiguated
// names.
func (n *Node) Path() string {
	if n == nil {
		return ""
	}
	var parts []string
	for cur := n; cur != nil; cur = cur.Parent {
		name := cur.pathName
		if name == "" {
			name = fmt.Sprintf("&%d", int64(cur.Handle))
		}
		parts = append(parts, name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

// Find walks a /-separated path from the roots.
func (t *Tree) Find(path string) *Node {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return nil
	}
	nodes := t.Roots
	var found *Node
	for _, seg := range segments {
		found = nil
		for _, n := range nodes {
			if n.pathName == seg {
				found = n
				break
			}
		}
		if found == nil {
			return nil
		}
		nodes = found.Children
	}
	return found
}

// Walk visits every node depth-first in child order.
func (t *Tree) Walk(fn func(*Node)) {
	var visit func(nodes []*Node)
	visit = func(nodes []*Node) {
		for _, n := range nodes {
			fn(n)
			visit(n.Children)
		}
	}
	visit(t.Roots)
}
