package hierarchy

import (
	"testing"

	"github.com/TrueCyan/unityflow/pkg/document"
)

const sceneWithChildren = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &1
GameObject:
  m_Name: Root
  m_Component:
  - component: {fileID: 2}
--- !u!4 &2
Transform:
  m_GameObject: {fileID: 1}
  m_Children:
  - {fileID: 20}
  - {fileID: 10}
  m_Father: {fileID: 0}
--- !u!1 &11
GameObject:
  m_Name: Arm
  m_Component:
  - component: {fileID: 10}
--- !u!4 &10
Transform:
  m_GameObject: {fileID: 11}
  m_Children: []
  m_Father: {fileID: 2}
--- !u!1 &21
GameObject:
  m_Name: Arm
  m_Component:
  - component: {fileID: 20}
--- !u!4 &20
Transform:
  m_GameObject: {fileID: 21}
  m_Children: []
  m_Father: {fileID: 2}
`

func build(t *testing.T, src string) *Tree {
	t.Helper()
	doc, err := document.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return Build(doc)
}

func TestBuild_ChildOrderFromChildrenList(t *testing.T) {
	tree := build(t, sceneWithChildren)

	if len(tree.Roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(tree.Roots))
	}
	root := tree.Roots[0]
	if root.Name != "Root" || root.Transform != 2 {
		t.Errorf("root wrong: %+v", root)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(root.Children))
	}
	// m_Children order (20, 10) is authoritative, not handle order.
	if root.Children[0].Handle != 21 || root.Children[1].Handle != 11 {
		t.Errorf("child order = [%d, %d], want [21, 11]",
			root.Children[0].Handle, root.Children[1].Handle)
	}
}

func TestPath_DisambiguatesSiblings(t *testing.T) {
	tree := build(t, sceneWithChildren)
	root := tree.Roots[0]

	if got := root.Path(); got != "/Root" {
		t.Errorf("root path = %q", got)
	}
	if got := root.Children[0].Path(); got != "/Root/Arm" {
		t.Errorf("first sibling path = %q", got)
	}
	if got := root.Children[1].Path(); got != "/Root/Arm[1]" {
		t.Errorf("second sibling path = %q", got)
	}
}

func TestFind(t *testing.T) {
	tree := build(t, sceneWithChildren)

	if n := tree.Find("/Root/Arm[1]"); n == nil || n.Handle != 11 {
		t.Errorf("Find(/Root/Arm[1]) = %v", n)
	}
	if n := tree.Find("/Root/Missing"); n != nil {
		t.Errorf("Find on missing path = %v", n)
	}
}

func TestBuild_PrefabInstanceNode(t *testing.T) {
	const src = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &1
GameObject:
  m_Name: Root
  m_Component:
  - component: {fileID: 2}
--- !u!4 &2
Transform:
  m_GameObject: {fileID: 1}
  m_Children: []
  m_Father: {fileID: 0}
--- !u!1001 &9
PrefabInstance:
  m_Modification:
    m_TransformParent: {fileID: 2}
    m_Modifications:
    - target: {fileID: 400000, guid: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa, type: 3}
      propertyPath: m_Name
      value: Gun
      objectReference: {fileID: 0}
  m_SourcePrefab: {fileID: 100100000, guid: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa, type: 3}
`
	tree := build(t, src)

	inst := tree.ByHandle(9)
	if inst == nil || !inst.IsPrefabInstance {
		t.Fatalf("prefab instance node missing: %v", inst)
	}
	if inst.Name != "Gun" {
		t.Errorf("instance name = %q, want Gun (from m_Name override)", inst.Name)
	}
	if inst.SourceGUID != "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Errorf("source guid = %q", inst.SourceGUID)
	}
	if inst.Parent == nil || inst.Parent.Handle != 1 {
		t.Errorf("instance not parented under Root: %v", inst.Parent)
	}
	if got := inst.Path(); got != "/Root/Gun" {
		t.Errorf("instance path = %q", got)
	}
}

func TestBuild_StrippedTransformAttachmentPoint(t *testing.T) {
	const src = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!4 &7 stripped
Transform:
  m_GameObject: {fileID: 400001}
  m_PrefabInstance: {fileID: 9}
--- !u!1001 &9
PrefabInstance:
  m_Modification:
    m_TransformParent: {fileID: 0}
    m_Modifications: []
  m_SourcePrefab: {fileID: 100100000, guid: bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb, type: 3}
`
	tree := build(t, src)

	node := tree.ByTransform(7)
	if node == nil {
		t.Fatal("stripped transform has no node")
	}
	if !node.Stripped {
		t.Error("attachment node not marked stripped")
	}
}

func TestBuild_RectTransformIsUI(t *testing.T) {
	const src = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &1
GameObject:
  m_Name: Panel
  m_Component:
  - component: {fileID: 2}
--- !u!224 &2
RectTransform:
  m_GameObject: {fileID: 1}
  m_Children: []
  m_Father: {fileID: 0}
`
	tree := build(t, src)
	node := tree.ByHandle(1)
	if node == nil || !node.IsUI {
		t.Errorf("RectTransform owner should be IsUI: %+v", node)
	}
}
