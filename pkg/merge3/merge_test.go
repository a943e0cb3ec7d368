package merge3

import (
	"strings"
	"testing"

	"github.com/TrueCyan/unityflow/pkg/document"
	"github.com/TrueCyan/unityflow/pkg/semdiff"
)

const baseScene = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &1
GameObject:
  m_Name: Player
  m_Component:
  - component: {fileID: 2}
--- !u!4 &2
Transform:
  m_GameObject: {fileID: 1}
  m_LocalPosition: {x: 0, y: 0, z: 0}
  m_Children:
  - {fileID: 4}
  m_Father: {fileID: 0}
--- !u!1 &3
GameObject:
  m_Name: Gun
  m_Color: {r: 1, g: 1, b: 1, a: 1}
  m_Component:
  - component: {fileID: 4}
--- !u!4 &4
Transform:
  m_GameObject: {fileID: 3}
  m_LocalPosition: {x: 1, y: 0, z: 0}
  m_Children: []
  m_Father: {fileID: 2}
`

func mustParse(t *testing.T, src string) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

// edit parses the base scene, applies fn, and returns the edited document.
func edit(t *testing.T, fn func(doc *document.Document)) *document.Document {
	t.Helper()
	doc := mustParse(t, baseScene)
	fn(doc)
	return doc
}

func TestMerge_DisjointEditsAutoResolve(t *testing.T) {
	base := mustParse(t, baseScene)
	ours := edit(t, func(doc *document.Document) {
		doc.ByHandle(1).Content().Set("m_Name", document.StringValue("Hero"))
	})
	theirs := edit(t, func(doc *document.Document) {
		pos := doc.ByHandle(4).Field("m_LocalPosition")
		pos.Map.Set("x", document.FloatValue(2.5))
	})

	res, err := Merge(base, ours, theirs, DefaultOptions())
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !res.Clean() {
		t.Fatalf("disjoint edits should auto-resolve, got conflicts %v structural %v", res.Conflicts, res.Structural)
	}

	if got := res.Merged.ByHandle(1).Field("m_Name").Str; got != "Hero" {
		t.Errorf("ours edit lost: m_Name = %q", got)
	}
	xv, _ := res.Merged.ByHandle(4).Field("m_LocalPosition").Map.Get("x")
	if x, _ := xv.AsFloat(); x != 2.5 {
		t.Errorf("theirs edit lost: x = %v", x)
	}
}

func TestMerge_EqualsSequentialApplication(t *testing.T) {
	base := mustParse(t, baseScene)
	// The edits touch keys the other side leaves in place, so the two
	// diffs also apply one after the other.
	ours := edit(t, func(doc *document.Document) {
		pos := doc.ByHandle(2).Field("m_LocalPosition")
		pos.Map.Set("x", document.FloatValue(3))
	})
	theirs := edit(t, func(doc *document.Document) {
		doc.ByHandle(3).Content().Set("m_Name", document.StringValue("Rifle"))
	})

	res, err := Merge(base, ours, theirs, DefaultOptions())
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !res.Clean() {
		t.Fatalf("unexpected conflicts: %v %v", res.Conflicts, res.Structural)
	}

	// Applying both diffs to base in sequence must land on the same result.
	opts := semdiff.DefaultOptions()
	step, err := semdiff.Apply(base, semdiff.Compare(base, ours, opts))
	if err != nil {
		t.Fatalf("Apply ours: %v", err)
	}
	want, err := semdiff.Apply(step, semdiff.Compare(base, theirs, opts))
	if err != nil {
		t.Fatalf("Apply theirs: %v", err)
	}
	if d := semdiff.Compare(res.Merged, want, opts); !d.Empty() {
		t.Errorf("merged differs from sequential application:\n%s", d.Format())
	}
}

func TestMerge_SamePathConflict(t *testing.T) {
	base := mustParse(t, baseScene)
	ours := edit(t, func(doc *document.Document) {
		doc.ByHandle(1).Content().Set("m_Name", document.StringValue("Hero"))
	})
	theirs := edit(t, func(doc *document.Document) {
		doc.ByHandle(1).Content().Set("m_Name", document.StringValue("Captain"))
	})

	res, err := Merge(base, ours, theirs, DefaultOptions())
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(res.Structural) != 0 {
		t.Fatalf("renaming the same object on both sides must not read as remove/add: %v", res.Structural)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("want exactly 1 conflict, got %d: %v", len(res.Conflicts), res.Conflicts)
	}
	c := res.Conflicts[0]
	if c.ObjectKey != "/Player" {
		t.Errorf("ObjectKey = %q", c.ObjectKey)
	}
	if c.Base.Str != "Player" || c.Ours.Str != "Hero" || c.Theirs.Str != "Captain" {
		t.Errorf("conflict sides = base %s ours %s theirs %s", c.Base, c.Ours, c.Theirs)
	}
	// The merged document keeps the base value at the conflicting path, and
	// neither side's rename duplicates the subtree.
	if n := len(res.Merged.Objects); n != 4 {
		t.Errorf("merged has %d objects, want 4", n)
	}
	if got := res.Merged.ByHandle(1).Field("m_Name").Str; got != "Player" {
		t.Errorf("unresolved conflict should keep base value, got %q", got)
	}
}

func TestMerge_SameEditBothSides(t *testing.T) {
	base := mustParse(t, baseScene)
	change := func(doc *document.Document) {
		doc.ByHandle(1).Content().Set("m_Name", document.StringValue("Hero"))
	}
	res, err := Merge(base, edit(t, change), edit(t, change), DefaultOptions())
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !res.Clean() {
		t.Fatalf("identical edits should not conflict: %v", res.Conflicts)
	}
	if got := res.Merged.ByHandle(1).Field("m_Name").Str; got != "Hero" {
		t.Errorf("m_Name = %q", got)
	}
}

func TestMerge_PolicyResolvesConflicts(t *testing.T) {
	base := mustParse(t, baseScene)
	ours := edit(t, func(doc *document.Document) {
		doc.ByHandle(1).Content().Set("m_Name", document.StringValue("Hero"))
	})
	theirs := edit(t, func(doc *document.Document) {
		doc.ByHandle(1).Content().Set("m_Name", document.StringValue("Captain"))
	})

	for _, tc := range []struct {
		policy Policy
		want   string
	}{
		{PolicyOurs, "Hero"},
		{PolicyTheirs, "Captain"},
	} {
		opts := DefaultOptions()
		opts.Policy = tc.policy
		res, err := Merge(base, ours, theirs, opts)
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		if !res.Clean() {
			t.Errorf("policy %v should resolve, got %v", tc.policy, res.Conflicts)
		}
		if got := res.Merged.ByHandle(1).Field("m_Name").Str; got != tc.want {
			t.Errorf("policy %v: m_Name = %q, want %q", tc.policy, got, tc.want)
		}
	}
}

func TestMerge_RenameVersusEdit(t *testing.T) {
	base := mustParse(t, baseScene)
	ours := edit(t, func(doc *document.Document) {
		// Renaming Gun moves its identity key; the differ follows the
		// object by handle so this stays a plain m_Name change.
		doc.ByHandle(3).Content().Set("m_Name", document.StringValue("Blaster"))
	})
	theirs := edit(t, func(doc *document.Document) {
		color := doc.ByHandle(3).Field("m_Color")
		color.Map.Set("r", document.FloatValue(0.5))
	})

	res, err := Merge(base, ours, theirs, DefaultOptions())
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !res.Clean() {
		t.Fatalf("rename and edit of the same object should auto-resolve, got conflicts %v structural %v", res.Conflicts, res.Structural)
	}
	gun := res.Merged.ByHandle(3)
	if got := gun.Field("m_Name").Str; got != "Blaster" {
		t.Errorf("rename lost: m_Name = %q", got)
	}
	r := gun.Field("m_Color", "r")
	if r == nil {
		t.Fatal("m_Color.r missing from merged object")
	}
	if f, _ := r.AsFloat(); f != 0.5 {
		t.Errorf("color edit lost: r = %v", r)
	}
	if n := len(res.Merged.Objects); n != 4 {
		t.Errorf("merged has %d objects, want 4", n)
	}
}

func TestMerge_DeleteVersusModify(t *testing.T) {
	base := mustParse(t, baseScene)
	ours := edit(t, func(doc *document.Document) {
		doc.Remove(3)
		doc.Remove(4)
		doc.ByHandle(2).Field("m_Children").Seq = nil
	})
	theirs := edit(t, func(doc *document.Document) {
		pos := doc.ByHandle(4).Field("m_LocalPosition")
		pos.Map.Set("x", document.FloatValue(9))
	})

	res, err := Merge(base, ours, theirs, DefaultOptions())
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	found := false
	for _, sc := range res.Structural {
		if sc.Kind == "delete/modify" {
			found = true
		}
	}
	if !found {
		t.Errorf("want a delete/modify structural conflict, got %v", res.Structural)
	}
	// The touched object survives in the merged output.
	if res.Merged.ByHandle(4) == nil {
		t.Errorf("conflicted object was silently dropped")
	}
}

func TestMerge_AddAddIdentical(t *testing.T) {
	base := mustParse(t, baseScene)
	add := func(doc *document.Document) {
		tmpl := mustParse(t, strings.Replace(baseScene, "m_Name: Gun", "m_Name: Shield", 1))
		o := tmpl.ByHandle(3).Clone()
		o.Handle = 30
		o.Content().Set("m_Component", document.SeqValue())
		doc.Add(o)
	}
	res, err := Merge(base, edit(t, add), edit(t, add), DefaultOptions())
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !res.Clean() {
		t.Fatalf("identical additions should merge clean: %v %v", res.Conflicts, res.Structural)
	}
	count := 0
	for _, o := range res.Merged.Objects {
		if v := o.Field("m_Name"); v != nil && v.Str == "Shield" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("want exactly one Shield in merged output, got %d", count)
	}
}

func TestDisposition_String(t *testing.T) {
	if Conflict.String() != "Conflict" || BothSame.String() != "BothSame" {
		t.Errorf("unexpected strings: %s %s", Conflict, BothSame)
	}
}
