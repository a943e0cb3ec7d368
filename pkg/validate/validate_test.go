package validate

import (
	"strings"
	"testing"

	"github.com/TrueCyan/unityflow/pkg/document"
)

func validateSrc(t *testing.T, src string) *Report {
	t.Helper()
	doc, err := document.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return Validate(doc)
}

func findingsContaining(r *Report, substr string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if strings.Contains(f.Message, substr) {
			out = append(out, f)
		}
	}
	return out
}

func TestValidate_CleanDocument(t *testing.T) {
	r := validateSrc(t, `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &1
GameObject:
  m_Name: Cube
  m_Component:
  - component: {fileID: 2}
--- !u!4 &2
Transform:
  m_GameObject: {fileID: 1}
  m_LocalPosition: {x: 0, y: 0, z: 0}
  m_LocalRotation: {x: 0, y: 0, z: 0, w: 1}
  m_LocalScale: {x: 1, y: 1, z: 1}
  m_Father: {fileID: 0}
`)
	if !r.Valid() {
		t.Errorf("expected valid, got findings: %v", r.Findings)
	}
}

func TestValidate_DanglingReferenceIsError(t *testing.T) {
	r := validateSrc(t, `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &1
GameObject:
  m_Name: Cube
  m_Component:
  - component: {fileID: 999}
`)
	dangling := findingsContaining(r, "non-existent fileID")
	if len(dangling) != 1 {
		t.Fatalf("expected 1 dangling-ref finding, got %v", r.Findings)
	}
	if dangling[0].Severity != Error {
		t.Errorf("dangling reference severity = %v, want Error", dangling[0].Severity)
	}
	if dangling[0].PropertyPath != "GameObject.m_Component[0].component" {
		t.Errorf("property path = %q", dangling[0].PropertyPath)
	}
	if r.Valid() {
		t.Error("report with error finding must not be valid")
	}
}

func TestValidate_NullAndExternalRefsAreFine(t *testing.T) {
	r := validateSrc(t, `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!114 &1
MonoBehaviour:
  m_GameObject: {fileID: 0}
  m_Script: {fileID: 11500000, guid: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa, type: 3}
`)
	if got := findingsContaining(r, "non-existent"); len(got) != 0 {
		t.Errorf("null/external refs flagged: %v", got)
	}
}

func TestValidate_DuplicateHandles(t *testing.T) {
	r := validateSrc(t, `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &5
GameObject:
  m_Name: A
--- !u!1 &5
GameObject:
  m_Name: B
`)
	dups := findingsContaining(r, "duplicate fileID")
	if len(dups) != 1 {
		t.Fatalf("expected 1 duplicate finding, got %v", r.Findings)
	}
	if dups[0].Severity != Error {
		t.Errorf("severity = %v, want Error", dups[0].Severity)
	}
}

func TestValidate_TransformCycle(t *testing.T) {
	r := validateSrc(t, `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!4 &2
Transform:
  m_GameObject: {fileID: 0}
  m_LocalPosition: {x: 0, y: 0, z: 0}
  m_LocalRotation: {x: 0, y: 0, z: 0, w: 1}
  m_LocalScale: {x: 1, y: 1, z: 1}
  m_Father: {fileID: 3}
--- !u!4 &3
Transform:
  m_GameObject: {fileID: 0}
  m_LocalPosition: {x: 0, y: 0, z: 0}
  m_LocalRotation: {x: 0, y: 0, z: 0, w: 1}
  m_LocalScale: {x: 1, y: 1, z: 1}
  m_Father: {fileID: 2}
`)
	cycles := findingsContaining(r, "cycle")
	if len(cycles) == 0 {
		t.Fatalf("expected a cycle finding, got %v", r.Findings)
	}
	if cycles[0].Severity != Error {
		t.Errorf("cycle severity = %v, want Error", cycles[0].Severity)
	}
}

func TestValidate_QuaternionLengthWarning(t *testing.T) {
	r := validateSrc(t, `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!4 &2
Transform:
  m_GameObject: {fileID: 0}
  m_LocalPosition: {x: 0, y: 0, z: 0}
  m_LocalRotation: {x: 0, y: 2, z: 0, w: 2}
  m_LocalScale: {x: 1, y: 1, z: 1}
`)
	warns := findingsContaining(r, "not normalized")
	if len(warns) != 1 || warns[0].Severity != Warning {
		t.Fatalf("expected 1 quaternion warning, got %v", r.Findings)
	}
	// Warnings alone leave the document valid.
	if !r.Valid() {
		t.Error("warnings should not invalidate the document")
	}
}

func TestValidate_QuaternionMissingComponent(t *testing.T) {
	r := validateSrc(t, `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!4 &2
Transform:
  m_GameObject: {fileID: 0}
  m_LocalPosition: {x: 0, y: 0, z: 0}
  m_LocalRotation: {x: 0, y: 0, z: 0}
  m_LocalScale: {x: 1, y: 1, z: 1}
`)
	missing := findingsContaining(r, "missing component w")
	if len(missing) != 1 || missing[0].Severity != Error {
		t.Fatalf("expected missing-component error, got %v", r.Findings)
	}
}

func TestValidate_RootKeyMismatch(t *testing.T) {
	r := validateSrc(t, `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &1
Transform:
  m_Name: Mislabeled
`)
	mismatched := findingsContaining(r, "does not match")
	if len(mismatched) != 1 || mismatched[0].Severity != Warning {
		t.Fatalf("expected root-key warning, got %v", r.Findings)
	}
}

func TestValidate_ReservedTargetPolicy(t *testing.T) {
	r := validateSrc(t, `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!100100000 &33
Prefab:
  m_Name: AssetRoot
--- !u!1001 &9
PrefabInstance:
  m_Modification:
    m_Modifications:
    - target: {fileID: 33}
      propertyPath: m_Name
      value: Hacked
      objectReference: {fileID: 0}
  m_SourcePrefab: {fileID: 100100000, guid: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa, type: 3}
`)
	policy := findingsContaining(r, "reserved class")
	if len(policy) != 1 {
		t.Fatalf("expected 1 policy finding, got %v", r.Findings)
	}
	if policy[0].Severity != Error {
		t.Errorf("policy severity = %v, want Error", policy[0].Severity)
	}
	if policy[0].PropertyPath != "m_Name" {
		t.Errorf("property path = %q", policy[0].PropertyPath)
	}
}

func TestValidate_DuplicateModificationWarning(t *testing.T) {
	r := validateSrc(t, `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1001 &9
PrefabInstance:
  m_Modification:
    m_Modifications:
    - target: {fileID: 10, guid: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa, type: 3}
      propertyPath: m_Name
      value: A
      objectReference: {fileID: 0}
    - target: {fileID: 10, guid: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa, type: 3}
      propertyPath: m_Name
      value: B
      objectReference: {fileID: 0}
  m_SourcePrefab: {fileID: 100100000, guid: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa, type: 3}
`)
	dups := findingsContaining(r, "duplicate modification")
	if len(dups) != 1 || dups[0].Severity != Warning {
		t.Fatalf("expected 1 duplicate-modification warning, got %v", r.Findings)
	}
}
