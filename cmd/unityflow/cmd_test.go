package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const messyScene = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!4 &2
Transform:
  m_GameObject: {fileID: 1}
  m_LocalPosition: {x: 0, y: 0, z: 0}
  m_Children: []
  m_Father: {fileID: 0}
--- !u!1 &1
GameObject:
  m_Name: Player
  m_Component:
  - component: {fileID: 2}
`

const danglingScene = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &1
GameObject:
  m_Name: Player
  m_Component:
  - component: {fileID: 99}
`

func writeScene(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNormalizeCmd_RewritesAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeScene(t, dir, "Main.unity", messyScene)

	var out bytes.Buffer
	cmd := newNormalizeCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("normalize Execute: %v\noutput:\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "1 rewritten") {
		t.Fatalf("normalize output = %q", out.String())
	}

	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Objects come back in handle order.
	if strings.Index(string(rewritten), "&1") > strings.Index(string(rewritten), "&2") {
		t.Errorf("objects not reordered:\n%s", rewritten)
	}

	// A second run in check mode finds nothing to do.
	var second bytes.Buffer
	cmd = newNormalizeCmd()
	cmd.SetOut(&second)
	cmd.SetErr(&second)
	cmd.SetArgs([]string{"--check", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("check after normalize should pass: %v\noutput:\n%s", err, second.String())
	}
}

func TestNormalizeCmd_CheckModeFailsOnMessyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScene(t, dir, "Main.unity", messyScene)

	var out bytes.Buffer
	cmd := newNormalizeCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--check", path})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("check mode should fail, output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "not canonical") {
		t.Errorf("output = %q", out.String())
	}

	// Check mode must not touch the file.
	after, _ := os.ReadFile(path)
	if string(after) != messyScene {
		t.Errorf("check mode rewrote the file")
	}
}

func TestNormalizeCmd_OutputFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeScene(t, dir, "Main.unity", messyScene)
	dest := filepath.Join(dir, "Canonical.unity")

	cmd := newNormalizeCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"-o", dest, path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("normalize -o Execute: %v", err)
	}

	if _, err := os.Stat(dest); err != nil {
		t.Errorf("output file missing: %v", err)
	}
	original, _ := os.ReadFile(path)
	if string(original) != messyScene {
		t.Errorf("-o must leave the input untouched")
	}
}

func TestValidateCmd_ExitAndJSON(t *testing.T) {
	dir := t.TempDir()
	bad := writeScene(t, dir, "Bad.unity", danglingScene)

	// Cobra echoes the error and usage to the err stream; keep it out of
	// the buffer the JSON decoder reads.
	var out, errOut bytes.Buffer
	cmd := newValidateCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--json", bad})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("dangling reference should fail validation, output:\n%s", out.String())
	}

	var reports []fileReport
	if err := json.Unmarshal(out.Bytes(), &reports); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(reports) != 1 || len(reports[0].Findings) == 0 {
		t.Fatalf("reports = %+v", reports)
	}
	if !strings.Contains(out.String(), `"severity": "ERROR"`) {
		t.Errorf("JSON lacks severity string:\n%s", out.String())
	}
}

func TestValidateCmd_CleanFilePasses(t *testing.T) {
	dir := t.TempDir()
	good := writeScene(t, dir, "Good.unity", messyScene)

	var out bytes.Buffer
	cmd := newValidateCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{good})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("clean file should validate: %v\noutput:\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "0 errors") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDiffCmd_ExitCodeOnDifference(t *testing.T) {
	dir := t.TempDir()
	a := writeScene(t, dir, "A.unity", messyScene)
	b := writeScene(t, dir, "B.unity", strings.Replace(messyScene, "Player", "Hero", 1))

	var out bytes.Buffer
	cmd := newDiffCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{a, b})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("differing files should exit non-zero")
	}
	if !strings.Contains(out.String(), "m_Name") {
		t.Errorf("diff output missing change:\n%s", out.String())
	}

	// Identical files exit zero.
	cmd = newDiffCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{a, a})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("identical files should diff clean: %v", err)
	}
}

func TestMergeCmd_CleanAndConflicting(t *testing.T) {
	dir := t.TempDir()
	base := writeScene(t, dir, "Base.unity", messyScene)
	ours := writeScene(t, dir, "Ours.unity", strings.Replace(messyScene, "Player", "Hero", 1))
	theirs := writeScene(t, dir, "Theirs.unity", strings.Replace(messyScene, "x: 0", "x: 5", 1))
	merged := filepath.Join(dir, "Merged.unity")

	var out bytes.Buffer
	cmd := newMergeCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"-o", merged, base, ours, theirs})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("disjoint merge should be clean: %v\noutput:\n%s", err, out.String())
	}
	content, err := os.ReadFile(merged)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "Hero") || !strings.Contains(string(content), "x: 5") {
		t.Errorf("merged result missing one side:\n%s", content)
	}

	// Same-path edits conflict and exit non-zero without a policy.
	conflicting := writeScene(t, dir, "Conflict.unity", strings.Replace(messyScene, "Player", "Captain", 1))
	cmd = newMergeCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"-o", merged, base, ours, conflicting})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("conflicting merge should exit non-zero")
	}

	// A side policy resolves it.
	cmd = newMergeCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"-o", merged, "--theirs", base, ours, conflicting})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("--theirs should resolve: %v", err)
	}
	content, _ = os.ReadFile(merged)
	if !strings.Contains(string(content), "Captain") {
		t.Errorf("--theirs result lacks their value:\n%s", content)
	}
}

const gunPrefab = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &1
GameObject:
  m_Name: Gun
  m_IsActive: 1
`

const gunPrefabGUID = "aaaabbbbccccddddeeeeffff00001111"

const sceneWithInstance = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1001 &100
PrefabInstance:
  m_SourcePrefab: {fileID: 100100000, guid: aaaabbbbccccddddeeeeffff00001111, type: 3}
  m_Modification:
    m_TransformParent: {fileID: 0}
    m_Modifications:
    - target: {fileID: 1, guid: aaaabbbbccccddddeeeeffff00001111, type: 3}
      propertyPath: m_Name
      value: Blaster
      objectReference: {fileID: 0}
`

func TestEffectiveCmd_ResolvesOverrides(t *testing.T) {
	dir := t.TempDir()
	prefabDir := filepath.Join(dir, "Assets", "Prefabs")
	if err := os.MkdirAll(prefabDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeScene(t, prefabDir, "Gun.prefab", gunPrefab)
	meta := "fileFormatVersion: 2\nguid: " + gunPrefabGUID + "\n"
	if err := os.WriteFile(filepath.Join(prefabDir, "Gun.prefab.meta"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	scene := writeScene(t, dir, "Main.unity", sceneWithInstance)

	var out bytes.Buffer
	cmd := newEffectiveCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--project", dir, scene})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("effective Execute: %v\noutput:\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), `1.m_Name = "Blaster" (override)`) {
		t.Errorf("output = %q", out.String())
	}

	// A property the instance does not touch falls through to the base.
	out.Reset()
	cmd = newEffectiveCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--project", dir, "--path", "m_IsActive", scene})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("effective --path Execute: %v\noutput:\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "1.m_IsActive = 1 (base)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestMetaCmd_GeneratesAndPreserves(t *testing.T) {
	dir := t.TempDir()
	asset := writeScene(t, dir, "Player.prefab", messyScene)

	var out bytes.Buffer
	cmd := newMetaCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{asset})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("meta Execute: %v", err)
	}

	meta, err := os.ReadFile(asset + ".meta")
	if err != nil {
		t.Fatalf("meta file missing: %v", err)
	}
	if !strings.Contains(string(meta), "guid: ") {
		t.Errorf("meta content:\n%s", meta)
	}

	// A second run leaves the existing guid alone.
	before := string(meta)
	cmd = newMetaCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{asset})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("second meta Execute: %v", err)
	}
	after, _ := os.ReadFile(asset + ".meta")
	if string(after) != before {
		t.Errorf("existing meta was rewritten")
	}
}
