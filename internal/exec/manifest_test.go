package exec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateManifest(t *testing.T) {
	step := Step{
		ID:      "metop-b_201707010032",
		Cmd:     []string{"/opt/c++/hirs_avhrr", "hirs", "ptmsx", "out.hdf"},
		Workdir: "/scratch/work",
		Env:     map[string]string{"LD_LIBRARY_PATH": "/opt/lib"},
	}
	result := &Result{
		ExitCode: 2,
		Stderr:   strings.Repeat("line\n", 30) + "fatal: no overlap\n",
		Duration: 3 * time.Second,
	}

	m := CreateManifest(step, result)

	if m.StepID != step.ID {
		t.Errorf("StepID = %v, want %v", m.StepID, step.ID)
	}
	if m.ExitCode != 2 {
		t.Errorf("ExitCode = %v, want 2", m.ExitCode)
	}
	if m.Duration != "3s" {
		t.Errorf("Duration = %v, want 3s", m.Duration)
	}
	if len(m.Command) != 4 || m.Workdir != "/scratch/work" {
		t.Errorf("unexpected command/workdir %v %v", m.Command, m.Workdir)
	}
	if got := strings.Count(m.StderrTail, "\n") + 1; got != 20 {
		t.Errorf("StderrTail has %d lines, want 20", got)
	}
	if !strings.HasSuffix(m.StderrTail, "fatal: no overlap") {
		t.Errorf("StderrTail should end with the last line, got %q", m.StderrTail)
	}
}

func TestSaveAndLoadManifest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	m := CreateManifest(Step{ID: "metop-b/2017-07-01T00:32", Cmd: []string{"x"}}, &Result{})
	m.Context = map[string]string{"satellite": "metop-b"}

	path, err := SaveManifest(m, dir)
	if err != nil {
		t.Fatalf("SaveManifest() error = %v", err)
	}
	if strings.ContainsAny(filepath.Base(path), "/:") {
		t.Errorf("manifest name not sanitized: %s", path)
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if loaded.StepID != m.StepID || loaded.Context["satellite"] != "metop-b" {
		t.Errorf("loaded manifest mismatch: %+v", loaded)
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	if err := os.WriteFile(a, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}

	ha, err := HashFile(a)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	hb, _ := HashFile(b)
	if ha != hb {
		t.Errorf("identical content should hash equal: %s vs %s", ha, hb)
	}
	if len(ha) != 64 {
		t.Errorf("expected 32-byte hex digest, got %d chars", len(ha))
	}

	m := CreateManifest(Step{ID: "x"}, nil)
	if err := m.AddInputHash("HIR1B", a); err != nil {
		t.Fatalf("AddInputHash() error = %v", err)
	}
	if err := m.AddOutputHash("out", filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error hashing a missing output")
	}
	if m.InputHashes["HIR1B"] != ha {
		t.Error("input hash not recorded")
	}
}
