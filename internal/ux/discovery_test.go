package ux

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// sandbox isolates discovery from the caller's environment and home.
func sandbox(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv(ConfigEnv, "")
	t.Setenv("HOME", filepath.Join(tmpDir, "home"))
	if err := os.MkdirAll(filepath.Join(tmpDir, "project", ".git"), 0o755); err != nil {
		t.Fatalf("Failed to create test directories: %v", err)
	}
	return tmpDir
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte("hirs_version: v20151014\n"), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func assertSamePath(t *testing.T, want, got string) {
	t.Helper()
	// Compare after resolving symlinks (macOS has /var -> /private/var)
	wantResolved, _ := filepath.EvalSymlinks(want)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != wantResolved {
		t.Errorf("Expected to find %s, got %s", wantResolved, gotResolved)
	}
}

func TestDiscoverConfigFileInParent(t *testing.T) {
	tmpDir := sandbox(t)
	projectRoot := filepath.Join(tmpDir, "project")
	configFile := filepath.Join(projectRoot, StateDirName, ConfigFileName)
	writeFile(t, configFile)

	subDir := filepath.Join(projectRoot, "work", "metop-b")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatalf("Failed to create test directories: %v", err)
	}
	t.Chdir(subDir)

	found, err := DiscoverConfigFile()
	if err != nil {
		t.Fatalf("DiscoverConfigFile failed: %v", err)
	}
	assertSamePath(t, configFile, found)
}

func TestDiscoverConfigFilePlainName(t *testing.T) {
	tmpDir := sandbox(t)
	configFile := filepath.Join(tmpDir, "project", "hirs_avhrr.yaml")
	writeFile(t, configFile)
	t.Chdir(filepath.Join(tmpDir, "project"))

	found, err := DiscoverConfigFile()
	if err != nil {
		t.Fatalf("DiscoverConfigFile failed: %v", err)
	}
	assertSamePath(t, configFile, found)
}

func TestDiscoverConfigFileEnvOverride(t *testing.T) {
	tmpDir := sandbox(t)
	configFile := filepath.Join(tmpDir, "elsewhere.yaml")
	writeFile(t, configFile)
	writeFile(t, filepath.Join(tmpDir, "project", "hirs_avhrr.yaml"))
	t.Chdir(filepath.Join(tmpDir, "project"))
	t.Setenv(ConfigEnv, configFile)

	found, err := DiscoverConfigFile()
	if err != nil {
		t.Fatalf("DiscoverConfigFile failed: %v", err)
	}
	if found != configFile {
		t.Errorf("Expected %s, got %s", configFile, found)
	}

	t.Setenv(ConfigEnv, filepath.Join(tmpDir, "missing.yaml"))
	if _, err := DiscoverConfigFile(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist for a missing override, got %v", err)
	}
}

func TestDiscoverConfigFileHome(t *testing.T) {
	tmpDir := sandbox(t)
	configFile := filepath.Join(tmpDir, "home", StateDirName, ConfigFileName)
	writeFile(t, configFile)
	t.Chdir(filepath.Join(tmpDir, "project"))

	found, err := DiscoverConfigFile()
	if err != nil {
		t.Fatalf("DiscoverConfigFile failed: %v", err)
	}
	assertSamePath(t, configFile, found)
}

func TestDiscoverConfigFileNotFound(t *testing.T) {
	tmpDir := sandbox(t)
	t.Chdir(filepath.Join(tmpDir, "project"))

	_, err := DiscoverConfigFile()
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

func TestEnsureDirs(t *testing.T) {
	tmpDir := t.TempDir()
	dirs := []string{
		filepath.Join(tmpDir, "checkpoints"),
		"",
		filepath.Join(tmpDir, "runs", "nested"),
	}
	if err := EnsureDirs(dirs...); err != nil {
		t.Fatalf("EnsureDirs failed: %v", err)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			t.Errorf("Directory %s was not created", dir)
		}
	}
}
