package exec

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// CreateManifest creates a run manifest for audit purposes
func CreateManifest(step Step, result *Result) *RunManifest {
	m := &RunManifest{
		Timestamp:    time.Now().UTC(),
		StepID:       step.ID,
		Command:      step.Cmd,
		Workdir:      step.Workdir,
		Env:          step.Env,
		InputHashes:  make(map[string]string),
		OutputHashes: make(map[string]string),
	}
	if result != nil {
		m.ExitCode = result.ExitCode
		m.Duration = result.Duration.String()
		m.StderrTail = lastLines(result.Stderr, 20)
	}
	return m
}

// SaveManifest writes a run manifest to dir and returns its path
func SaveManifest(manifest *RunManifest, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create manifest directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.json",
		manifest.Timestamp.Format("20060102_150405"),
		sanitize(manifest.StepID))
	path := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	return path, nil
}

// LoadManifest reads a manifest written by SaveManifest
func LoadManifest(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m RunManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

// HashFile computes the BLAKE3 hash of a file
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// AddInputHash adds an input file hash to the manifest
func (m *RunManifest) AddInputHash(name, path string) error {
	hash, err := HashFile(path)
	if err != nil {
		return err
	}
	m.InputHashes[name] = hash
	return nil
}

// AddOutputHash adds an output file hash to the manifest
func (m *RunManifest) AddOutputHash(name, path string) error {
	hash, err := HashFile(path)
	if err != nil {
		return err
	}
	m.OutputHashes[name] = hash
	return nil
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

func lastLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
