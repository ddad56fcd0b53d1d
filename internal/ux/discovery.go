package ux

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
)

const (
	// StateDirName is the per-project directory holding configuration,
	// checkpoints and run manifests.
	StateDirName = ".hirs_avhrr"
	// ConfigFileName is the configuration file looked up by DiscoverConfigFile.
	ConfigFileName = "config.yaml"
	// ConfigEnv names the environment variable overriding discovery.
	ConfigEnv = config.EnvConfigPath
)

// DiscoverConfigFile searches for the configuration file. Locations in
// priority order:
//  1. $HIRS_AVHRR_CONFIG
//  2. .hirs_avhrr/config.yaml or hirs_avhrr.yaml in the current directory
//     and its parents, stopping at the repository root
//  3. ~/.hirs_avhrr/config.yaml
//
// It returns an error wrapping os.ErrNotExist when nothing is found.
func DiscoverConfigFile() (string, error) {
	if p := os.Getenv(ConfigEnv); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s=%s: %w", ConfigEnv, p, err)
		}
		return p, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		for _, candidate := range []string{
			filepath.Join(dir, StateDirName, ConfigFileName),
			filepath.Join(dir, "hirs_avhrr.yaml"),
		} {
			if isFile(candidate) {
				return candidate, nil
			}
		}

		// Stop at git root
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(homeDir, StateDirName, ConfigFileName)
		if isFile(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no %s/%s or hirs_avhrr.yaml found from %s: %w", StateDirName, ConfigFileName, cwd, os.ErrNotExist)
}

// EnsureDirs creates every non-empty directory in dirs.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
