package exec

import "time"

// Step represents a single subprocess invocation
type Step struct {
	ID      string
	Cmd     []string          // Executable path and arguments
	Workdir string            // Working directory path
	Env     map[string]string // Variables layered on the inherited environment
}

// Result represents the outcome of an execution step
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	// Error is the raw error from os/exec, nil on a zero exit.
	Error error
}

// RunManifest is the audit record written for every collocation run
type RunManifest struct {
	Timestamp    time.Time         `json:"timestamp"`
	StepID       string            `json:"step_id"`
	Context      map[string]string `json:"context,omitempty"`
	Command      []string          `json:"command"`
	Workdir      string            `json:"workdir"`
	Env          map[string]string `json:"env,omitempty"`
	ExitCode     int               `json:"exit_code"`
	Duration     string            `json:"duration"`
	StderrTail   string            `json:"stderr_tail,omitempty"`
	InputHashes  map[string]string `json:"input_hashes"`
	OutputHashes map[string]string `json:"output_hashes"`
}
