// Package health checks the local prerequisites of a collocation run: the
// data lists, the collocation executable and the directories the batch
// driver writes to.
//
// Example usage:
//
//	manager := health.NewManager()
//	manager.AddChecker(health.NewDataListChecker("HIR1B", "/data/HIR1B_latest"))
//	manager.AddChecker(health.NewDirectoryChecker("work-dir", "work"))
//
//	results := manager.Check(ctx)
//	for name, result := range results {
//	    logger.Info("health check", "name", name, "status", result.Status)
//	}
package health

import (
	"context"
	"time"
)

// Checker verifies one prerequisite.
type Checker interface {
	// Name returns the unique name of this check, lowercase with hyphens
	// (e.g. "data-list-hir1b").
	Name() string

	// Check performs the check. It should respect the context deadline.
	Check(ctx context.Context) *Result
}

// Status represents the health check status.
type Status string

const (
	// StatusHealthy indicates the prerequisite is usable.
	StatusHealthy Status = "healthy"

	// StatusDegraded indicates a run can proceed but something needs
	// attention, such as a directory that will be created on first use.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy indicates a run will fail.
	StatusUnhealthy Status = "unhealthy"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Result represents the result of a health check.
type Result struct {
	Status  Status         `json:"status" yaml:"status"`
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Latency time.Duration  `json:"latency" yaml:"latency"`
}

// NewResult creates a new health check result with the given status and message.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]any),
	}
}

// WithDetail adds a detail to the result and returns the result for chaining.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// WithLatency sets the latency and returns the result for chaining.
func (r *Result) WithLatency(latency time.Duration) *Result {
	r.Latency = latency
	return r
}

// Healthy creates a healthy result with the given message.
func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

// Degraded creates a degraded result with the given message.
func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

// Unhealthy creates an unhealthy result with the given message.
func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}
