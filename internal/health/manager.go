package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultCheckTimeout = 5 * time.Second
	defaultParallelism  = 8
)

// Manager holds the checks for one satellite configuration and runs them
// concurrently, each under its own deadline.
type Manager struct {
	mu          sync.RWMutex
	checkers    []Checker
	timeout     time.Duration
	parallelism int
}

// NewManager returns an empty manager with a five second per-check timeout.
func NewManager() *Manager {
	return &Manager{
		timeout:     defaultCheckTimeout,
		parallelism: defaultParallelism,
	}
}

// WithTimeout sets the deadline given to every check.
func (m *Manager) WithTimeout(timeout time.Duration) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return m
}

// WithParallelism bounds how many checks run at once. n < 1 means unbounded.
func (m *Manager) WithParallelism(n int) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parallelism = n
	return m
}

// AddChecker registers c. Checks with the same name overwrite each other's
// result, so callers keep names unique.
func (m *Manager) AddChecker(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Check runs every registered check and returns the results keyed by name.
// A check that returns nil is reported unhealthy.
func (m *Manager) Check(ctx context.Context) map[string]*Result {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	timeout, parallelism := m.timeout, m.parallelism
	m.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]*Result, len(checkers))
	)
	// Check errors are carried in the results, so the group never cancels.
	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for _, c := range checkers {
		g.Go(func() error {
			res := runCheck(ctx, c, timeout)
			mu.Lock()
			results[c.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runCheck(ctx context.Context, c Checker, timeout time.Duration) *Result {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res := c.Check(checkCtx)
	if res == nil {
		res = Unhealthy("check returned no result")
	}
	if res.Latency == 0 {
		res.Latency = time.Since(start)
	}
	return res
}

// OverallStatus is the worst status in results; an empty set is healthy.
func (m *Manager) OverallStatus(results map[string]*Result) Status {
	status := StatusHealthy
	for _, res := range results {
		switch res.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// Failing lists the registered checks whose result is unhealthy, in
// registration order. Checks missing from results are skipped.
func (m *Manager) Failing(results map[string]*Result) []string {
	var names []string
	for _, name := range m.CheckNames() {
		if res, ok := results[name]; ok && res.Status == StatusUnhealthy {
			names = append(names, name)
		}
	}
	return names
}

// CheckNames returns the registered check names in registration order.
func (m *Manager) CheckNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.checkers))
	for _, c := range m.checkers {
		names = append(names, c.Name())
	}
	return names
}

// Count returns the number of registered checks.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checkers)
}
