// Package health provides dependency health reporting for long-running commands.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// CheckFunc reports a dependency as unhealthy by returning an error.
type CheckFunc func(ctx context.Context) error

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Name   string       `json:"name"`
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus      `json:"system_status"`
	Components   []ComponentHealth `json:"components"`
}

type check struct {
	fn       CheckFunc
	critical bool
}

// Monitor runs registered checks.
type Monitor struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
}

// NewMonitor creates a monitor. Each check gets timeout to answer.
func NewMonitor(timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Monitor{checks: make(map[string]check), timeout: timeout}
}

// Register adds a check. A failing critical check makes the system critical;
// any other failure degrades it.
func (m *Monitor) Register(name string, critical bool, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check{fn: fn, critical: critical}
}

// CheckHealth runs every check and aggregates the result (worst case wins).
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	checks := make(map[string]check, len(m.checks))
	for k, v := range m.checks {
		checks[k] = v
	}
	m.mu.RUnlock()
	sort.Strings(names)

	report := HealthReport{SystemStatus: StatusHealthy}
	for _, name := range names {
		c := checks[name]
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := c.fn(cctx)
		cancel()

		ch := ComponentHealth{Name: name, Status: StatusHealthy}
		if err != nil {
			ch.Error = err.Error()
			ch.Status = StatusDegraded
			if c.critical {
				ch.Status = StatusCritical
			}
		}
		report.Components = append(report.Components, ch)

		switch {
		case ch.Status == StatusCritical:
			report.SystemStatus = StatusCritical
		case ch.Status == StatusDegraded && report.SystemStatus == StatusHealthy:
			report.SystemStatus = StatusDegraded
		}
	}
	return report
}
