// Package health runs preflight checks against everything a build depends on
// (the temp and output directories, PostgreSQL, Kafka, Redis) and aggregates
// them into one report.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Check probes one dependency. A nil error means it is usable.
type Check func(ctx context.Context) error

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// Report is the aggregated result of all component checks, sorted by name.
type Report struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  string            `json:"timestamp"`
}

// Checker holds named checks and runs them concurrently.
type Checker struct {
	checks map[string]Check
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		logger: slog.Default().With("component", "health"),
	}
}

// Register adds a named check, replacing any check of the same name.
func (c *Checker) Register(name string, check Check) {
	c.checks[name] = check
}

// Run executes every check and reports down if any of them failed.
func (c *Checker) Run(ctx context.Context) Report {
	report := Report{
		Status:     StatusUp,
		Components: make([]ComponentHealth, 0, len(c.checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, check := range c.checks {
		name, check := name, check
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := check(ctx)
			result := ComponentHealth{
				Name:    name,
				Status:  StatusUp,
				Latency: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				result.Status = StatusDown
				result.Message = err.Error()
				c.logger.Warn("check failed", "check", name, "error", err)
			}
			mu.Lock()
			report.Components = append(report.Components, result)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(report.Components, func(i, j int) bool {
		return report.Components[i].Name < report.Components[j].Name
	})
	for _, comp := range report.Components {
		if comp.Status == StatusDown {
			report.Status = StatusDown
		}
	}
	return report
}

// DirWritable checks that a file can be created in dir.
func DirWritable(dir string) Check {
	return func(ctx context.Context) error {
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return fmt.Errorf("directory %s not writable: %w", dir, err)
		}
		name := f.Name()
		f.Close()
		return os.Remove(name)
	}
}
