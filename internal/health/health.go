// Package health checks that the client's dependencies are reachable.
package health

import (
	"context"
	"errors"
	"time"
)

// checkTimeout bounds each check.
const checkTimeout = 5 * time.Second

// Status of a single check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailing Status = "failing"
	StatusSkipped Status = "skipped"
)

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Check is one named probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Result is the outcome of one check.
type Result struct {
	Name     string
	Status   Status
	Err      error
	Duration time.Duration
}

// Report is the outcome of every check, in registration order.
type Report struct {
	Results []Result
}

// Healthy reports whether no check failed.
func (r Report) Healthy() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailing {
			return false
		}
	}
	return true
}

// Err joins the errors of failing checks.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Status == StatusFailing {
			errs = append(errs, errors.New(res.Name+": "+res.Err.Error()))
		}
	}
	return errors.Join(errs...)
}

// Checker runs probes.
type Checker struct {
	checks []Check
}

// NewChecker returns a Checker over checks. Checks with a nil Probe are reported as skipped.
func NewChecker(checks ...Check) *Checker {
	return &Checker{checks: checks}
}

// Add appends a check.
func (c *Checker) Add(name string, probe func(ctx context.Context) error) {
	c.checks = append(c.checks, Check{Name: name, Probe: probe})
}

// Run runs every check in order, each with its own timeout.
func (c *Checker) Run(ctx context.Context) Report {
	var rep Report
	for _, chk := range c.checks {
		if chk.Probe == nil {
			rep.Results = append(rep.Results, Result{Name: chk.Name, Status: StatusSkipped})
			continue
		}
		start := time.Now()
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := chk.Probe(checkCtx)
		cancel()
		res := Result{Name: chk.Name, Status: StatusOK, Duration: time.Since(start)}
		if err != nil {
			res.Status = StatusFailing
			res.Err = err
		}
		rep.Results = append(rep.Results, res)
	}
	return rep
}

// PingProbe adapts a Pinger. A nil pinger yields a nil probe, reported as skipped.
func PingProbe(p Pinger) func(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.PingContext
}
