// Package health reports the readiness of the service's backing stores.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is satisfied by *sql.DB and by PingFunc.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger, e.g. a redis or mongo ping.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Status values reported per dependency and overall.
const (
	StatusUp   = "up"
	StatusDown = "down"
)

// Report is the outcome of one check run.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every dependency answered.
func (r Report) Healthy() bool { return r.Status == StatusUp }

type dependency struct {
	name   string
	pinger Pinger
}

// Checker pings named dependencies concurrently, each bounded by timeout.
type Checker struct {
	timeout time.Duration
	deps    []dependency
	log     *zap.Logger
}

// NewChecker returns a Checker with no dependencies. A non-positive timeout defaults to 2s.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{timeout: timeout, log: zap.NewNop()}
}

// WithLogger sets the logger that receives ping failures. Nil keeps the current one.
func (c *Checker) WithLogger(log *zap.Logger) *Checker {
	if log != nil {
		c.log = log
	}
	return c
}

// Add registers a dependency. Nil pingers are ignored.
func (c *Checker) Add(name string, p Pinger) *Checker {
	if p != nil {
		c.deps = append(c.deps, dependency{name: name, pinger: p})
	}
	return c
}

// Names returns the registered dependency names in sorted order.
func (c *Checker) Names() []string {
	names := make([]string, 0, len(c.deps))
	for _, d := range c.deps {
		names = append(names, d.name)
	}
	sort.Strings(names)
	return names
}

// Check pings every dependency. A failed ping is reported as down; the error is only logged.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	report := Report{Status: StatusUp, Checks: make(map[string]string, len(c.deps))}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, d := range c.deps {
		wg.Add(1)
		go func(d dependency) {
			defer wg.Done()
			result := StatusUp
			if err := d.pinger.PingContext(ctx); err != nil {
				result = StatusDown
				c.log.Warn("health: ping failed", zap.String("dependency", d.name), zap.Error(err))
			}
			mu.Lock()
			report.Checks[d.name] = result
			if result != StatusUp {
				report.Status = StatusDown
			}
			mu.Unlock()
		}(d)
	}
	wg.Wait()
	return report
}
