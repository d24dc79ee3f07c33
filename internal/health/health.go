// Package health runs protocol-level checks against the compose services.
package health

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ProbeResult is returned by each dependency check.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Prober checks one dependency. Implementations never return an error;
// failures are reported in the result.
type Prober interface {
	Probe(ctx context.Context) ProbeResult
}

// Checker probes a fixed set of dependencies concurrently.
type Checker struct {
	probers map[string]Prober
}

// NewChecker returns a Checker over probers keyed by dependency name.
func NewChecker(probers map[string]Prober) *Checker {
	return &Checker{probers: probers}
}

// Names returns the dependency names in sorted order.
func (c *Checker) Names() []string {
	names := make([]string, 0, len(c.probers))
	for name := range c.probers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run probes every dependency concurrently and returns a map of dependency
// name to result.
func (c *Checker) Run(ctx context.Context) map[string]ProbeResult {
	results := make(map[string]ProbeResult, len(c.probers))
	var mu sync.Mutex
	var g errgroup.Group

	for name, p := range c.probers {
		name, p := name, p
		g.Go(func() error {
			res := p.Probe(ctx)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}

	// g.Wait() never returns an error because all goroutines return nil.
	_ = g.Wait()
	return results
}

// AllOK reports whether every result is healthy.
func AllOK(results map[string]ProbeResult) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}
