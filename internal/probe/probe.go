// Package probe waits for TCP services to start accepting connections.
//
// Probing is a bounded retry with a fixed interval: containers on a shared
// compose network either come up within a small window or not at all, so
// there is no backoff. The total budget is MaxAttempts x Interval.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

// Outcome is the result of probing one target.
type Outcome string

const (
	Ready    Outcome = "ready"
	TimedOut Outcome = "timed-out"
)

// Target describes one service to wait for. It is built from config before
// probing begins and never modified.
type Target struct {
	Name        string
	Host        string
	Port        int
	MaxAttempts int
	Interval    time.Duration
	DialTimeout time.Duration
	// Required targets abort the run on TimedOut; optional ones only warn.
	Required bool
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Report is the detailed outcome of Probe.
type Report struct {
	Target   Target
	Outcome  Outcome
	Attempts int
	LastErr  error
}

// DependencyTimeoutError is returned by Wait when a required target never
// accepted a connection.
type DependencyTimeoutError struct {
	Target   Target
	Attempts int
	LastErr  error
}

func (e *DependencyTimeoutError) Error() string {
	return fmt.Sprintf("%s (%s) not reachable after %d attempts at %s intervals: %v",
		e.Target.Name, e.Target.Addr(), e.Attempts, e.Target.Interval, e.LastErr)
}

func (e *DependencyTimeoutError) Unwrap() error { return e.LastErr }

// ExitCode satisfies the exit-code contract used by the CLI.
func (e *DependencyTimeoutError) ExitCode() int { return 3 }

// Dialer opens a connection; *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Observer receives one call per finished probe.
type Observer interface {
	ObserveProbe(target string, outcome Outcome, attempts int)
}

// Prober performs readiness probes. It holds no per-target state.
type Prober struct {
	dialer   Dialer
	clock    clock.Clock
	observer Observer
}

// Option configures a Prober.
type Option func(*Prober)

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option { return func(p *Prober) { p.dialer = d } }

// WithClock replaces the wall clock used for retry sleeps.
func WithClock(c clock.Clock) Option { return func(p *Prober) { p.clock = c } }

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option { return func(p *Prober) { p.observer = o } }

// New returns a Prober using a real TCP dialer and the wall clock.
func New(opts ...Option) *Prober {
	p := &Prober{
		dialer: &net.Dialer{},
		clock:  clock.WallClock,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe attempts a TCP connect to target until one succeeds or MaxAttempts
// attempts have failed. Attempts are separated by target.Interval.
// Cancelling ctx stops the wait early and reports TimedOut.
func (p *Prober) Probe(ctx context.Context, target Target) Report {
	attempts := 0
	var lastErr error

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			attempts++
			lastErr = p.dial(ctx, target)
			return lastErr
		},
		NotifyFunc: func(err error, attempt int) {
			slog.DebugContext(ctx, "service not ready",
				"service", target.Name, "addr", target.Addr(),
				"attempt", attempt, "max_attempts", target.MaxAttempts, "err", err)
		},
		Attempts: target.MaxAttempts,
		Delay:    target.Interval,
		Clock:    p.clock,
		Stop:     ctx.Done(),
	})

	report := Report{Target: target, Attempts: attempts, LastErr: lastErr}
	if err == nil {
		report.Outcome = Ready
	} else {
		report.Outcome = TimedOut
		if lastErr == nil {
			lastErr = err
			report.LastErr = err
		}
	}

	if p.observer != nil {
		p.observer.ObserveProbe(target.Name, report.Outcome, report.Attempts)
	}
	return report
}

// Wait probes target and converts the report into the failure policy:
// required targets that time out return *DependencyTimeoutError, optional
// targets log a warning and return nil.
func (p *Prober) Wait(ctx context.Context, target Target) (Report, error) {
	slog.InfoContext(ctx, "waiting for service",
		"service", target.Name, "addr", target.Addr(), "required", target.Required)

	report := p.Probe(ctx, target)
	if report.Outcome == Ready {
		slog.InfoContext(ctx, "service ready", "service", target.Name, "attempts", report.Attempts)
		return report, nil
	}

	if target.Required {
		return report, &DependencyTimeoutError{Target: target, Attempts: report.Attempts, LastErr: report.LastErr}
	}
	slog.WarnContext(ctx, "optional service not reachable, continuing",
		"service", target.Name, "addr", target.Addr(), "attempts", report.Attempts, "err", report.LastErr)
	return report, nil
}

func (p *Prober) dial(ctx context.Context, target Target) error {
	dialCtx := ctx
	if target.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, target.DialTimeout)
		defer cancel()
	}

	conn, err := p.dialer.DialContext(dialCtx, "tcp", target.Addr())
	if err != nil {
		return err
	}
	return conn.Close()
}
