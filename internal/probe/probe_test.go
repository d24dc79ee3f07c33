package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedDialer fails until attempt number succeedOn (1-based); zero
// means it never succeeds.
type scriptedDialer struct {
	mu        sync.Mutex
	calls     int
	succeedOn int
}

func (d *scriptedDialer) DialContext(_ context.Context, _, _ string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.succeedOn > 0 && d.calls >= d.succeedOn {
		client, server := net.Pipe()
		server.Close()
		return client, nil
	}
	return nil, errors.New("connect: connection refused")
}

func (d *scriptedDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
	attempts []int
}

func (o *recordingObserver) ObserveProbe(_ string, outcome Outcome, attempts int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
	o.attempts = append(o.attempts, attempts)
}

func target(maxAttempts int, interval time.Duration) Target {
	return Target{Name: "mariadb", Host: "mariadb", Port: 3306, MaxAttempts: maxAttempts, Interval: interval, Required: true}
}

func TestProbe_ReadyOnFirstAttempt(t *testing.T) {
	t.Parallel()

	d := &scriptedDialer{succeedOn: 1}
	clk := testclock.NewClock(time.Now())
	obs := &recordingObserver{}
	p := New(WithDialer(d), WithClock(clk), WithObserver(obs))

	report := p.Probe(context.Background(), target(30, 5*time.Second))

	assert.Equal(t, Ready, report.Outcome)
	assert.Equal(t, 1, report.Attempts)
	assert.NoError(t, report.LastErr)
	assert.Equal(t, []Outcome{Ready}, obs.outcomes)
}

func TestProbe_TimedOutAfterExactlyMaxAttempts(t *testing.T) {
	t.Parallel()

	const maxAttempts = 4
	interval := 5 * time.Second

	d := &scriptedDialer{}
	clk := testclock.NewClock(time.Now())
	p := New(WithDialer(d), WithClock(clk))

	done := make(chan Report, 1)
	go func() { done <- p.Probe(context.Background(), target(maxAttempts, interval)) }()

	// Each failed attempt except the last waits exactly one interval.
	for i := 0; i < maxAttempts-1; i++ {
		require.NoError(t, clk.WaitAdvance(interval, time.Second, 1), "sleep %d", i+1)
	}

	select {
	case report := <-done:
		assert.Equal(t, TimedOut, report.Outcome)
		assert.Equal(t, maxAttempts, report.Attempts)
		assert.Equal(t, maxAttempts, d.count())
		assert.ErrorContains(t, report.LastErr, "connection refused")
	case <-time.After(5 * time.Second):
		t.Fatal("probe did not finish after max attempts")
	}
}

func TestProbe_ReadyAfterRetries(t *testing.T) {
	t.Parallel()

	d := &scriptedDialer{succeedOn: 3}
	clk := testclock.NewClock(time.Now())
	p := New(WithDialer(d), WithClock(clk))

	done := make(chan Report, 1)
	go func() { done <- p.Probe(context.Background(), target(30, time.Second)) }()

	require.NoError(t, clk.WaitAdvance(time.Second, time.Second, 1))
	require.NoError(t, clk.WaitAdvance(time.Second, time.Second, 1))

	report := <-done
	assert.Equal(t, Ready, report.Outcome)
	assert.Equal(t, 3, report.Attempts)
}

func TestProbe_ContextCancelStopsWaiting(t *testing.T) {
	t.Parallel()

	d := &scriptedDialer{}
	clk := testclock.NewClock(time.Now())
	p := New(WithDialer(d), WithClock(clk))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Report, 1)
	go func() { done <- p.Probe(ctx, target(30, time.Hour)) }()

	// Wait until the prober is sleeping, then cancel.
	require.NoError(t, clk.WaitAdvance(0, time.Second, 1))
	cancel()

	select {
	case report := <-done:
		assert.Equal(t, TimedOut, report.Outcome)
		assert.Equal(t, 1, report.Attempts)
	case <-time.After(5 * time.Second):
		t.Fatal("probe ignored context cancellation")
	}
}

func TestProbe_RealListener(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	report := New().Probe(context.Background(), Target{
		Name: "redis-cache", Host: "127.0.0.1", Port: port,
		MaxAttempts: 3, Interval: 10 * time.Millisecond, DialTimeout: time.Second,
	})
	assert.Equal(t, Ready, report.Outcome)
	assert.Equal(t, "127.0.0.1:"+strconv.Itoa(port), report.Target.Addr())
}

func TestWait_RequiredTimeoutIsFatal(t *testing.T) {
	t.Parallel()

	p := New(WithDialer(&scriptedDialer{}))
	tgt := target(2, time.Millisecond)

	report, err := p.Wait(context.Background(), tgt)
	require.Error(t, err)

	var dte *DependencyTimeoutError
	require.True(t, errors.As(err, &dte))
	assert.Equal(t, 2, dte.Attempts)
	assert.Equal(t, 3, dte.ExitCode())
	assert.Equal(t, TimedOut, report.Outcome)
	assert.Contains(t, err.Error(), "mariadb (mariadb:3306) not reachable after 2 attempts")
}

func TestWait_OptionalTimeoutIsWarning(t *testing.T) {
	t.Parallel()

	p := New(WithDialer(&scriptedDialer{}))
	tgt := target(2, time.Millisecond)
	tgt.Name = "redis-socketio"
	tgt.Required = false

	report, err := p.Wait(context.Background(), tgt)
	require.NoError(t, err)
	assert.Equal(t, TimedOut, report.Outcome)
}
