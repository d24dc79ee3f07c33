package clients

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sabiqazhar/frappe-env-setup/internal/config"
)

// mockRedisPinger is a test double for redisPinger.
type mockRedisPinger struct {
	pingVal string
	pingErr error
}

func (m *mockRedisPinger) PingResult(_ context.Context) (string, error) {
	return m.pingVal, m.pingErr
}

func (m *mockRedisPinger) Close() error { return nil }

func TestRedisProbe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pingVal    string
		pingErr    error
		wantOK     bool
		wantErrSub string
	}{
		{
			name:    "PING returns PONG",
			pingVal: "PONG",
			wantOK:  true,
		},
		{
			name:       "PING returns error",
			pingErr:    errors.New("connection refused"),
			wantErrSub: "connection refused",
		},
		{
			name:       "PING returns unexpected value",
			pingVal:    "WHOOPS",
			wantErrSub: "unexpected PING response",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := &RedisClient{
				name:   "redis-cache",
				target: config.RedisTarget{Host: "redis-cache", Port: 6379},
				cb:     NewCircuitBreaker("redis-test-" + tc.name),
				pinger: &mockRedisPinger{pingVal: tc.pingVal, pingErr: tc.pingErr},
			}

			result := client.Probe(context.Background())

			assert.Equal(t, "redis-cache", result.Name)
			assert.Equal(t, tc.wantOK, result.OK)
			if tc.wantErrSub != "" {
				assert.Contains(t, result.Error, tc.wantErrSub)
			}
			if tc.wantOK {
				assert.Empty(t, result.Error)
				assert.Equal(t, "redis://redis-cache:6379", result.Detail)
			}
		})
	}
}

func TestRedisProbeCircuitBreaker_OpensAfterThreeFailures(t *testing.T) {
	t.Parallel()

	client := &RedisClient{
		name:   "redis-queue",
		cb:     NewCircuitBreaker("redis-cb-open-test"),
		pinger: &mockRedisPinger{pingErr: errors.New("connection refused")},
	}

	// Three consecutive failures should trip the breaker.
	for i := range 3 {
		result := client.Probe(context.Background())
		assert.False(t, result.OK, "probe %d should fail", i+1)
		assert.NotEqual(t, "circuit open", result.Error,
			"probe %d should not be circuit-open yet", i+1)
	}

	// The 4th call must be rejected immediately by the open breaker.
	result := client.Probe(context.Background())
	assert.False(t, result.OK)
	assert.Equal(t, "circuit open", result.Error)
}
