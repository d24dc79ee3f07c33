package clients

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/health"
)

// redisPinger is the interface used by RedisClient for health probing.
// It is implemented by the real go-redis client and by test doubles.
type redisPinger interface {
	PingResult(ctx context.Context) (string, error)
	Close() error
}

// realRedisPinger adapts *redis.Client to redisPinger so tests can inject a
// fake without constructing a *redis.StatusCmd.
type realRedisPinger struct {
	client *redis.Client
}

func (r *realRedisPinger) PingResult(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

func (r *realRedisPinger) Close() error {
	return r.client.Close()
}

// RedisClient checks one redis role (cache, queue or socketio).
type RedisClient struct {
	name   string
	target config.RedisTarget
	cb     *gobreaker.CircuitBreaker
	pinger redisPinger
}

// NewRedisClient creates a RedisClient. The go-redis client is built on each
// Probe call.
func NewRedisClient(name string, target config.RedisTarget, cb *gobreaker.CircuitBreaker) *RedisClient {
	return &RedisClient{name: name, target: target, cb: cb}
}

// Probe sends PING and validates the PONG response. After 3 consecutive
// failures the breaker opens and calls return "circuit open" immediately.
func (c *RedisClient) Probe(ctx context.Context) health.ProbeResult {
	return guarded(c.cb, c.name, func() (string, error) {
		p := c.pinger
		if p == nil {
			p = &realRedisPinger{
				client: redis.NewClient(&redis.Options{
					Addr: net.JoinHostPort(c.target.Host, strconv.Itoa(c.target.Port)),
				}),
			}
			defer p.Close() //nolint:errcheck
		}

		val, err := p.PingResult(ctx)
		if err != nil {
			return "", fmt.Errorf("ping: %w", err)
		}
		if val != "PONG" {
			return "", fmt.Errorf("unexpected PING response: %q", val)
		}
		return c.target.URL(), nil
	})
}
