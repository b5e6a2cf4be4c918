package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// OpObserver receives the outcome of every Redis command.
type OpObserver interface {
	ObserveStoreOp(operation, status string, duration time.Duration)
}

// NewClient parses redisURL, connects and verifies the connection with PING.
// Every command passes through a circuit breaker. observer may be nil.
func NewClient(ctx context.Context, redisURL string, observer OpObserver) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	rdb.AddHook(newBreakerHook())
	if observer != nil {
		rdb.AddHook(&metricsHook{observer: observer})
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

type metricsHook struct {
	observer OpObserver
}

var _ goredis.Hook = (*metricsHook)(nil)

func (h *metricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		h.observer.ObserveStoreOp("dial", status(err), time.Since(start))
		return conn, err
	}
}

func (h *metricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observer.ObserveStoreOp(cmd.Name(), status(err), time.Since(start))
		return err
	}
}

func (h *metricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.observer.ObserveStoreOp("pipeline", status(err), time.Since(start))
		return err
	}
}

func status(err error) string {
	if err != nil && err != goredis.Nil {
		return "error"
	}
	return "success"
}
