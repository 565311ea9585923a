// Package worker provides goroutine pool management.
//
// A Pool wraps an ants pool with context-aware task submission and a
// uniform shutdown path.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the worker pool collection: one pool per job worker class
// (spec.md §5 concurrency model). Fetch runs ingest/content-fetch jobs;
// LLM runs summarization and other LLM-bound jobs, sized smaller since
// those calls are rate-limited by the provider rather than by us.
type Pools struct {
	Fetch *Pool
	LLM   *Pool

	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// PoolConfig contains worker pool configuration.
type PoolConfig struct {
	FetchPoolSize int
	LLMPoolSize   int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		FetchPoolSize: 20,
		LLMPoolSize:   4,
	}
}

// NewPools creates the worker pool collection.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	fetchAnts, err := ants.NewPool(cfg.FetchPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	llmAnts, err := ants.NewPool(cfg.LLMPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(30*time.Second),
	)
	if err != nil {
		fetchAnts.Release()
		serviceCancel()
		return nil, err
	}

	return &Pools{
		Fetch:         &Pool{pool: fetchAnts, name: "fetch"},
		LLM:           &Pool{pool: llmAnts, name: "llm"},
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a context-aware task. The task receives the caller's
// context and should check ctx.Done() at blocking points. If the context is
// already canceled, returns ctx.Err() immediately without submitting.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return p.pool.Submit(func() {
		select {
		case <-ctx.Done():
			logger.Debug("task skipped: context canceled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
}

// SubmitDetached submits a detached background task bound to the pool
// collection's service lifecycle context rather than a request context, so
// it survives request cancellation but still respects graceful shutdown.
func (p *Pools) SubmitDetached(poolName string, task Task) error {
	var pool *Pool
	switch poolName {
	case "llm":
		pool = p.LLM
	default:
		pool = p.Fetch
	}

	return pool.pool.Submit(func() {
		select {
		case <-p.serviceCtx.Done():
			logger.Debug("detached task skipped: service shutting down",
				zap.String("pool", poolName),
			)
			return
		default:
		}
		task(p.serviceCtx)
	})
}

// Shutdown gracefully shuts down all pools with a timeout.
func (p *Pools) Shutdown() {
	p.serviceCancel()

	const shutdownTimeout = 30 * time.Second
	if err := p.Fetch.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("fetch pool shutdown timeout", zap.Error(err))
	}
	if err := p.LLM.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("llm pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool metrics for observability.
func (p *Pools) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"fetch": map[string]int{
			"running": p.Fetch.pool.Running(),
			"free":    p.Fetch.pool.Free(),
			"cap":     p.Fetch.pool.Cap(),
		},
		"llm": map[string]int{
			"running": p.LLM.pool.Running(),
			"free":    p.LLM.pool.Free(),
			"cap":     p.LLM.pool.Cap(),
		},
	}
}
