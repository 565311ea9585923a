// Package jobs defines the River job Args/Worker pairs that carry the
// SemperVigil pipeline from source polling through to a published site
// (spec.md §4). Every stage transition is a durable enqueue: workers never
// call each other in-process, only via riverClient.Insert.
package jobs

import (
	"context"

	"github.com/jackc/pgx/v5"
	river "github.com/riverqueue/river"
	"go.uber.org/zap"

	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
)

// classify maps a pipeline error into the form River expects: a permanent
// failure becomes river.JobCancel so it is never retried, while a
// transient/rate-limited/internal error is returned as-is so River's
// backoff schedule retries it.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if !apperrors.RetryableFrom(err) {
		return river.JobCancel(err)
	}
	return err
}

// enqueue inserts args using the River client River itself placed on ctx for
// the currently running job, rather than threading a *river.Client[pgx.Tx]
// through every worker's constructor. This is River's documented pattern
// for a handler that needs to insert a successor job (spec.md §4: "Each
// transition is a durable enqueue"), and it sidesteps the circular
// dependency a constructor-injected client would create (the client needs
// every worker registered before it can be built; the workers would need
// the client before it exists).
func enqueue(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) {
	client, err := river.ClientFromContext[pgx.Tx](ctx)
	if err != nil {
		logger.Warn("failed to resolve river client from context", zap.String("kind", args.Kind()), zap.Error(err))
		return
	}
	if _, err := client.Insert(ctx, args, opts); err != nil {
		logger.Warn("failed to enqueue job", zap.String("kind", args.Kind()), zap.Error(err))
	}
}
