package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/pkg/logger"
)

// Start begins consuming jobs. Bootstrap only wires components; nothing
// runs against the queue until Start is called.
func (a *App) Start(ctx context.Context) error {
	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		logger.Info("river client started, jobs will now be consumed")
	}
	return nil
}

// Shutdown stops job consumption and releases every held resource. It is
// safe to call even if Start was never called or Bootstrap returned early.
func (a *App) Shutdown() {
	shutdownCtx := context.Background()

	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop river client", zap.Error(err))
		}
		logger.Info("river client stopped")
	}

	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
