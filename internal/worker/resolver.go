// Package worker runs the background resolution sweep: open predictions past
// the minimum age are resolved against the oracle on a fixed interval.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/collabkale/kaledao/internal/domain"
	"github.com/collabkale/kaledao/internal/service"
)

// ResolverConfig controls the sweep cadence.
type ResolverConfig struct {
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
}

// Resolver periodically resolves open predictions. Multiple instances can
// run at once: the per-prediction lock and the guarded database update make
// the duplicates cheap no-ops.
type Resolver struct {
	cfg         ResolverConfig
	tx          domain.TxRunner
	predictions *service.PredictionService
	notifier    domain.Notifier
	logger      *slog.Logger
}

// NewResolver creates a Resolver. notifier may be nil.
func NewResolver(cfg ResolverConfig, tx domain.TxRunner, predictions *service.PredictionService, notifier domain.Notifier, logger *slog.Logger) *Resolver {
	return &Resolver{
		cfg:         cfg,
		tx:          tx,
		predictions: predictions,
		notifier:    notifier,
		logger:      logger.With(slog.String("component", "resolver")),
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Resolver) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("resolver started",
		slog.Duration("interval", r.cfg.Interval),
		slog.Duration("min_age", r.cfg.MinAge),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep resolves one batch of eligible open predictions. Per-prediction
// failures are logged and skipped; an oracle outage just leaves them open
// for the next sweep.
func (r *Resolver) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.cfg.MinAge)

	var open []domain.Prediction
	err := r.tx.InTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		open, err = st.Predictions.ListOpenBefore(ctx, cutoff, r.cfg.BatchSize)
		return err
	})
	if err != nil {
		return err
	}
	if len(open) == 0 {
		return nil
	}

	resolved := 0
	for _, p := range open {
		res, err := r.predictions.ResolvePrediction(ctx, p.ID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrAlreadyResolved), errors.Is(err, domain.ErrLockHeld):
				// Another resolver got there first.
			case errors.Is(err, domain.ErrOracleDataUnavailable):
				r.logger.Warn("oracle unavailable, leaving prediction open",
					slog.String("prediction", p.ID))
			default:
				r.logger.Error("resolve failed",
					slog.String("prediction", p.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		resolved++

		if r.notifier != nil {
			msg := fmt.Sprintf("%s %s: outcome %t", res.ID, res.Asset, *res.Outcome)
			if nerr := r.notifier.Notify(ctx, "prediction_resolved", "Prediction resolved", msg); nerr != nil {
				r.logger.Warn("notification failed", slog.String("error", nerr.Error()))
			}
		}
	}

	r.logger.Info("sweep complete",
		slog.Int("eligible", len(open)),
		slog.Int("resolved", resolved),
	)
	return nil
}
