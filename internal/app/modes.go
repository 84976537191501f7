package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/collabkale/kaledao/internal/feed"
)

// DaemonMode runs the long-lived core: the live price feed into the cache
// and the background resolution sweep.
func (a *App) DaemonMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting daemon mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Oracle.WsURL != "" {
		priceFeed := feed.NewReflectorWSFeed(
			a.cfg.Oracle.WsURL, a.cfg.Oracle.Assets, deps.PriceCache, a.logger)
		g.Go(func() error {
			err := priceFeed.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if deps.Resolver != nil {
		g.Go(func() error {
			err := deps.Resolver.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	return g.Wait()
}

// ResolveMode runs one resolution sweep and exits, for cron-style operation.
func (a *App) ResolveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting resolve mode")

	if deps.Resolver == nil {
		return fmt.Errorf("app: resolve mode requires resolver.enabled = true")
	}
	if err := deps.Resolver.Sweep(ctx); err != nil {
		_ = deps.Notifier.Notify(ctx, "error", "Resolution sweep failed", err.Error())
		return fmt.Errorf("app: resolve sweep: %w", err)
	}
	return nil
}

// ArchiveMode moves settled predictions and aged audit entries past the
// retention window to object storage, then exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
	const batch = 10000

	preds, err := deps.Archiver.ArchivePredictions(ctx, cutoff, batch)
	if err != nil {
		_ = deps.Notifier.Notify(ctx, "error", "Archive failed", err.Error())
		return fmt.Errorf("app: archive predictions: %w", err)
	}
	audit, err := deps.Archiver.ArchiveAudit(ctx, cutoff, batch)
	if err != nil {
		_ = deps.Notifier.Notify(ctx, "error", "Archive failed", err.Error())
		return fmt.Errorf("app: archive audit: %w", err)
	}

	a.logger.InfoContext(ctx, "archive complete",
		slog.Int64("predictions", preds),
		slog.Int64("audit_entries", audit),
	)
	return nil
}

// MonitorMode periodically checks oracle freshness for every configured
// asset and alerts when prices go stale. It performs no writes.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Oracle.WsURL != "" {
		priceFeed := feed.NewReflectorWSFeed(
			a.cfg.Oracle.WsURL, a.cfg.Oracle.Assets, deps.PriceCache, a.logger)
		g.Go(func() error {
			err := priceFeed.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Oracle.MaxStaleness.Duration)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				a.checkOracle(ctx, deps)
			}
		}
	})

	return g.Wait()
}

// checkOracle fetches the latest price for every configured asset and
// notifies on failures or stale data.
func (a *App) checkOracle(ctx context.Context, deps *Dependencies) {
	for _, asset := range a.cfg.Oracle.Assets {
		pd, err := deps.Oracle.LastPrice(ctx, a.cfg.Oracle.Contract, asset)
		if err != nil {
			a.logger.WarnContext(ctx, "oracle check failed",
				slog.String("asset", asset),
				slog.String("error", err.Error()),
			)
			_ = deps.Notifier.Notify(ctx, "error", "Oracle unavailable",
				fmt.Sprintf("asset %s: %v", asset, err))
			continue
		}

		age := time.Since(pd.Timestamp)
		if age > a.cfg.Oracle.MaxStaleness.Duration {
			_ = deps.Notifier.Notify(ctx, "error", "Oracle price stale",
				fmt.Sprintf("asset %s last updated %s ago", asset, age.Round(time.Second)))
		}

		a.logger.InfoContext(ctx, "oracle check",
			slog.String("asset", asset),
			slog.Int64("price", pd.Price),
			slog.Duration("age", age),
		)
	}
}
