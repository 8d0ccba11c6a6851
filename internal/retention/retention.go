// Package retention purges the turns of conversations that have been
// idle longer than the configured period. Conversation rows are kept so
// the (owner, model) pair keeps resolving to the same conversation.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"tutorchat/pkg/config"
	"tutorchat/pkg/logger"
	"tutorchat/pkg/store"
)

const defaultPeriod = 720 * time.Hour // 30 days

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.RetentionConfig, st store.Backend) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	// map empty cron to default daily @02:00
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	period := defaultPeriod
	if cfg.Period != "" {
		d, err := time.ParseDuration(cfg.Period)
		if err != nil || d <= 0 {
			logger.Error("retention_invalid_period", "period", cfg.Period)
			return nil, fmt.Errorf("invalid retention period: %s", cfg.Period)
		}
		period = d
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", period.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, st, cronExpr, period)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, st store.Backend, cronExpr string, period time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(ctx, st, period); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce sweeps every conversation and purges the turns of those whose
// last activity is older than period. Exported so admin tooling and tests
// can trigger a sweep on demand.
func RunOnce(ctx context.Context, st store.Backend, period time.Duration) error {
	convs, err := st.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	cutoff := time.Now().Add(-period).UnixNano()

	purged := 0
	for _, conv := range convs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		turns, err := st.ListTurns(ctx, conv.ID)
		if err != nil {
			logger.Error("retention_list_turns_failed", "conversation", conv.ID, "error", err)
			continue
		}
		if len(turns) == 0 {
			continue
		}
		last := turns[len(turns)-1].CreatedAt
		if last >= cutoff {
			continue
		}
		if err := st.DeleteTurns(ctx, conv.ID); err != nil {
			logger.Error("retention_purge_failed", "conversation", conv.ID, "error", err)
			continue
		}
		purged++
		logger.Info("retention_purged", "conversation", conv.ID, "turns", len(turns))
	}
	logger.Info("retention_run_complete", "conversations", len(convs), "purged", purged)
	return nil
}
