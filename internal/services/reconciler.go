package services

import (
	"context"
	"time"

	"github.com/anonto42/instaverse/backend/internal/repositories"
	"go.uber.org/zap"
)

const defaultReconcileBatch = 100

// Reconciler replays notification deltas that failed after their primary write.
// Replays are checked against the current content, see NotificationService.Replay.
type Reconciler struct {
	pending repositories.ReconcileRepository
	ledger  *NotificationService
	log     *zap.Logger
	batch   int
}

func NewReconciler(pending repositories.ReconcileRepository, ledger *NotificationService, log *zap.Logger, batch int) *Reconciler {
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &Reconciler{pending: pending, ledger: ledger, log: log, batch: batch}
}

// RunOnce replays one batch of pending deltas and reports how many were applied
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	rows, err := r.pending.Pending(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, row := range rows {
		if err := r.ledger.Replay(ctx, row.Payload.Data()); err != nil {
			r.log.Warn("pending delta replay failed",
				zap.Uint("id", row.ID),
				zap.String("operation", row.Operation),
				zap.Int("attempts", row.Attempts+1),
				zap.Error(err),
			)
			if markErr := r.pending.MarkFailed(ctx, row.ID, err); markErr != nil {
				return applied, markErr
			}
			continue
		}
		if err := r.pending.MarkApplied(ctx, row.ID); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Start replays pending deltas immediately and then on every tick until ctx
// is cancelled. A non-positive interval disables the loop.
func (r *Reconciler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	r.run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

func (r *Reconciler) run(ctx context.Context) {
	applied, err := r.RunOnce(ctx)
	if err != nil {
		r.log.Error("notification reconcile failed", zap.Error(err))
	} else if applied > 0 {
		r.log.Info("notification reconcile complete", zap.Int("applied", applied))
	}
}
