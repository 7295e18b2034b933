package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/pharmacy-marketplace/internal/database"
	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
)

// Relay drains committed outbox rows into a Publisher.  A row is marked
// dispatched only after the publisher accepted it, so delivery is
// at-least-once.
type Relay struct {
	outbox   *repository.OutboxRepo
	pub      Publisher
	log      *zap.Logger
	interval time.Duration
	batch    int
	now      func() time.Time
}

func NewRelay(outbox *repository.OutboxRepo, pub Publisher, log *zap.Logger, interval time.Duration, batch int) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batch < 1 {
		batch = 50
	}
	return &Relay{outbox: outbox, pub: pub, log: log, interval: interval, batch: batch, now: time.Now}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := r.Tick(ctx)
			if err != nil && ctx.Err() == nil {
				r.log.Warn("outbox relay tick failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.log.Debug("outbox relay dispatched", zap.Int("count", n))
			}
		}
	}
}

// Tick claims one batch and publishes it, returning how many rows were
// dispatched.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	dispatched := 0
	err := database.InTx(ctx, r.outbox.DB(), func(tx *sql.Tx) error {
		recs, err := r.outbox.ClaimTx(ctx, tx, r.batch)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			var ev Event
			if err := json.Unmarshal(rec.Payload, &ev); err != nil {
				r.log.Error("outbox payload unreadable", zap.Uint64("event_id", rec.ID), zap.Error(err))
				if err := r.outbox.MarkFailedTx(ctx, tx, rec.ID, err.Error()); err != nil {
					return err
				}
				continue
			}
			ev.ID, ev.Kind = rec.ID, rec.Kind

			if err := r.pub.Publish(ctx, ev); err != nil {
				r.log.Warn("outbox publish failed",
					zap.Uint64("event_id", rec.ID), zap.Int("attempts", rec.Attempts+1), zap.Error(err))
				if err := r.outbox.MarkFailedTx(ctx, tx, rec.ID, err.Error()); err != nil {
					return err
				}
				continue
			}
			if err := r.outbox.MarkDispatchedTx(ctx, tx, rec.ID, r.now().UTC()); err != nil {
				return err
			}
			dispatched++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return dispatched, nil
}
