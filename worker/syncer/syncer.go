package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/pandodao/walletx/core"
)

// Source is refreshed on every tick.
type Source interface {
	Sync(ctx context.Context) (core.Snapshot, error)
}

type Config struct {
	Interval time.Duration `valid:"required"`
}

func New(source Source, logger *slog.Logger, cfg Config) *Syncer {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	return &Syncer{
		source: source,
		logger: logger.With("worker", "syncer"),
		cfg:    cfg,
	}
}

// Syncer keeps the displayed balance fresh between operator intents.
type Syncer struct {
	source Source
	logger *slog.Logger
	cfg    Config
}

func (w *Syncer) Run(ctx context.Context) error {
	w.logger.Info("syncer start", "interval", w.cfg.Interval)

	dur := w.cfg.Interval
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dur):
		}

		if err := w.run(ctx); err != nil {
			// back off on failure, capped at ten intervals
			dur = min(2*dur, 10*w.cfg.Interval)
			continue
		}

		dur = w.cfg.Interval
	}
}

func (w *Syncer) run(ctx context.Context) error {
	snap, err := w.source.Sync(ctx)
	if err != nil {
		w.logger.Error("source.Sync", "err", err)
		return err
	}

	w.logger.Debug("synced", "balance", snap.Balance, "state", snap.State)
	return nil
}
