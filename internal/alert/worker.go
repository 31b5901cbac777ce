package alert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stockroom/internal/metrics"
	"stockroom/internal/models"
)

type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxAttempts of 1 means a failed delivery is never retried.
	MaxAttempts int
}

type Worker struct {
	outbox  *Outbox
	eval    *Evaluator
	cfg     WorkerConfig
	metrics *metrics.Metrics
	lg      *zap.SugaredLogger
	now     func() time.Time
}

func NewWorker(outbox *Outbox, eval *Evaluator, cfg WorkerConfig, m *metrics.Metrics, lg *zap.SugaredLogger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Worker{outbox: outbox, eval: eval, cfg: cfg, metrics: m, lg: lg, now: time.Now}
}

// Run polls the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.lg.Infow("alert worker started", "interval", w.cfg.PollInterval, "batch", w.cfg.BatchSize, "max_attempts", w.cfg.MaxAttempts)
	t := time.NewTicker(w.cfg.PollInterval)
	defer t.Stop()
	for {
		if _, err := w.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			w.lg.Errorw("alert batch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			w.lg.Infow("alert worker stopped")
			return
		case <-t.C:
		}
	}
}

// ProcessBatch handles up to BatchSize pending intents and returns how many it claimed.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	rows, err := w.outbox.Pending(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, in := range rows {
		ok, err := w.outbox.Claim(ctx, in.ID)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		n++
		w.process(ctx, in)
	}
	return n, nil
}

func (w *Worker) process(ctx context.Context, in models.AlertIntent) {
	attempts := in.Attempts + 1
	var out Outcome
	switch in.Path {
	case models.AlertPathTechnician:
		tech := ""
		if in.TechnicianID != nil {
			tech = *in.TechnicianID
		}
		out = w.eval.CheckTechnician(ctx, in.ItemID, in.Quantity, tech)
	default:
		out = w.eval.CheckCompany(ctx, in.ItemID, in.Quantity)
	}

	status, lastErr := models.AlertStatusDone, ""
	if out.Err != nil {
		lastErr = out.Err.Error()
	}
	if out.Failed() {
		status = models.AlertStatusFailed
		if attempts < w.cfg.MaxAttempts {
			status = models.AlertStatusPending
		}
	}
	// A claimed intent is always finished, even when shutdown cancelled the delivery.
	if err := w.outbox.Finish(context.WithoutCancel(ctx), in.ID, status, lastErr, w.now()); err != nil {
		w.lg.Errorw("alert intent update failed", "intent_id", in.ID, "error", err)
		return
	}
	if status != models.AlertStatusPending {
		w.metrics.IntentProcessed(status)
	}
}
