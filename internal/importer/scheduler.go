package importer

import (
	"context"
	"errors"
	"time"

	"github.com/amopromo/flightdeck/internal/logging"
)

// Scheduler runs the import pipeline on a fixed interval, the scheduled
// counterpart of the manual trigger
type Scheduler struct {
	pipeline *Pipeline
	opts     Options
}

func NewScheduler(pipeline *Pipeline, opts Options) *Scheduler {
	return &Scheduler{pipeline: pipeline, opts: opts}
}

// RunScheduled runs an import immediately and then on every tick until the
// context is cancelled. Failures are logged and the loop keeps going; an
// already-running import simply skips the tick.
func (s *Scheduler) RunScheduled(ctx context.Context, interval time.Duration) {
	logging.Info("Scheduled airport import started", "interval", interval.String())

	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Scheduled airport import stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	run, err := s.pipeline.Run(ctx, s.opts)
	if err != nil {
		if errors.Is(err, ErrImportInProgress) {
			logging.Warn("Skipping scheduled import, previous run still active")
			return
		}
		logging.Error("Scheduled airport import failed", "error", err.Error())
		return
	}
	logging.Info("Scheduled airport import completed",
		"run_id", run.ID,
		"created", run.Counts.Created,
		"updated", run.Counts.Updated,
		"skipped", run.Counts.Skipped,
		"failed", run.Counts.Failed)
}
