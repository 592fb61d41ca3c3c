package worker

import (
	"context"
	"time"

	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/services/publisher"
)

// Unit is one logical unit of work, e.g. one park
type Unit interface {
	Name() string

	// Run does the work and returns how many records it produced
	Run(ctx context.Context) (int, error)
}

// Checkpoint durably persists the session after a unit
type Checkpoint func() error

// Planner builds the units of one pass
type Planner func(ctx context.Context) ([]Unit, error)

// Worker runs units one at a time, checkpointing and publishing progress after each
type Worker struct {
	run        string
	publisher  publisher.Publisher
	checkpoint Checkpoint
	interval   time.Duration
	logger     *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(
	run string,
	pub publisher.Publisher,
	checkpoint Checkpoint,
	interval time.Duration,
) *Worker {
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	return &Worker{
		run:        run,
		publisher:  pub,
		checkpoint: checkpoint,
		interval:   interval,
		logger:     logger.ForWorker().WithField("run", run),
	}
}

// Start runs a pass every interval until ctx is done; a zero interval runs a single pass.
// Cancellation stops the worker cleanly.
func (w *Worker) Start(ctx context.Context, plan Planner) error {
	for {
		start := time.Now()

		units, err := plan(ctx)
		if err != nil {
			return err
		}
		if err := w.RunUnits(ctx, units); err != nil {
			if ctx.Err() != nil {
				w.logger.Info().Msg("Worker stopped")
				return nil
			}
			return err
		}

		elapsed := time.Since(start)
		w.logger.Info().Dur("elapsed", elapsed).Int("units", len(units)).Msg("Scrape pass complete")

		if w.interval <= 0 {
			return nil
		}

		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunUnits runs units in order. The session is checkpointed after every unit,
// including a failed one, so a failure loses at most the unit in flight.
// The first failure stops the pass.
func (w *Worker) RunUnits(ctx context.Context, units []Unit) error {
	defer func() {
		// Trim the stream after the pass
		if err := w.publisher.TrimStreams(); err != nil {
			w.logger.Warn().Err(err).Msg("Stream trimming failed")
		}
	}()

	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, runErr := u.Run(ctx)

		status := "done"
		if runErr != nil {
			status = "failed"
		}

		if w.checkpoint != nil {
			if err := w.checkpoint(); err != nil {
				w.logger.Error().Err(err).Str("unit", u.Name()).Msg("Checkpoint failed")
				if runErr == nil {
					return err
				}
			}
		}

		w.publish(publisher.Progress{
			Run:       w.run,
			Unit:      u.Name(),
			Status:    status,
			Done:      i + 1,
			Total:     len(units),
			Records:   records,
			Error:     errorString(runErr),
			Timestamp: time.Now(),
		})

		if runErr != nil {
			w.logger.Error().Err(runErr).Str("unit", u.Name()).Msg("Unit failed, stopping")
			return runErr
		}

		w.logger.Info().Str("unit", u.Name()).Int("records", records).Int("done", i+1).Int("total", len(units)).Msg("Unit complete")
	}
	return nil
}

func (w *Worker) publish(event publisher.Progress) {
	data, err := event.Encode()
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to encode progress")
		return
	}
	if err := w.publisher.Publish(publisher.ProgressKey, data); err != nil {
		w.logger.Warn().Err(err).Str("unit", event.Unit).Msg("Failed to publish progress")
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
