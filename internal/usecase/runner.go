package usecase

import (
	"context"
	"log/slog"
	"time"

	"VoiceBrief/internal/ports"
)

// RunnerDeps wires the scheduling driver with the pipeline.
type RunnerDeps struct {
	Driver          ports.Scheduler
	Pipeline        *Pipeline
	Subscribers     []Subscriber
	ProcessWindow   time.Duration
	Briefing        BriefingOptions
	SubscriberDelay time.Duration
	Logger          *slog.Logger
}

// Runner executes the per-subscriber triage and briefing runs on each
// scheduler tick, strictly one subscriber at a time. A failed subscriber is
// logged and the loop moves on; a short delay between subscribers smooths
// third-party API load.
type Runner struct {
	driver          ports.Scheduler
	pipeline        *Pipeline
	subscribers     []Subscriber
	processWindow   time.Duration
	briefing        BriefingOptions
	subscriberDelay time.Duration
	logger          *slog.Logger
	sleep           func(time.Duration)
}

// NewRunner returns a helper to start/stop recurring runs.
func NewRunner(deps RunnerDeps) *Runner {
	return &Runner{
		driver:          deps.Driver,
		pipeline:        deps.Pipeline,
		subscribers:     deps.Subscribers,
		processWindow:   deps.ProcessWindow,
		briefing:        deps.Briefing,
		subscriberDelay: deps.SubscriberDelay,
		logger:          deps.Logger,
		sleep:           time.Sleep,
	}
}

// Start registers the subscriber loop with the provided scheduler.
func (r *Runner) Start(ctx context.Context) error {
	if r.driver == nil || r.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		r.runAll(ctx, trigger)
	}

	return r.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (r *Runner) Stop(ctx context.Context) error {
	if r.driver == nil {
		return nil
	}

	return r.driver.Stop(ctx)
}

func (r *Runner) runAll(ctx context.Context, trigger time.Time) {
	since := trigger.Add(-r.processWindow)
	for i, sub := range r.subscribers {
		if ctx.Err() != nil {
			return
		}

		if err := r.pipeline.ProcessSubscriber(ctx, sub.ID, since); err != nil {
			r.warn("subscriber run failed", "subscriber", sub.ID, "error", err)
		} else if err := r.pipeline.ComposeBriefing(ctx, sub, r.briefing); err != nil {
			r.warn("briefing run failed", "subscriber", sub.ID, "error", err)
		}

		if r.subscriberDelay > 0 && i < len(r.subscribers)-1 {
			r.sleep(r.subscriberDelay)
		}
	}
}

func (r *Runner) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
