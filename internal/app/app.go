package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"VoiceBrief/internal/briefing"
	"VoiceBrief/internal/classify"
	"VoiceBrief/internal/config"
	"VoiceBrief/internal/decompose"
	"VoiceBrief/internal/infrastructure/delivery"
	"VoiceBrief/internal/infrastructure/inbox"
	"VoiceBrief/internal/infrastructure/llm"
	"VoiceBrief/internal/infrastructure/scheduler"
	"VoiceBrief/internal/infrastructure/speech"
	"VoiceBrief/internal/infrastructure/storage"
	"VoiceBrief/internal/logging"
	"VoiceBrief/internal/persist"
	"VoiceBrief/internal/ports"
	"VoiceBrief/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	return &Application{cfg: cfg, logger: baseLogger}
}

// Run connects the store, assembles the pipeline, and blocks on the
// scheduling loop until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	cfg := a.cfg

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer func() { _ = db.Close() }()
	store := storage.NewPostgresStore(db)

	completion := llm.NewClient(cfg.Completion)
	source := inbox.NewFeedSource(cfg.Provider, nil, a.logger.With("component", "inbox"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:      source,
		Classifier:  classify.New(completion, a.logger.With("component", "classifier")),
		Decomposer:  decompose.New(completion, a.logger.With("component", "decomposer")),
		Persister:   persist.New(store, a.logger.With("component", "persist")),
		Store:       store,
		Composer:    briefing.NewComposer(completion, a.logger.With("component", "composer"), cfg.Briefing.MaxExcerptLen),
		Synthesizer: speech.NewClient(cfg.Speech),
		Delivery:    delivery.NewTelegramDelivery(cfg.Telegram.BotToken, nil),
		Voice: ports.VoiceSettings{
			Stability:       cfg.Speech.Stability,
			SimilarityBoost: cfg.Speech.SimilarityBoost,
			Speed:           cfg.Speech.Speed,
		},
		Logger: a.logger.With("component", "pipeline"),
	})

	runner := usecase.NewRunner(usecase.RunnerDeps{
		Driver:        scheduler.NewIntervalScheduler(cfg.Scheduler.Interval.Std()),
		Pipeline:      pipeline,
		Subscribers:   toSubscribers(cfg),
		ProcessWindow: time.Duration(cfg.Briefing.WindowHours) * time.Hour,
		Briefing: usecase.BriefingOptions{
			Window:   time.Duration(cfg.Briefing.WindowHours) * time.Hour,
			MaxItems: cfg.Briefing.MaxItems,
		},
		SubscriberDelay: cfg.Scheduler.SubscriberDelay.Std(),
		Logger:          a.logger.With("component", "runner"),
	})

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start runner: %w", err)
	}
	defer func() { _ = runner.Stop(context.Background()) }()

	a.logger.Info("voicebrief running",
		"subscribers", len(cfg.Subscribers),
		"interval", cfg.Scheduler.Interval.Std(),
		"timezone", cfg.Scheduler.Location().String())

	<-ctx.Done()
	return ctx.Err()
}

func toSubscribers(cfg config.Config) []usecase.Subscriber {
	subscribers := make([]usecase.Subscriber, 0, len(cfg.Subscribers))
	for _, sub := range cfg.Subscribers {
		voice := sub.VoiceID
		if voice == "" {
			voice = cfg.Speech.DefaultVoiceID
		}
		subscribers = append(subscribers, usecase.Subscriber{
			ID:      sub.ID,
			ChatID:  sub.ChatID,
			VoiceID: voice,
		})
	}
	return subscribers
}
