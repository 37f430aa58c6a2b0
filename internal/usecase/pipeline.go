package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"VoiceBrief/internal/domain"
	"VoiceBrief/internal/persist"
	"VoiceBrief/internal/ports"
)

// Classifier assigns a priority to one message; never errors, fails soft.
type Classifier interface {
	Classify(ctx context.Context, msg domain.Message) domain.ClassificationResult
}

// Decomposer derives atomic tasks from one message; never errors, fails soft.
type Decomposer interface {
	Decompose(ctx context.Context, msg domain.Message) domain.DecompositionResult
}

// Composer renders a briefing script from a message pool; nil means no-op.
type Composer interface {
	Compose(ctx context.Context, pool []domain.Message, maxItems int) *domain.BriefingScript
}

// Persister stages and commits a batch of new records.
type Persister interface {
	Persist(ctx context.Context, subscriberID string, messages []domain.Message, tasks []domain.Task) (persist.BatchResult, error)
}

// Subscriber identifies one briefing recipient and their delivery endpoints.
type Subscriber struct {
	ID      string
	ChatID  string
	VoiceID string
}

// BriefingOptions bounds selection for one briefing run.
type BriefingOptions struct {
	Window   time.Duration
	MaxItems int
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source      ports.MessageSource
	Classifier  Classifier
	Decomposer  Decomposer
	Persister   Persister
	Store       ports.MessageStore
	Composer    Composer
	Synthesizer ports.SpeechSynthesizer
	Delivery    ports.AudioDelivery
	Voice       ports.VoiceSettings
	Logger      *slog.Logger
}

// Pipeline implements the triage and briefing workflows for one subscriber at
// a time.
type Pipeline struct {
	source      ports.MessageSource
	classifier  Classifier
	decomposer  Decomposer
	persister   Persister
	store       ports.MessageStore
	composer    Composer
	synthesizer ports.SpeechSynthesizer
	delivery    ports.AudioDelivery
	voice       ports.VoiceSettings
	logger      *slog.Logger
	now         func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:      deps.Source,
		classifier:  deps.Classifier,
		decomposer:  deps.Decomposer,
		persister:   deps.Persister,
		store:       deps.Store,
		composer:    deps.Composer,
		synthesizer: deps.Synthesizer,
		delivery:    deps.Delivery,
		voice:       deps.Voice,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// ProcessSubscriber classifies the subscriber's fresh messages, decomposes
// the actionable ones into tasks, and persists both idempotently. Messages
// are handled sequentially to respect upstream rate limits; a classification
// or decomposition failure degrades per message and never aborts the run.
func (p *Pipeline) ProcessSubscriber(ctx context.Context, subscriberID string, since time.Time) error {
	if p.source == nil {
		return fmt.Errorf("message source is not configured")
	}
	if p.classifier == nil || p.decomposer == nil || p.persister == nil {
		return fmt.Errorf("pipeline is missing a core component")
	}

	fetched, err := p.source.FetchWindow(ctx, subscriberID, since)
	if err != nil {
		return fmt.Errorf("fetch messages for %s: %w", subscriberID, err)
	}
	if len(fetched) == 0 {
		p.debug("no fresh messages", "subscriber", subscriberID)
		return nil
	}

	classified := make([]domain.Message, 0, len(fetched))
	var tasks []domain.Task
	for _, msg := range fetched {
		result := p.classifier.Classify(ctx, msg)
		msg.Priority = result.Label
		p.debug("classified", "subscriber", subscriberID, "source_id", msg.SourceID,
			"label", result.Label, "reasoning", result.Reasoning)
		classified = append(classified, msg)

		if !msg.Actionable() {
			continue
		}
		decomposition := p.decomposer.Decompose(ctx, msg)
		if decomposition.ShouldCreateTask {
			tasks = append(tasks, decomposition.Tasks...)
		}
	}

	result, err := p.persister.Persist(ctx, subscriberID, classified, tasks)
	if err != nil {
		return fmt.Errorf("persist batch for %s: %w", subscriberID, err)
	}

	p.info("subscriber processed", "subscriber", subscriberID,
		"messages", len(classified), "tasks", len(tasks),
		"messages_staged", result.MessagesStaged, "tasks_staged", result.TasksStaged,
		"skipped", result.Skipped)
	return nil
}

// ComposeBriefing selects the subscriber's highest-priority unread messages,
// composes a spoken script, synthesizes audio, and hands it to delivery. An
// empty selection is a silent no-op; a synthesis or delivery failure surfaces
// and nothing is sent.
func (p *Pipeline) ComposeBriefing(ctx context.Context, sub Subscriber, opts BriefingOptions) error {
	if p.store == nil || p.composer == nil {
		return fmt.Errorf("briefing pipeline is missing a core component")
	}

	since := p.now().Add(-opts.Window)
	pool, err := p.store.RecentUnread(ctx, sub.ID, since)
	if err != nil {
		return fmt.Errorf("load unread pool for %s: %w", sub.ID, err)
	}

	script := p.composer.Compose(ctx, pool, opts.MaxItems)
	if script == nil {
		p.debug("nothing to brief", "subscriber", sub.ID, "pool", len(pool))
		return nil
	}

	if p.synthesizer == nil || p.delivery == nil {
		return fmt.Errorf("briefing delivery is not configured")
	}

	audio, err := p.synthesizer.Synthesize(ctx, script.Text, sub.VoiceID, p.voice)
	if err != nil {
		return fmt.Errorf("synthesize briefing for %s: %w", sub.ID, err)
	}

	artifact := domain.AudioArtifact{
		Name: artifactName(sub.ID, p.now()),
		Data: audio,
	}
	if err := p.delivery.SendVoice(ctx, sub.ChatID, artifact); err != nil {
		return fmt.Errorf("deliver briefing for %s: %w", sub.ID, err)
	}

	// The briefing is out; a failed read-flag update must not fail the run
	// and trigger a duplicate delivery.
	if err := p.store.MarkRead(ctx, sub.ID, script.SourceMessageIDs); err != nil {
		p.warn("mark read failed after delivery", "subscriber", sub.ID, "error", err)
	}

	p.info("briefing delivered", "subscriber", sub.ID,
		"items", len(script.SourceMessageIDs), "artifact", artifact.Name)
	return nil
}

func artifactName(subscriberID string, at time.Time) string {
	return fmt.Sprintf("briefing-%s-%s.mp3", subscriberID, at.UTC().Format("20060102-150405"))
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
