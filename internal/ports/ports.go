package ports

import (
	"context"
	"time"

	"VoiceBrief/internal/domain"
)

// CompletionRequest carries one prompt to the hosted text-generation model.
type CompletionRequest struct {
	SystemInstructions string
	UserContent        string
	Temperature        float64
	MaxOutputTokens    int
}

// CompletionClient submits a prompt and returns the raw answer text.
// Responses are expected, not guaranteed, to contain one JSON object.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// MessageSource pulls a subscriber's fresh items from the upstream provider.
type MessageSource interface {
	FetchWindow(ctx context.Context, subscriberID string, since time.Time) ([]domain.Message, error)
}

// MessageStore persists classified messages and derived tasks, write-once.
type MessageStore interface {
	MessageExists(ctx context.Context, subscriberID, sourceID string) (bool, error)
	TasksExistForMessage(ctx context.Context, subscriberID, sourceMessageID string) (bool, error)
	CommitBatch(ctx context.Context, subscriberID string, messages []domain.Message, tasks []domain.Task) error
	RecentUnread(ctx context.Context, subscriberID string, since time.Time) ([]domain.Message, error)
	MarkRead(ctx context.Context, subscriberID string, sourceIDs []string) error
}

// VoiceSettings tunes the synthesized voice.
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64
	Speed           float64
}

// SpeechSynthesizer converts a script into a binary audio artifact.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, settings VoiceSettings) ([]byte, error)
}

// AudioDelivery hands a finished audio artifact to the messaging transport.
type AudioDelivery interface {
	SendVoice(ctx context.Context, chatID string, artifact domain.AudioArtifact) error
}

// Scheduler controls when subscriber runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
