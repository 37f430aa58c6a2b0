package domain

import "time"

// MessageType enumerates the upstream channels a message can arrive from.
type MessageType string

const (
	TypeEmail   MessageType = "email"
	TypeChat    MessageType = "chat"
	TypeChannel MessageType = "channel"
)

// Priority is the closed triage taxonomy applied to every message.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityAction   Priority = "action"
	PriorityInfo     Priority = "info"
)

// Message is one ingested communication item. SourceID is the stable
// provider-side identity and the sole deduplication key; content is immutable
// once ingested, only Priority and Read are mutated by the pipeline.
type Message struct {
	SourceID    string
	Type        MessageType
	Sender      string
	Subject     string
	Channel     string
	Content     string
	Timestamp   time.Time
	Priority    Priority
	Read        bool
	Attachments int
	Mentions    []string
}

// Actionable reports whether the assigned priority makes the message a
// candidate for task decomposition.
func (m Message) Actionable() bool {
	return m.Priority == PriorityCritical || m.Priority == PriorityAction
}

// ClassificationResult is the ephemeral output of one classifier call.
// The label folds into Message.Priority; the reasoning is log-only.
type ClassificationResult struct {
	Label     Priority
	Reasoning string
}
