package domain

import "time"

// TaskPriority ranks tasks independently of message priority.
type TaskPriority string

const (
	TaskHigh   TaskPriority = "high"
	TaskMedium TaskPriority = "medium"
	TaskLow    TaskPriority = "low"
)

// TaskSource records which channel a task was derived from.
type TaskSource string

const (
	TaskFromEmail   TaskSource = "email"
	TaskFromChat    TaskSource = "chat"
	TaskFromChannel TaskSource = "channel"
	TaskFromManual  TaskSource = "manual"
)

// Task is one atomic, independently completable action item. ID is a freshly
// generated identity; SourceMessageID is a non-unique reference back to the
// message the task was decomposed from (empty for manual tasks).
type Task struct {
	ID              string
	Title           string
	Description     string
	DueDate         *time.Time
	CreatedOn       time.Time
	Priority        TaskPriority
	Completed       bool
	Source          TaskSource
	SourceMessageID string
	Tags            []string
	AssignedTo      []string
}

// DecompositionResult is the ephemeral outcome of one decomposition call:
// zero, one, or many task records derived from a single message.
type DecompositionResult struct {
	ShouldCreateTask bool
	IsMultiple       bool
	Tasks            []Task
}

// TaskSourceFor maps a message type to the matching task source.
func TaskSourceFor(t MessageType) TaskSource {
	switch t {
	case TypeChat:
		return TaskFromChat
	case TypeChannel:
		return TaskFromChannel
	default:
		return TaskFromEmail
	}
}
