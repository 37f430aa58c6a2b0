package persist

import (
	"context"
	"fmt"
	"log/slog"

	"VoiceBrief/internal/domain"
	"VoiceBrief/internal/ports"
)

// Coordinator writes classified messages and derived tasks exactly once,
// keyed by sourceId (messages) and sourceMessageId (tasks). All new records
// for one call are committed as a single batch; a failed existence check
// skips that record only, a failed commit surfaces to the caller.
type Coordinator struct {
	store  ports.MessageStore
	logger *slog.Logger
}

// New wires the backing store; logger may be nil.
func New(store ports.MessageStore, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: store, logger: logger}
}

// BatchResult reports what one Persist call actually staged.
type BatchResult struct {
	MessagesStaged int
	TasksStaged    int
	Skipped        int
}

// Persist stages every record not already stored and commits the staged set
// atomically. Records already present are harmless no-ops, which makes
// double-delivery of the same upstream item safe.
func (c *Coordinator) Persist(ctx context.Context, subscriberID string, messages []domain.Message, tasks []domain.Task) (BatchResult, error) {
	var result BatchResult
	if c.store == nil {
		return result, fmt.Errorf("message store is not configured")
	}

	var stagedMessages []domain.Message
	for _, msg := range messages {
		exists, err := c.store.MessageExists(ctx, subscriberID, msg.SourceID)
		if err != nil {
			c.warn("existence check failed, skipping message",
				"subscriber", subscriberID, "source_id", msg.SourceID, "error", err)
			result.Skipped++
			continue
		}
		if exists {
			continue
		}
		stagedMessages = append(stagedMessages, msg)
	}

	// Tasks dedupe at message granularity: if any task already exists for a
	// source message, that message was decomposed before and its whole task
	// group is dropped.
	var stagedTasks []domain.Task
	checked := map[string]bool{}
	for _, task := range tasks {
		keep, seen := checked[task.SourceMessageID]
		if !seen {
			exists, err := c.store.TasksExistForMessage(ctx, subscriberID, task.SourceMessageID)
			if err != nil {
				c.warn("existence check failed, skipping task group",
					"subscriber", subscriberID, "source_message_id", task.SourceMessageID, "error", err)
				checked[task.SourceMessageID] = false
				result.Skipped++
				continue
			}
			keep = !exists
			checked[task.SourceMessageID] = keep
		}
		if keep {
			stagedTasks = append(stagedTasks, task)
		}
	}

	result.MessagesStaged = len(stagedMessages)
	result.TasksStaged = len(stagedTasks)

	if len(stagedMessages) == 0 && len(stagedTasks) == 0 {
		return result, nil
	}

	if err := c.store.CommitBatch(ctx, subscriberID, stagedMessages, stagedTasks); err != nil {
		return BatchResult{}, fmt.Errorf("commit batch for %s: %w", subscriberID, err)
	}

	return result, nil
}

func (c *Coordinator) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
