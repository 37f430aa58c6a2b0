package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"VoiceBrief/internal/domain"
	"VoiceBrief/internal/ports"
)

// PostgresStore persists messages and tasks into Postgres, partitioned by
// subscriber id. Writes are conditional creates (ON CONFLICT DO NOTHING), so
// a concurrent second run for the same subscriber cannot duplicate or
// overwrite a record.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.MessageStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// MessageExists reports whether the message was stored before.
func (s *PostgresStore) MessageExists(ctx context.Context, subscriberID, sourceID string) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("database is not configured")
	}

	query, args, err := s.builder.
		Select("1").
		From("messages").
		Where(sq.Eq{"subscriber_id": subscriberID, "source_id": sourceID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build message exists query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query message exists: %w", err)
	}
	return true, nil
}

// TasksExistForMessage reports whether any task was already derived from the
// given source message.
func (s *PostgresStore) TasksExistForMessage(ctx context.Context, subscriberID, sourceMessageID string) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("database is not configured")
	}

	query, args, err := s.builder.
		Select("1").
		From("tasks").
		Where(sq.Eq{"subscriber_id": subscriberID, "source_message_id": sourceMessageID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build task exists query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query task exists: %w", err)
	}
	return true, nil
}

// CommitBatch writes all staged records inside one transaction. Conflicting
// rows are left untouched, preserving write-once semantics.
func (s *PostgresStore) CommitBatch(ctx context.Context, subscriberID string, messages []domain.Message, tasks []domain.Task) error {
	if s.db == nil {
		return fmt.Errorf("database is not configured")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, msg := range messages {
		query, args, err := s.builder.
			Insert("messages").
			Columns("subscriber_id", "source_id", "type", "sender", "subject", "channel",
				"content", "ts", "priority", "read", "attachments", "mentions").
			Values(subscriberID, msg.SourceID, string(msg.Type), msg.Sender, msg.Subject, msg.Channel,
				msg.Content, msg.Timestamp, string(msg.Priority), msg.Read, msg.Attachments, pq.Array(msg.Mentions)).
			Suffix("ON CONFLICT (subscriber_id, source_id) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("build message insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert message %s: %w", msg.SourceID, err)
		}
	}

	for _, task := range tasks {
		query, args, err := s.builder.
			Insert("tasks").
			Columns("id", "subscriber_id", "source_message_id", "title", "description",
				"due_date", "created_on", "priority", "completed", "source", "tags", "assigned_to").
			Values(task.ID, subscriberID, task.SourceMessageID, task.Title, task.Description,
				task.DueDate, task.CreatedOn, string(task.Priority), task.Completed,
				string(task.Source), pq.Array(task.Tags), pq.Array(task.AssignedTo)).
			Suffix("ON CONFLICT (id) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("build task insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert task %s: %w", task.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// RecentUnread returns the subscriber's unread messages received since the
// given time, newest first.
func (s *PostgresStore) RecentUnread(ctx context.Context, subscriberID string, since time.Time) ([]domain.Message, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database is not configured")
	}

	query, args, err := s.builder.
		Select("source_id", "type", "sender", "subject", "channel", "content",
			"ts", "priority", "read", "attachments", "mentions").
		From("messages").
		Where(sq.Eq{"subscriber_id": subscriberID, "read": false}).
		Where(sq.GtOrEq{"ts": since}).
		OrderBy("ts DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent unread query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent unread: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var (
			msg      domain.Message
			msgType  string
			priority string
			mentions pq.StringArray
		)
		if err := rows.Scan(&msg.SourceID, &msgType, &msg.Sender, &msg.Subject, &msg.Channel,
			&msg.Content, &msg.Timestamp, &priority, &msg.Read, &msg.Attachments, &mentions); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Type = domain.MessageType(msgType)
		msg.Priority = domain.Priority(priority)
		msg.Mentions = mentions
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return messages, nil
}

// MarkRead flags the given messages as read after a delivered briefing.
func (s *PostgresStore) MarkRead(ctx context.Context, subscriberID string, sourceIDs []string) error {
	if s.db == nil {
		return fmt.Errorf("database is not configured")
	}
	if len(sourceIDs) == 0 {
		return nil
	}

	query, args, err := s.builder.
		Update("messages").
		Set("read", true).
		Where(sq.Eq{"subscriber_id": subscriberID}).
		Where("source_id = ANY(?)", pq.StringArray(sourceIDs)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark read query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
