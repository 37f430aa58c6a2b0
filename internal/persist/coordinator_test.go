package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"VoiceBrief/internal/domain"
)

type fakeStore struct {
	messages    map[string]domain.Message
	tasks       map[string][]domain.Task
	checkErrors map[string]error
	commitErr   error
	commits     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages:    map[string]domain.Message{},
		tasks:       map[string][]domain.Task{},
		checkErrors: map[string]error{},
	}
}

func (s *fakeStore) MessageExists(_ context.Context, _, sourceID string) (bool, error) {
	if err := s.checkErrors[sourceID]; err != nil {
		return false, err
	}
	_, ok := s.messages[sourceID]
	return ok, nil
}

func (s *fakeStore) TasksExistForMessage(_ context.Context, _, sourceMessageID string) (bool, error) {
	if err := s.checkErrors["task:"+sourceMessageID]; err != nil {
		return false, err
	}
	return len(s.tasks[sourceMessageID]) > 0, nil
}

func (s *fakeStore) CommitBatch(_ context.Context, _ string, messages []domain.Message, tasks []domain.Task) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.commits++
	for _, m := range messages {
		s.messages[m.SourceID] = m
	}
	for _, t := range tasks {
		s.tasks[t.SourceMessageID] = append(s.tasks[t.SourceMessageID], t)
	}
	return nil
}

func (s *fakeStore) RecentUnread(_ context.Context, _ string, _ time.Time) ([]domain.Message, error) {
	return nil, nil
}

func (s *fakeStore) MarkRead(_ context.Context, _ string, _ []string) error {
	return nil
}

func batchInput() ([]domain.Message, []domain.Task) {
	messages := []domain.Message{
		{SourceID: "m1", Sender: "a", Priority: domain.PriorityCritical},
		{SourceID: "m2", Sender: "b", Priority: domain.PriorityInfo},
	}
	tasks := []domain.Task{
		{ID: "t1", SourceMessageID: "m1", Title: "fix outage"},
		{ID: "t2", SourceMessageID: "m1", Title: "write postmortem"},
	}
	return messages, tasks
}

func TestPersistIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	c := New(store, nil)
	messages, tasks := batchInput()

	first, err := c.Persist(context.Background(), "sub1", messages, tasks)
	if err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if first.MessagesStaged != 2 || first.TasksStaged != 2 {
		t.Fatalf("first run staged %+v", first)
	}

	second, err := c.Persist(context.Background(), "sub1", messages, tasks)
	if err != nil {
		t.Fatalf("second persist: %v", err)
	}
	if second.MessagesStaged != 0 || second.TasksStaged != 0 {
		t.Fatalf("second run must stage nothing, staged %+v", second)
	}
	if store.commits != 1 {
		t.Fatalf("expected exactly one commit, got %d", store.commits)
	}
	if len(store.messages) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(store.messages))
	}
	if len(store.tasks["m1"]) != 2 {
		t.Fatalf("expected 2 stored tasks for m1, got %d", len(store.tasks["m1"]))
	}
}

func TestPersistSkipsFailedExistenceCheck(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.checkErrors["m1"] = errors.New("store hiccup")
	c := New(store, nil)
	messages, tasks := batchInput()

	result, err := c.Persist(context.Background(), "sub1", messages, tasks)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if result.MessagesStaged != 1 {
		t.Fatalf("expected only m2 staged, got %d messages", result.MessagesStaged)
	}
	if result.Skipped != 1 {
		t.Fatalf("expected 1 skipped record, got %d", result.Skipped)
	}
	if result.TasksStaged != 2 {
		t.Fatalf("task staging should be unaffected, got %d", result.TasksStaged)
	}
	if _, ok := store.messages["m1"]; ok {
		t.Fatal("m1 must not be written after a failed check")
	}
}

func TestPersistTaskGroupSkippedTogether(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.checkErrors["task:m1"] = errors.New("store hiccup")
	c := New(store, nil)
	messages, tasks := batchInput()

	result, err := c.Persist(context.Background(), "sub1", messages, tasks)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if result.TasksStaged != 0 {
		t.Fatalf("whole task group must be skipped, staged %d", result.TasksStaged)
	}
	if result.Skipped != 1 {
		t.Fatalf("group skip counts once, got %d", result.Skipped)
	}
}

func TestPersistCommitFailureSurfaces(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.commitErr = errors.New("transaction aborted")
	c := New(store, nil)
	messages, tasks := batchInput()

	if _, err := c.Persist(context.Background(), "sub1", messages, tasks); err == nil {
		t.Fatal("commit failure must surface to the caller")
	}
}

func TestPersistEmptyStageSkipsCommit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.messages["m1"] = domain.Message{SourceID: "m1"}
	store.tasks["m1"] = []domain.Task{{ID: "t0", SourceMessageID: "m1"}}
	store.commitErr = errors.New("must not commit")
	c := New(store, nil)

	messages := []domain.Message{{SourceID: "m1"}}
	tasks := []domain.Task{{ID: "t1", SourceMessageID: "m1"}}
	if _, err := c.Persist(context.Background(), "sub1", messages, tasks); err != nil {
		t.Fatalf("empty stage must not touch commit: %v", err)
	}
}
