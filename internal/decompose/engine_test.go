package decompose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"VoiceBrief/internal/domain"
	"VoiceBrief/internal/ports"
)

type fakeCompletion struct {
	response string
	err      error
	lastReq  ports.CompletionRequest
}

func (f *fakeCompletion) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.lastReq = req
	return f.response, f.err
}

var testNow = time.Date(2026, time.August, 28, 9, 0, 0, 0, time.UTC)

func newTestEngine(client ports.CompletionClient) *Engine {
	e := New(client, nil)
	e.now = func() time.Time { return testNow }
	seq := 0
	e.newID = func() string {
		seq++
		return fmt.Sprintf("task-%d", seq)
	}
	return e
}

func actionMessage() domain.Message {
	return domain.Message{
		SourceID:  "m1",
		Type:      domain.TypeEmail,
		Sender:    "alice@example.org",
		Subject:   "Quarterly report",
		Content:   "Please review the attached draft and send feedback by Friday. Also book the review meeting.",
		Timestamp: testNow.Add(-time.Hour),
		Priority:  domain.PriorityAction,
	}
}

func TestDecomposeSingleTask(t *testing.T) {
	t.Parallel()

	client := &fakeCompletion{response: `{"isGenerateTask": true, "generateTask": {"isMultiple": false, "task": {"title": "Review draft", "description": "Send feedback", "priority": "high", "tags": ["report"], "dueDate": "2026-08-29"}}}`}
	e := newTestEngine(client)

	got := e.Decompose(context.Background(), actionMessage())
	if !got.ShouldCreateTask || got.IsMultiple {
		t.Fatalf("unexpected shape: %+v", got)
	}
	if len(got.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(got.Tasks))
	}

	task := got.Tasks[0]
	if task.Title != "Review draft" {
		t.Fatalf("unexpected title: %s", task.Title)
	}
	if task.Priority != domain.TaskHigh {
		t.Fatalf("unexpected priority: %s", task.Priority)
	}
	if task.DueDate == nil || task.DueDate.Format("2006-01-02") != "2026-08-29" {
		t.Fatalf("unexpected due date: %v", task.DueDate)
	}
	if task.CreatedOn != testNow {
		t.Fatalf("createdOn not stamped by engine: %v", task.CreatedOn)
	}
	if task.Completed {
		t.Fatal("new task must not be completed")
	}
	if task.SourceMessageID != "m1" || task.Source != domain.TaskFromEmail {
		t.Fatalf("source linkage wrong: %+v", task)
	}
	if task.ID == "" {
		t.Fatal("task id not assigned")
	}
}

func TestDecomposeMultipleTasks(t *testing.T) {
	t.Parallel()

	client := &fakeCompletion{response: `{"isGenerateTask": true, "generateTask": {"isMultiple": true, "task": [
		{"title": "Review draft", "dueDate": "2026-08-29"},
		{"title": "Send feedback", "dueDate": "not a date"},
		{"title": "Book meeting"}
	]}}`}
	e := newTestEngine(client)

	got := e.Decompose(context.Background(), actionMessage())
	if !got.IsMultiple {
		t.Fatal("expected multiple-task shape")
	}
	if len(got.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(got.Tasks))
	}

	for i, task := range got.Tasks {
		if len(task.Tags) == 0 {
			t.Fatalf("task %d has no tags", i)
		}
		if task.Priority != domain.TaskMedium {
			t.Fatalf("task %d priority = %s, want defaulted medium", i, task.Priority)
		}
	}
	if got.Tasks[0].DueDate == nil {
		t.Fatal("valid due date dropped")
	}
	if got.Tasks[1].DueDate != nil {
		t.Fatal("unparsable due date must become nil")
	}

	ids := map[string]bool{}
	for _, task := range got.Tasks {
		if ids[task.ID] {
			t.Fatalf("duplicate task id %s", task.ID)
		}
		ids[task.ID] = true
	}
}

func TestDecomposeNoTask(t *testing.T) {
	t.Parallel()

	client := &fakeCompletion{response: `{"isGenerateTask": false}`}
	e := newTestEngine(client)

	got := e.Decompose(context.Background(), actionMessage())
	if got.ShouldCreateTask || len(got.Tasks) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestDecomposeFallbackErrorTask(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		client *fakeCompletion
	}{
		{"transport error", &fakeCompletion{err: errors.New("boom")}},
		{"malformed json", &fakeCompletion{response: "{'broken':"}},
		{"missing required field", &fakeCompletion{response: `{"generateTask": {}}`}},
		{"task missing", &fakeCompletion{response: `{"isGenerateTask": true, "generateTask": {"isMultiple": false}}`}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(tc.client)
			got := e.Decompose(context.Background(), actionMessage())

			if len(got.Tasks) != 1 {
				t.Fatalf("fallback must yield exactly one task, got %d", len(got.Tasks))
			}
			task := got.Tasks[0]
			if task.Title != "Review email" {
				t.Fatalf("unexpected fallback title: %s", task.Title)
			}
			if !strings.Contains(task.Description, "Please review the attached draft") {
				t.Fatalf("fallback description does not quote the content: %s", task.Description)
			}
			if task.Priority != domain.TaskMedium {
				t.Fatalf("fallback priority = %s", task.Priority)
			}
			wantTags := []string{"email", "error-task"}
			if len(task.Tags) != 2 || task.Tags[0] != wantTags[0] || task.Tags[1] != wantTags[1] {
				t.Fatalf("fallback tags = %v", task.Tags)
			}
			if task.DueDate == nil || !task.DueDate.Equal(testNow.Add(24*time.Hour)) {
				t.Fatalf("fallback due date = %v", task.DueDate)
			}
		})
	}
}

func TestDecomposeNormalizationDefaults(t *testing.T) {
	t.Parallel()

	client := &fakeCompletion{response: `{"isGenerateTask": true, "generateTask": {"isMultiple": false, "task": {"title": "  ", "description": ""}}}`}
	e := newTestEngine(client)

	msg := actionMessage()
	msg.Attachments = 2
	msg.Mentions = []string{"bob"}

	got := e.Decompose(context.Background(), msg)
	task := got.Tasks[0]

	if task.Title != "Quarterly report" {
		t.Fatalf("empty title should fall back to subject, got %q", task.Title)
	}
	if task.Description == "" {
		t.Fatal("empty description should fall back to message excerpt")
	}

	want := []string{"email", "action", "attachments", "mentions"}
	if len(task.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", task.Tags, want)
	}
	for i := range want {
		if task.Tags[i] != want[i] {
			t.Fatalf("tags = %v, want %v", task.Tags, want)
		}
	}
}

func TestDecomposeStaleDueDateDropped(t *testing.T) {
	t.Parallel()

	client := &fakeCompletion{response: `{"isGenerateTask": true, "generateTask": {"isMultiple": false, "task": {"title": "Old deadline", "dueDate": "2020-01-01"}}}`}
	e := newTestEngine(client)

	got := e.Decompose(context.Background(), actionMessage())
	if got.Tasks[0].DueDate != nil {
		t.Fatalf("due date far in the past must be dropped, got %v", got.Tasks[0].DueDate)
	}
}

func TestDecomposePromptCarriesPriority(t *testing.T) {
	t.Parallel()

	client := &fakeCompletion{response: `{"isGenerateTask": false}`}
	e := newTestEngine(client)

	e.Decompose(context.Background(), actionMessage())
	if !strings.Contains(client.lastReq.UserContent, "Assigned priority: action") {
		t.Fatalf("prompt missing assigned priority:\n%s", client.lastReq.UserContent)
	}
}
