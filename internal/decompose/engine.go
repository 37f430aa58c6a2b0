package decompose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"VoiceBrief/internal/domain"
	"VoiceBrief/internal/llmjson"
	"VoiceBrief/internal/ports"
)

const (
	defaultTitleLen   = 60
	defaultDescLen    = 200
	quotedContentLen  = 500
	fallbackDueOffset = 24 * time.Hour

	// dueDateGrace tolerates slightly stale due dates from the model
	// (e.g. "yesterday" phrased as a date); anything older is dropped.
	dueDateGrace = 24 * time.Hour
)

const systemInstructions = `You turn one message into actionable tasks. Decide in two steps.

Step 1 - should this message become a task at all? Create tasks only when the message contains an actionable request, a deadline or commitment, or is itself high priority. Purely informational, social, or already-resolved content must not become a task.

Step 2 - one task or several? If the message bundles independent action items (conjunctions, enumerated lists), emit one atomic task per action item, never one compound task.

Answer with a single JSON object and nothing else.

No task:
{"isGenerateTask": false}

Single task:
{"isGenerateTask": true, "generateTask": {"isMultiple": false, "task": {"title": "...", "description": "...", "priority": "high"|"medium"|"low", "tags": ["..."], "dueDate": "YYYY-MM-DD" or null}}}

Multiple tasks:
{"isGenerateTask": true, "generateTask": {"isMultiple": true, "task": [{...}, {...}]}}`

// Engine turns one classified message into zero, one, or many atomic task
// records. It never returns an error: any transport or contract failure
// produces a single generic review task so no message a human should see is
// silently dropped.
type Engine struct {
	client ports.CompletionClient
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// New wires the completion client; logger may be nil.
func New(client ports.CompletionClient, logger *slog.Logger) *Engine {
	return &Engine{
		client: client,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Decompose submits one message and returns its decomposition result.
func (e *Engine) Decompose(ctx context.Context, msg domain.Message) domain.DecompositionResult {
	if e.client == nil {
		return e.errorResult(msg, "no completion client configured")
	}

	raw, err := e.client.Complete(ctx, ports.CompletionRequest{
		SystemInstructions: systemInstructions,
		UserContent:        buildUserContent(msg),
		Temperature:        0,
		MaxOutputTokens:    900,
	})
	if err != nil {
		e.warn("decomposition call failed", "source_id", msg.SourceID, "error", err)
		return e.errorResult(msg, fmt.Sprintf("completion call failed: %v", err))
	}

	result, err := e.parseResult(raw, msg)
	if err != nil {
		e.warn("decomposition response rejected", "source_id", msg.SourceID, "error", err)
		return e.errorResult(msg, fmt.Sprintf("unusable response: %v", err))
	}

	e.debug("message decomposed", "source_id", msg.SourceID,
		"should_create", result.ShouldCreateTask, "tasks", len(result.Tasks))
	return result
}

func buildUserContent(msg domain.Message) string {
	var sb strings.Builder
	sb.WriteString("From: " + msg.Sender + "\n")
	if msg.Subject != "" {
		sb.WriteString("Subject: " + msg.Subject + "\n")
	}
	if msg.Channel != "" {
		sb.WriteString("Channel: " + msg.Channel + "\n")
	}
	sb.WriteString("Type: " + string(msg.Type) + "\n")
	sb.WriteString("Assigned priority: " + string(msg.Priority) + "\n\n")
	sb.WriteString(msg.Content)
	return sb.String()
}

func (e *Engine) parseResult(raw string, msg domain.Message) (domain.DecompositionResult, error) {
	obj, ok := llmjson.ExtractObject(raw)
	if !ok {
		return domain.DecompositionResult{}, fmt.Errorf("no JSON object in response")
	}

	generate := gjson.Get(obj, "isGenerateTask")
	if !generate.Exists() {
		return domain.DecompositionResult{}, fmt.Errorf("missing isGenerateTask field")
	}
	if !generate.Bool() {
		return domain.DecompositionResult{ShouldCreateTask: false}, nil
	}

	taskNode := gjson.Get(obj, "generateTask.task")
	if !taskNode.Exists() {
		return domain.DecompositionResult{}, fmt.Errorf("isGenerateTask is true but generateTask.task is missing")
	}

	isMultiple := gjson.Get(obj, "generateTask.isMultiple").Bool()
	entries := []gjson.Result{taskNode}
	if taskNode.IsArray() {
		isMultiple = true
		entries = taskNode.Array()
	}

	now := e.now()
	tasks := make([]domain.Task, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsObject() {
			continue
		}
		tasks = append(tasks, e.buildTask(entry, msg, now))
	}
	if len(tasks) == 0 {
		return domain.DecompositionResult{}, fmt.Errorf("generateTask.task contains no task objects")
	}

	return domain.DecompositionResult{
		ShouldCreateTask: true,
		IsMultiple:       isMultiple,
		Tasks:            tasks,
	}, nil
}

// buildTask applies the normalization rules shared by the single and multiple
// shapes: defaulted title/description, parsed-or-nil due date, synthesized
// tags, medium priority fallback. Stamps identity and creation time.
func (e *Engine) buildTask(entry gjson.Result, msg domain.Message, now time.Time) domain.Task {
	title := strings.TrimSpace(entry.Get("title").String())
	if title == "" {
		title = defaultTitle(msg)
	}

	description := strings.TrimSpace(entry.Get("description").String())
	if description == "" {
		description = excerpt(msg.Content, defaultDescLen)
	}

	tags := stringSlice(entry.Get("tags"))
	if len(tags) == 0 {
		tags = synthesizeTags(msg)
	}

	return domain.Task{
		ID:              e.newID(),
		Title:           title,
		Description:     description,
		DueDate:         parseDueDate(entry.Get("dueDate").String(), now),
		CreatedOn:       now,
		Priority:        parsePriority(entry.Get("priority").String()),
		Completed:       false,
		Source:          domain.TaskSourceFor(msg.Type),
		SourceMessageID: msg.SourceID,
		Tags:            tags,
	}
}

func defaultTitle(msg domain.Message) string {
	if subject := strings.TrimSpace(msg.Subject); subject != "" {
		return subject
	}
	return msg.Sender + ": " + excerpt(msg.Content, defaultTitleLen)
}

func excerpt(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return text[:max]
}

// parseDueDate accepts calendar dates and RFC3339 timestamps. Unparsable or
// implausibly old values become nil, never an invalid date.
func parseDueDate(value string, now time.Time) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "null") {
		return nil
	}

	var parsed time.Time
	var err error
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		parsed, err = time.Parse(layout, value)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil
	}
	if parsed.Before(now.Add(-dueDateGrace)) {
		return nil
	}
	return &parsed
}

func parsePriority(value string) domain.TaskPriority {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "high":
		return domain.TaskHigh
	case "low":
		return domain.TaskLow
	default:
		return domain.TaskMedium
	}
}

func stringSlice(node gjson.Result) []string {
	if !node.IsArray() {
		return nil
	}
	var out []string
	for _, item := range node.Array() {
		if v := strings.TrimSpace(item.String()); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func synthesizeTags(msg domain.Message) []string {
	tags := []string{string(msg.Type)}
	if msg.Priority != "" {
		tags = append(tags, string(msg.Priority))
	}
	if msg.Attachments > 0 {
		tags = append(tags, "attachments")
	}
	if len(msg.Mentions) > 0 {
		tags = append(tags, "mentions")
	}
	return tags
}

// errorResult is the guaranteed floor of the engine: exactly one generic
// review task pointing a human back at the original content.
func (e *Engine) errorResult(msg domain.Message, cause string) domain.DecompositionResult {
	now := e.now()
	due := now.Add(fallbackDueOffset)
	task := domain.Task{
		ID:              e.newID(),
		Title:           "Review " + string(msg.Type),
		Description:     fmt.Sprintf("Automatic review task (%s). Original message from %s: %q", cause, msg.Sender, excerpt(msg.Content, quotedContentLen)),
		DueDate:         &due,
		CreatedOn:       now,
		Priority:        domain.TaskMedium,
		Completed:       false,
		Source:          domain.TaskSourceFor(msg.Type),
		SourceMessageID: msg.SourceID,
		Tags:            []string{string(msg.Type), "error-task"},
	}
	return domain.DecompositionResult{
		ShouldCreateTask: true,
		IsMultiple:       false,
		Tasks:            []domain.Task{task},
	}
}

func (e *Engine) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Engine) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
