package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"VoiceBrief/internal/domain"
	"VoiceBrief/internal/llmjson"
	"VoiceBrief/internal/ports"
)

// bodyCap bounds how much message text is submitted per classification call.
const bodyCap = 4000

const systemInstructions = `You are a message triage assistant. Classify the message into exactly one of three priorities:

CRITICAL - urgent problems, outages, deadlines within hours, explicit emergencies, or anything blocking other people right now.
ACTION - the recipient is asked to do something, respond, decide, or attend; deadlines beyond today also belong here.
INFO - announcements, social content, newsletters, receipts, and anything already resolved.

Answer with a single JSON object and nothing else:
{"label": "CRITICAL" | "ACTION" | "INFO", "reasoning": "<one short sentence>"}`

// Classifier assigns a priority label to one message via the completion model.
// It never returns an error: every failure degrades to INFO so a single bad
// call cannot abort the surrounding batch.
type Classifier struct {
	client ports.CompletionClient
	logger *slog.Logger
}

// New wires the completion client; logger may be nil.
func New(client ports.CompletionClient, logger *slog.Logger) *Classifier {
	return &Classifier{client: client, logger: logger}
}

// Classify submits one message and returns its classification result.
func (c *Classifier) Classify(ctx context.Context, msg domain.Message) domain.ClassificationResult {
	if c.client == nil {
		return fallback("no completion client configured")
	}

	raw, err := c.client.Complete(ctx, ports.CompletionRequest{
		SystemInstructions: systemInstructions,
		UserContent:        buildUserContent(msg),
		Temperature:        0,
		MaxOutputTokens:    200,
	})
	if err != nil {
		c.warn("classification call failed", "source_id", msg.SourceID, "error", err)
		return fallback(fmt.Sprintf("completion call failed: %v", err))
	}

	result, err := parseResult(raw)
	if err != nil {
		c.warn("classification response rejected", "source_id", msg.SourceID, "error", err)
		return fallback(fmt.Sprintf("unusable response: %v", err))
	}

	c.debug("message classified", "source_id", msg.SourceID, "label", result.Label, "reasoning", result.Reasoning)
	return result
}

func buildUserContent(msg domain.Message) string {
	var sb strings.Builder
	sb.WriteString("From: " + msg.Sender + "\n")
	switch msg.Type {
	case domain.TypeChannel:
		sb.WriteString("Channel: " + msg.Channel + "\n")
	default:
		sb.WriteString("Subject: " + msg.Subject + "\n")
	}
	sb.WriteString("Type: " + string(msg.Type) + "\n\n")

	body := msg.Content
	if len(body) > bodyCap {
		body = body[:bodyCap]
	}
	sb.WriteString(body)
	return sb.String()
}

func parseResult(raw string) (domain.ClassificationResult, error) {
	obj, ok := llmjson.ExtractObject(raw)
	if !ok {
		return domain.ClassificationResult{}, fmt.Errorf("no JSON object in response")
	}

	label := strings.ToUpper(strings.TrimSpace(gjson.Get(obj, "label").String()))
	var priority domain.Priority
	switch label {
	case "CRITICAL":
		priority = domain.PriorityCritical
	case "ACTION":
		priority = domain.PriorityAction
	case "INFO":
		priority = domain.PriorityInfo
	default:
		return domain.ClassificationResult{}, fmt.Errorf("unknown label %q", label)
	}

	return domain.ClassificationResult{
		Label:     priority,
		Reasoning: gjson.Get(obj, "reasoning").String(),
	}, nil
}

func fallback(cause string) domain.ClassificationResult {
	return domain.ClassificationResult{
		Label:     domain.PriorityInfo,
		Reasoning: "classifier fallback: " + cause,
	}
}

func (c *Classifier) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Classifier) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
