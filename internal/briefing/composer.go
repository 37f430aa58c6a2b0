package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"VoiceBrief/internal/domain"
	"VoiceBrief/internal/ports"
)

const (
	defaultMaxExcerptLen = 220
	itemBodyCap          = 1200
	ellipsis             = "..."
)

const systemInstructions = `You write short spoken-word briefings that will be read aloud by a text-to-speech voice. Given a list of messages, produce a single flowing script:

- open with the provided greeting line,
- cover critical messages first, then action items, in the given order,
- for each message say who it is from and what is being asked, in one or two spoken sentences,
- close with one short sign-off line.

Plain text only: no markdown, no bullet points, no headings.`

// Composer selects a subscriber's highest-priority unread messages and renders
// them into one spoken-word script. The AI path is preferred; any completion
// failure falls back to a deterministic template so a briefing is always
// producible from a non-empty selection.
type Composer struct {
	client        ports.CompletionClient
	logger        *slog.Logger
	maxExcerptLen int
	now           func() time.Time
}

// NewComposer wires the completion client; logger may be nil and
// maxExcerptLen falls back to a sane default when non-positive.
func NewComposer(client ports.CompletionClient, logger *slog.Logger, maxExcerptLen int) *Composer {
	if maxExcerptLen <= 0 {
		maxExcerptLen = defaultMaxExcerptLen
	}
	return &Composer{
		client:        client,
		logger:        logger,
		maxExcerptLen: maxExcerptLen,
		now:           time.Now,
	}
}

// Select orders the pool critical-first then action, each group newest to
// oldest, capped at maxItems. INFO messages never survive selection.
func Select(pool []domain.Message, maxItems int) []domain.Message {
	var critical, action []domain.Message
	for _, msg := range pool {
		switch msg.Priority {
		case domain.PriorityCritical:
			critical = append(critical, msg)
		case domain.PriorityAction:
			action = append(action, msg)
		}
	}

	byRecency := func(group []domain.Message) {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp.After(group[j].Timestamp)
		})
	}
	byRecency(critical)
	byRecency(action)

	selected := append(critical, action...)
	if maxItems > 0 && len(selected) > maxItems {
		selected = selected[:maxItems]
	}
	return selected
}

// Compose builds the briefing script for the given pool. An empty selection
// is a no-op and returns nil, not an error.
func (c *Composer) Compose(ctx context.Context, pool []domain.Message, maxItems int) *domain.BriefingScript {
	selected := Select(pool, maxItems)
	if len(selected) == 0 {
		return nil
	}

	ids := make([]string, len(selected))
	for i, msg := range selected {
		ids[i] = msg.SourceID
	}

	greeting := greetingFor(c.now())

	if text, err := c.composeWithModel(ctx, selected, greeting); err != nil {
		c.warn("AI composition failed, using template fallback", "error", err)
	} else {
		return &domain.BriefingScript{Text: text, SourceMessageIDs: ids}
	}

	return &domain.BriefingScript{
		Text:             c.renderTemplate(selected, greeting),
		SourceMessageIDs: ids,
	}
}

func (c *Composer) composeWithModel(ctx context.Context, selected []domain.Message, greeting string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("no completion client configured")
	}

	var sb strings.Builder
	sb.WriteString("Greeting line: " + greeting + "\n\n")
	for i, msg := range selected {
		body := msg.Content
		if len(body) > itemBodyCap {
			body = body[:itemBodyCap]
		}
		fmt.Fprintf(&sb, "Message %d\nPriority: %s\nFrom: %s\nSubject: %s\nReceived: %s\n%s\n\n",
			i+1, strings.ToUpper(string(msg.Priority)), msg.Sender,
			subjectLine(msg), msg.Timestamp.Format(time.RFC1123), body)
	}

	text, err := c.client.Complete(ctx, ports.CompletionRequest{
		SystemInstructions: systemInstructions,
		UserContent:        sb.String(),
		Temperature:        0.4,
		MaxOutputTokens:    1200,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("model returned empty script")
	}
	return text, nil
}

// renderTemplate is the deterministic fallback path: same greeting, critical,
// action, closing structure as the AI script, with message bodies reduced by
// sentence-boundary truncation.
func (c *Composer) renderTemplate(selected []domain.Message, greeting string) string {
	var critical, action []domain.Message
	for _, msg := range selected {
		if msg.Priority == domain.PriorityCritical {
			critical = append(critical, msg)
		} else {
			action = append(action, msg)
		}
	}

	var sb strings.Builder
	sb.WriteString(greeting + " Here is your briefing.\n")

	if len(critical) > 0 {
		fmt.Fprintf(&sb, "You have %s.\n", countPhrase(len(critical), "critical message", "critical messages"))
		for _, msg := range critical {
			sb.WriteString(itemLine(msg, c.maxExcerptLen) + "\n")
		}
	}

	if len(action) > 0 {
		fmt.Fprintf(&sb, "You have %s that need action.\n", countPhrase(len(action), "item", "items"))
		for _, msg := range action {
			sb.WriteString(itemLine(msg, c.maxExcerptLen) + "\n")
		}
	}

	sb.WriteString("That is all for now. Have a good one.")
	return sb.String()
}

func itemLine(msg domain.Message, maxLen int) string {
	line := "From " + msg.Sender
	if subject := subjectLine(msg); subject != "" {
		line += ", about " + subject
	}
	return line + ": " + TruncateAtSentence(msg.Content, maxLen)
}

func subjectLine(msg domain.Message) string {
	if msg.Subject != "" {
		return msg.Subject
	}
	return msg.Channel
}

func countPhrase(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

// TruncateAtSentence reduces text to at most max characters, preferring to cut
// at the last sentence terminator inside the window (inclusive). Without a
// terminator the cut is hard and marked with an ellipsis, so the result never
// exceeds max plus the marker length.
func TruncateAtSentence(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 || len(text) <= max {
		return text
	}

	window := text[:max]
	cut := -1
	for _, terminator := range []string{".", "!", "?"} {
		if idx := strings.LastIndex(window, terminator); idx > cut {
			cut = idx
		}
	}
	if cut >= 0 {
		return strings.TrimSpace(window[:cut+1])
	}
	return window + ellipsis
}

func greetingFor(now time.Time) string {
	switch hour := now.Hour(); {
	case hour < 12:
		return "Good morning!"
	case hour < 18:
		return "Good afternoon!"
	default:
		return "Good evening!"
	}
}

func (c *Composer) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
