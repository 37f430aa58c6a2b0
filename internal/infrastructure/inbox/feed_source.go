package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"VoiceBrief/internal/config"
	"VoiceBrief/internal/domain"
	"VoiceBrief/internal/ports"
)

// FeedSource implements ports.MessageSource against the provider's aggregated
// inbox feed: one JSON endpoint per subscriber covering email, chat, and
// channel items. HTML e-mail bodies are reduced to plain text before they
// enter the pipeline.
type FeedSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

var _ ports.MessageSource = (*FeedSource)(nil)

// NewFeedSource wires the provider endpoint; client may be nil.
func NewFeedSource(cfg config.ProviderConfig, client *http.Client, logger *slog.Logger) *FeedSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &FeedSource{
		baseURL: strings.TrimSuffix(cfg.FeedURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
		logger:  logger,
	}
}

type feedItem struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Sender      string   `json:"sender"`
	Subject     string   `json:"subject"`
	Channel     string   `json:"channel"`
	Body        string   `json:"body"`
	ContentType string   `json:"contentType"`
	Timestamp   string   `json:"timestamp"`
	Attachments int      `json:"attachments"`
	Mentions    []string `json:"mentions"`
}

// FetchWindow returns the subscriber's items received since the given time.
func (s *FeedSource) FetchWindow(ctx context.Context, subscriberID string, since time.Time) ([]domain.Message, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("provider feed URL is not configured")
	}

	endpoint := fmt.Sprintf("%s/subscribers/%s/messages?since=%s",
		s.baseURL, url.PathEscape(subscriberID), url.QueryEscape(since.UTC().Format(time.RFC3339)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("User-Agent", "VoiceBrief/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned %s", resp.Status)
	}

	var items []feedItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	messages := make([]domain.Message, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		if item.ID == "" {
			s.debug("dropping feed item without id", "subscriber", subscriberID)
			continue
		}
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		messages = append(messages, toMessage(item))
	}

	s.debug("feed fetched", "subscriber", subscriberID, "items", len(messages))
	return messages, nil
}

func toMessage(item feedItem) domain.Message {
	body := item.Body
	if isHTML(item) {
		body = HTMLToText(body)
	}

	ts := time.Now().UTC()
	if parsed, err := time.Parse(time.RFC3339, item.Timestamp); err == nil {
		ts = parsed
	}

	return domain.Message{
		SourceID:    item.ID,
		Type:        messageType(item.Type),
		Sender:      item.Sender,
		Subject:     item.Subject,
		Channel:     item.Channel,
		Content:     strings.TrimSpace(body),
		Timestamp:   ts,
		Attachments: item.Attachments,
		Mentions:    item.Mentions,
	}
}

func messageType(value string) domain.MessageType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "chat":
		return domain.TypeChat
	case "channel":
		return domain.TypeChannel
	default:
		return domain.TypeEmail
	}
}

func isHTML(item feedItem) bool {
	if strings.Contains(strings.ToLower(item.ContentType), "html") {
		return true
	}
	trimmed := strings.TrimSpace(item.Body)
	return strings.HasPrefix(trimmed, "<html") || strings.HasPrefix(trimmed, "<!DOCTYPE")
}

func (s *FeedSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
