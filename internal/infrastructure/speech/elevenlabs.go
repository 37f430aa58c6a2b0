package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"VoiceBrief/internal/config"
	"VoiceBrief/internal/ports"
)

// Client talks to an ElevenLabs-compatible text-to-speech API. It is a pure
// boundary: no retries and no degraded output, a failure here surfaces to the
// caller because there is no meaningful fallback audio.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.SpeechSynthesizer = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.SpeechConfig) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Synthesize converts the script into binary audio with the given voice.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string, settings ports.VoiceSettings) ([]byte, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return nil, fmt.Errorf("speech client misconfigured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty script text")
	}

	payload := map[string]any{
		"text": text,
		"voice_settings": map[string]any{
			"stability":        settings.Stability,
			"similarity_boost": settings.SimilarityBoost,
			"speed":            settings.Speed,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.endpoint, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("speech API error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech API returned empty audio")
	}
	return audio, nil
}
