package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"VoiceBrief/internal/domain"
	"VoiceBrief/internal/ports"
)

// TelegramDelivery sends briefing audio as a voice note via the bot API.
type TelegramDelivery struct {
	botToken string
	baseURL  string
	client   *http.Client
}

var _ ports.AudioDelivery = (*TelegramDelivery)(nil)

// NewTelegramDelivery registers the bot token; client may be nil.
func NewTelegramDelivery(botToken string, client *http.Client) *TelegramDelivery {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TelegramDelivery{
		botToken: botToken,
		baseURL:  "https://api.telegram.org",
		client:   client,
	}
}

// SendVoice posts the audio artifact as a multipart sendVoice call.
func (d *TelegramDelivery) SendVoice(ctx context.Context, chatID string, artifact domain.AudioArtifact) error {
	if d.botToken == "" || chatID == "" {
		return fmt.Errorf("telegram delivery misconfigured")
	}
	if len(artifact.Data) == 0 {
		return fmt.Errorf("refusing to send empty audio artifact %s", artifact.Name)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", chatID); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	part, err := writer.CreateFormFile("voice", artifact.Name)
	if err != nil {
		return fmt.Errorf("create voice part: %w", err)
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return fmt.Errorf("write voice data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendVoice", d.baseURL, d.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send voice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	return nil
}
