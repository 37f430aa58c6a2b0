package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

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

func sampleMessage() domain.Message {
	return domain.Message{
		SourceID: "m1",
		Type:     domain.TypeEmail,
		Sender:   "ops@example.org",
		Subject:  "Payment outage",
		Content:  "URGENT: fix payment outage now",
	}
}

func TestClassifyParsesLabel(t *testing.T) {
	t.Parallel()

	client := &fakeCompletion{response: `{"label": "critical", "reasoning": "production outage"}`}
	c := New(client, nil)

	got := c.Classify(context.Background(), sampleMessage())
	if got.Label != domain.PriorityCritical {
		t.Fatalf("label = %s, want critical", got.Label)
	}
	if got.Reasoning != "production outage" {
		t.Fatalf("unexpected reasoning: %q", got.Reasoning)
	}
	if client.lastReq.Temperature != 0 {
		t.Fatalf("temperature = %v, want 0", client.lastReq.Temperature)
	}
}

func TestClassifyAcceptsFencedResponse(t *testing.T) {
	t.Parallel()

	client := &fakeCompletion{response: "```json\n{\"label\":\"ACTION\",\"reasoning\":\"needs reply\"}\n```"}
	c := New(client, nil)

	got := c.Classify(context.Background(), sampleMessage())
	if got.Label != domain.PriorityAction {
		t.Fatalf("label = %s, want action", got.Label)
	}
}

func TestClassifyFailsSoft(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		client *fakeCompletion
	}{
		{"transport error", &fakeCompletion{err: errors.New("boom")}},
		{"not json", &fakeCompletion{response: "no structured answer"}},
		{"unknown label", &fakeCompletion{response: `{"label":"URGENT","reasoning":"x"}`}},
		{"missing label", &fakeCompletion{response: `{"reasoning":"x"}`}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := New(tc.client, nil)
			got := c.Classify(context.Background(), sampleMessage())
			if got.Label != domain.PriorityInfo {
				t.Fatalf("label = %s, want info fallback", got.Label)
			}
			if !strings.Contains(got.Reasoning, "classifier fallback") {
				t.Fatalf("reasoning does not note the fallback: %q", got.Reasoning)
			}
		})
	}
}

func TestClassifyCapsBody(t *testing.T) {
	t.Parallel()

	client := &fakeCompletion{response: `{"label":"INFO","reasoning":"long"}`}
	c := New(client, nil)

	msg := sampleMessage()
	msg.Content = strings.Repeat("z", bodyCap+500)
	c.Classify(context.Background(), msg)

	if strings.Count(client.lastReq.UserContent, "z") > bodyCap {
		t.Fatalf("body was not capped at %d characters", bodyCap)
	}
}

func TestClassifyChannelMessageUsesChannelHeader(t *testing.T) {
	t.Parallel()

	client := &fakeCompletion{response: `{"label":"INFO","reasoning":"chatter"}`}
	c := New(client, nil)

	msg := sampleMessage()
	msg.Type = domain.TypeChannel
	msg.Channel = "#incidents"
	c.Classify(context.Background(), msg)

	if !strings.Contains(client.lastReq.UserContent, "Channel: #incidents") {
		t.Fatalf("prompt missing channel header:\n%s", client.lastReq.UserContent)
	}
}
