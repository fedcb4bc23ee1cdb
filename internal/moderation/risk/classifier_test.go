package risk

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iamwavecut/phishguard/internal/adapters/llm"
	"github.com/iamwavecut/phishguard/internal/moderation"
)

type stubLLM struct {
	reply string
	err   error
	calls int

	lastMessages []llm.ChatCompletionMessage
	deadline     bool
}

func (s *stubLLM) ChatCompletion(ctx context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error) {
	s.calls++
	s.lastMessages = append([]llm.ChatCompletionMessage{}, messages...)
	_, s.deadline = ctx.Deadline()
	if s.err != nil {
		return llm.ChatCompletionResponse{}, s.err
	}
	return llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{{Message: llm.ChatCompletionMessage{Role: llm.RoleAssistant, Content: s.reply}}},
	}, nil
}

func TestClassifyParsesReply(t *testing.T) {
	t.Parallel()

	model := &stubLLM{reply: "VERDICT: DANGEROUS\nANALYSIS: asks for a card number"}
	c := NewClassifier(model, WithTimeout(time.Second))

	v := c.Classify(context.Background(), "send me your card", nil)
	if v.Category != moderation.RiskDangerous {
		t.Fatalf("unexpected category: %s", v.Category)
	}
	if !strings.Contains(v.RawExplanation, "card number") {
		t.Fatalf("explanation must carry the raw reply: %q", v.RawExplanation)
	}
	if !model.deadline {
		t.Fatalf("call must be bounded by a deadline")
	}
	if len(model.lastMessages) != 2 || model.lastMessages[0].Role != llm.RoleSystem {
		t.Fatalf("unexpected prompt: %+v", model.lastMessages)
	}
}

func TestClassifyIncludesReputationContext(t *testing.T) {
	t.Parallel()

	model := &stubLLM{reply: "VERDICT: SUSPICIOUS"}
	rep := moderation.ReputationVerdict{
		Kind:        moderation.ArtifactURL,
		Subject:     "https://phish.example.com",
		State:       moderation.StateResolved,
		Outcome:     moderation.OutcomeMalicious,
		Detections:  4,
		EngineTotal: 90,
		Labels:      []string{"phishing"},
	}
	NewClassifier(model).Classify(context.Background(), "claim your prize", &rep)

	user := model.lastMessages[1].Content
	if !strings.Contains(user, "4 of 90") || !strings.Contains(user, "phishing") {
		t.Fatalf("reputation stats missing from prompt: %q", user)
	}

	NewClassifier(model).Classify(context.Background(), "claim your prize", &moderation.ReputationVerdict{State: moderation.StateUnavailable})
	if strings.Contains(model.lastMessages[1].Content, "engines") {
		t.Fatalf("unresolved reputation must not be quoted: %q", model.lastMessages[1].Content)
	}
}

func TestClassifyDegradesToUnknown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		model *stubLLM
	}{
		{"error", &stubLLM{err: errors.New("503")}},
		{"empty reply", &stubLLM{reply: "   "}},
		{"no marker", &stubLLM{reply: "I am not sure."}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := NewClassifier(tt.model).Classify(context.Background(), "hello", nil)
			if v.Category != moderation.RiskUnknown {
				t.Fatalf("unexpected category: %s", v.Category)
			}
			if v.RawExplanation == "" {
				t.Fatalf("explanation must never be empty")
			}
			if tt.model.calls != 1 {
				t.Fatalf("no retries expected, got %d calls", tt.model.calls)
			}
		})
	}
}

func TestClassifyDisabled(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)
	if c.Enabled() {
		t.Fatalf("nil model must disable the classifier")
	}
	v := c.Classify(context.Background(), "hello", nil)
	if v.Category != moderation.RiskUnknown || v.RawExplanation != FallbackExplanation {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

func TestExplain(t *testing.T) {
	t.Parallel()

	model := &stubLLM{reply: "A trojan that steals passwords."}
	c := NewClassifier(model)
	if got := c.Explain(context.Background(), []string{"Trojan.Gen", "Win32.Agent"}); got != model.reply {
		t.Fatalf("unexpected explanation: %q", got)
	}
	if !strings.Contains(model.lastMessages[1].Content, "Trojan.Gen, Win32.Agent") {
		t.Fatalf("labels missing from prompt: %q", model.lastMessages[1].Content)
	}

	if got := NewClassifier(&stubLLM{err: errors.New("timeout")}).Explain(context.Background(), []string{"x"}); got != FallbackThreat {
		t.Fatalf("unexpected fallback: %q", got)
	}
	if got := c.Explain(context.Background(), nil); got != FallbackThreat {
		t.Fatalf("no labels must use the fallback: %q", got)
	}
}
