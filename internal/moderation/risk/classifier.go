package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/phishguard/internal/adapters"
	"github.com/iamwavecut/phishguard/internal/adapters/llm"
	"github.com/iamwavecut/phishguard/internal/moderation"
)

const DefaultTimeout = 30 * time.Second

var ErrUnavailable = errors.New("risk classifier unavailable")

const (
	FallbackExplanation = "Could not analyse the message right now. Be careful with links, payment requests and urgent demands."
	FallbackThreat      = "Could not explain the threat right now. Do not open this file."
)

const classifyPrompt = `You are a cybersecurity expert protecting people from scammers.
Analyse the message for fraud: scam, phishing, social engineering.
Pay attention to urgency, pressure, requests for money or credentials and suspicious links.
Answer strictly in this structure:
VERDICT: DANGEROUS | SUSPICIOUS | SAFE
ANALYSIS: why you decided so
ADVICE: what the reader should do
Put exactly one word after VERDICT. Be brief. Answer in the language of the message.`

const explainPrompt = `You are a cybersecurity expert. Your audience is schoolchildren and elderly people.
You received an antivirus report. Name the threat type (trojan, miner, stealer and so on),
explain what it does to a phone or a computer and give one clear piece of advice.
Be brief and plain.`

type (
	Classifier struct {
		llm     adapters.LLM
		timeout time.Duration
		parser  ResponseParser
		logger  *log.Entry
	}

	Option func(*Classifier)
)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Classifier) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClassifier wraps model. A nil model disables classification: every
// verdict is Unknown with the fallback explanation.
func NewClassifier(model adapters.LLM, opts ...Option) *Classifier {
	c := &Classifier{
		llm:     model,
		timeout: DefaultTimeout,
		logger:  log.WithField("object", "RiskClassifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Classifier) Enabled() bool {
	return c.llm != nil
}

// Classify asks the model once. Any failure degrades to Unknown.
func (c *Classifier) Classify(ctx context.Context, text string, reputation *moderation.ReputationVerdict) moderation.RiskVerdict {
	unknown := moderation.RiskVerdict{Category: moderation.RiskUnknown, RawExplanation: FallbackExplanation}
	if strings.TrimSpace(text) == "" {
		return unknown
	}

	reply, err := c.complete(ctx, classifyPrompt, userPrompt(text, reputation))
	if err != nil {
		c.logger.WithField("error", err.Error()).Warn("classification failed")
		return unknown
	}

	category := c.parser.Parse(reply)
	if category == moderation.RiskUnknown {
		c.logger.WithField("reply", reply).Debug("no verdict marker in reply")
	}
	return moderation.RiskVerdict{Category: category, RawExplanation: reply}
}

// Explain turns engine labels into a plain-language description.
func (c *Classifier) Explain(ctx context.Context, labels []string) string {
	if len(labels) == 0 {
		return FallbackThreat
	}
	reply, err := c.complete(ctx, explainPrompt, "Threat data: "+strings.Join(labels, ", "))
	if err != nil {
		c.logger.WithField("error", err.Error()).Warn("threat explanation failed")
		return FallbackThreat
	}
	return reply
}

func (c *Classifier) complete(ctx context.Context, system, user string) (string, error) {
	if !c.Enabled() {
		return "", ErrUnavailable
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.llm.ChatCompletion(callCtx, []llm.ChatCompletionMessage{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	reply := resp.Text()
	if reply == "" {
		return "", errors.New("empty completion")
	}
	return reply, nil
}

func userPrompt(text string, reputation *moderation.ReputationVerdict) string {
	var b strings.Builder
	b.WriteString("Message text: \"")
	b.WriteString(text)
	b.WriteString("\"")
	if reputation != nil && reputation.State == moderation.StateResolved {
		fmt.Fprintf(&b, "\nLink reputation scan (%s): %d of %d engines flagged it",
			reputation.Subject, reputation.Detections, reputation.EngineTotal)
		if len(reputation.Labels) > 0 {
			fmt.Fprintf(&b, " as %s", strings.Join(reputation.Labels, ", "))
		}
		b.WriteString(".")
	}
	return b.String()
}
