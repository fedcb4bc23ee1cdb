// Package pipeline runs one candidate through admission, the pre-filter,
// reputation and risk checks, and the policy decision.
package pipeline

import (
	"context"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/phishguard/internal/db"
	"github.com/iamwavecut/phishguard/internal/moderation"
	"github.com/iamwavecut/phishguard/internal/moderation/reputation"
	"github.com/iamwavecut/phishguard/internal/observability"
	"github.com/iamwavecut/phishguard/internal/policy/enforcement"
)

const ReasonNotEscalated = "not_escalated"

type (
	Limiter interface {
		Wait(ctx context.Context, senderID int64, onNotice func(wait time.Duration)) error
	}

	Gate interface {
		ShouldEscalate(c moderation.Candidate, isSenderAdmin bool) bool
	}

	AdminChecker interface {
		IsAdmin(ctx context.Context, chatID, userID int64) bool
	}

	Reputation interface {
		Enabled() bool
		ScanFile(ctx context.Context, file moderation.FileRef) reputation.Query
		CheckURL(ctx context.Context, rawURL string) reputation.Query
	}

	Risk interface {
		Enabled() bool
		Classify(ctx context.Context, text string, reputation *moderation.ReputationVerdict) moderation.RiskVerdict
		Explain(ctx context.Context, labels []string) string
	}

	PolicySource interface {
		GetPolicy(ctx context.Context, chatID int64) (moderation.ChatPolicy, error)
	}

	Recorder interface {
		Action(userID int64, action db.Action)
		APIUsage(reputationCalls, classifierCalls int)
	}

	Deps struct {
		Limiter    Limiter
		Gate       Gate
		Admins     AdminChecker
		Reputation Reputation
		Risk       Risk
		Policies   PolicySource
		Recorder   Recorder
	}

	Option func(*Pipeline)

	Pipeline struct {
		deps        Deps
		maxFileSize int64
		tracer      trace.Tracer
		logger      *log.Entry
	}
)

func WithMaxFileSize(size int64) Option {
	return func(p *Pipeline) { p.maxFileSize = size }
}

func New(deps Deps, opts ...Option) *Pipeline {
	p := &Pipeline{
		deps:   deps,
		tracer: observability.Tracer(),
		logger: log.WithField("object", "Pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run produces exactly one action for c. The only error is cancellation of ctx
// while waiting for admission or for the checks.
func (p *Pipeline) Run(ctx context.Context, c moderation.Candidate, onNotice func(wait time.Duration)) (Result, error) {
	res := Result{
		RunID:     uuid.New(),
		Candidate: c,
		Policy:    moderation.DefaultPolicy(),
	}
	logger := p.logger.WithFields(log.Fields{
		"run_id":  res.RunID,
		"chat_id": c.ChatID,
		"user_id": c.SenderID,
	})

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.Int64("chat_id", c.ChatID),
		attribute.String("chat_kind", string(c.ChatKind)),
		attribute.String("run_id", res.RunID),
	))
	defer span.End()

	if p.deps.Limiter != nil {
		if err := p.deps.Limiter.Wait(ctx, c.SenderID, onNotice); err != nil {
			return res, err
		}
	}

	if !c.IsPrivate() {
		if !p.escalate(ctx, c) {
			res.Action = moderation.EnforcementAction{Visibility: moderation.Ignore, ReasonTag: ReasonNotEscalated}
			span.SetAttributes(attribute.Bool("escalated", false))
			logger.Trace("not escalated")
			return res, nil
		}
		res.Policy = p.policy(ctx, c.ChatID, logger)
	}
	res.Escalated = true
	span.SetAttributes(attribute.Bool("escalated", true))

	observe := observability.StartPipeline()
	defer observe()

	if err := p.inspect(ctx, &res); err != nil {
		return res, err
	}

	res.Reputation = moderation.UnionReputation(res.verdicts()...)
	res.Action = enforcement.Decide(res.Reputation, res.Risk, res.Policy, c.ChatKind)

	if c.IsPrivate() && res.File != nil && res.File.IsMalicious() && p.riskEnabled() {
		res.ThreatExplanation = p.deps.Risk.Explain(ctx, res.File.Labels)
		res.classifierCalls++
	}

	p.record(res)
	span.SetAttributes(
		attribute.String("visibility", res.Action.Visibility.String()),
		attribute.String("reason", res.Action.ReasonTag),
	)
	logger.WithFields(log.Fields{
		"visibility": res.Action.Visibility.String(),
		"reason":     res.Action.ReasonTag,
	}).Debug("pipeline finished")
	return res, nil
}

func (p *Pipeline) escalate(ctx context.Context, c moderation.Candidate) bool {
	admin := c.TrustedSender
	if !admin && p.deps.Admins != nil {
		admin = p.deps.Admins.IsAdmin(ctx, c.ChatID, c.SenderID)
	}
	if p.deps.Gate == nil {
		return !admin || c.IsCommand
	}
	return p.deps.Gate.ShouldEscalate(c, admin)
}

func (p *Pipeline) policy(ctx context.Context, chatID int64, logger *log.Entry) moderation.ChatPolicy {
	if p.deps.Policies == nil {
		return moderation.DefaultPolicy()
	}
	policy, err := p.deps.Policies.GetPolicy(ctx, chatID)
	if err != nil {
		logger.WithField("error", err.Error()).Warn("cant load chat policy, using defaults")
		return moderation.DefaultPolicy()
	}
	return policy
}

// inspect runs the file branch and the link+text branch concurrently and joins them.
func (p *Pipeline) inspect(ctx context.Context, res *Result) error {
	c := res.Candidate
	res.ReputationSkipped = !p.reputationEnabled()
	res.RiskSkipped = !p.riskEnabled()

	var (
		file, link *moderation.ReputationVerdict
		risk       = moderation.RiskVerdict{Category: moderation.RiskUnknown}
		fileCalls  int
		linkCalls  int
		riskCalls  int
	)

	g, gctx := errgroup.WithContext(ctx)
	if c.Attachment != nil {
		if p.maxFileSize > 0 && c.Attachment.Size > p.maxFileSize {
			res.FileTooLarge = true
		} else if p.reputationEnabled() {
			g.Go(func() error {
				spanCtx, span := p.tracer.Start(gctx, "reputation.file")
				defer span.End()
				q := p.deps.Reputation.ScanFile(spanCtx, *c.Attachment)
				v := q.Verdict()
				file, fileCalls = &v, 1
				span.SetAttributes(attribute.String("state", v.State.String()))
				return ctx.Err()
			})
		}
	}

	g.Go(func() error {
		if first, ok := c.FirstURL(); ok && p.reputationEnabled() {
			spanCtx, span := p.tracer.Start(gctx, "reputation.url")
			q := p.deps.Reputation.CheckURL(spanCtx, first)
			v := q.Verdict()
			link, linkCalls = &v, 1
			span.SetAttributes(attribute.String("state", v.State.String()))
			span.End()
		}
		if c.HasText() && p.riskEnabled() {
			spanCtx, span := p.tracer.Start(gctx, "risk.classify")
			risk = p.deps.Risk.Classify(spanCtx, c.Text, link)
			riskCalls = 1
			span.SetAttributes(attribute.String("category", risk.Category.String()))
			span.End()
		}
		return ctx.Err()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	res.File, res.URL, res.Risk = file, link, risk
	res.reputationCalls = fileCalls + linkCalls
	res.classifierCalls = riskCalls
	return nil
}

func (p *Pipeline) record(res Result) {
	observability.RecordPipelineRun(res.Action.Visibility.String())
	if res.classifierCalls > 0 {
		observability.RecordRiskVerdict(res.Risk.Category.String())
	}
	observability.Audit(observability.AuditEntry{
		RunID:      res.RunID,
		Candidate:  res.Candidate,
		Reputation: res.Reputation,
		Risk:       res.Risk,
		Action:     res.Action,
	})

	if p.deps.Recorder == nil {
		return
	}
	p.deps.Recorder.APIUsage(res.reputationCalls, res.classifierCalls)
	p.deps.Recorder.Action(res.Candidate.SenderID, db.Action{
		File:   res.File != nil,
		Link:   res.URL != nil,
		Threat: res.IsThreat(),
	})
}

func (p *Pipeline) reputationEnabled() bool {
	return p.deps.Reputation != nil && p.deps.Reputation.Enabled()
}

func (p *Pipeline) riskEnabled() bool {
	return p.deps.Risk != nil && p.deps.Risk.Enabled()
}
