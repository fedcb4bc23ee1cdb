package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/phishguard/internal/content"
	"github.com/iamwavecut/phishguard/internal/infra"
	"github.com/iamwavecut/phishguard/internal/moderation"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollAttempts = 20
	DefaultCallTimeout  = 30 * time.Second
)

type (
	Sleep func(ctx context.Context, d time.Duration) error

	// Observer is told about every verdict the engine hands out.
	Observer func(verdict moderation.ReputationVerdict)

	Engine struct {
		service      Service
		pollInterval time.Duration
		pollAttempts int
		callTimeout  time.Duration
		sleep        Sleep
		observe      Observer
		logger       *log.Entry
	}

	Option func(*Engine)
)

func WithPolling(interval time.Duration, attempts int) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.pollInterval = interval
		}
		if attempts > 0 {
			e.pollAttempts = attempts
		}
	}
}

func WithCallTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.callTimeout = timeout
		}
	}
}

func WithSleep(sleep Sleep) Option {
	return func(e *Engine) { e.sleep = sleep }
}

func WithObserver(observe Observer) Option {
	return func(e *Engine) { e.observe = observe }
}

// NewEngine wraps service. A nil service makes every lookup Unavailable.
func NewEngine(service Service, opts ...Option) *Engine {
	e := &Engine{
		service:      service,
		pollInterval: DefaultPollInterval,
		pollAttempts: DefaultPollAttempts,
		callTimeout:  DefaultCallTimeout,
		sleep:        infra.SleepContext,
		logger:       log.WithField("object", "ReputationEngine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Enabled() bool {
	return e.service != nil
}

// CheckFile looks a hash up. NotSubmitted with NotFound() set means an unknown
// artifact; Unavailable means the service is disabled or failed.
func (e *Engine) CheckFile(ctx context.Context, sha256 string) Query {
	q := newQuery(moderation.ArtifactFile, sha256)
	if !e.Enabled() {
		return q.unavailable(ErrUnavailable)
	}
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	report, err := e.service.FileReport(callCtx, sha256)
	return e.afterLookup(q, report, err)
}

// CheckURL looks a URL up by its canonical id. A missing report resolves with insufficient data.
func (e *Engine) CheckURL(ctx context.Context, rawURL string) Query {
	q := newQuery(moderation.ArtifactURL, rawURL)
	if !e.Enabled() {
		return e.done(q.unavailable(ErrUnavailable))
	}
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	report, err := e.service.URLReport(callCtx, content.URLID(rawURL))
	return e.done(e.afterLookup(q, report, err))
}

func (e *Engine) afterLookup(q Query, report Report, err error) Query {
	switch {
	case err == nil:
		return q.resolved(report)
	case errors.Is(err, ErrNotFound):
		return q.notFound()
	default:
		e.logger.WithFields(log.Fields{
			"kind":    q.Kind,
			"subject": q.Subject,
			"error":   err.Error(),
		}).Warn("reputation lookup failed")
		return q.unavailable(err)
	}
}

// SubmitFile uploads the attachment and returns the analysis id.
func (e *Engine) SubmitFile(ctx context.Context, file moderation.FileRef) (string, error) {
	if !e.Enabled() {
		return "", ErrUnavailable
	}
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	body, err := file.Open(callCtx)
	if err != nil {
		return "", fmt.Errorf("open attachment: %w", err)
	}
	defer body.Close()

	id, err := e.service.SubmitFile(callCtx, file.Name, body)
	if err != nil {
		return "", fmt.Errorf("submit file: %w", err)
	}
	return id, nil
}

// PollSubmission performs a single poll. The result may still be non-terminal.
func (e *Engine) PollSubmission(ctx context.Context, analysisID string) Query {
	q := newQuery(moderation.ArtifactFile, analysisID).submitted(analysisID)
	return e.poll(ctx, q)
}

func (e *Engine) poll(ctx context.Context, q Query) Query {
	if !e.Enabled() {
		return q.unavailable(ErrUnavailable)
	}
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	analysis, err := e.service.Analysis(callCtx, q.SubmissionID)
	if err != nil {
		e.logger.WithFields(log.Fields{
			"analysis_id": q.SubmissionID,
			"attempt":     q.Attempts + 1,
			"error":       err.Error(),
		}).Debug("analysis poll failed")
	}
	return q.polled(analysis, err, e.pollAttempts)
}

// ScanFile hashes the attachment, looks it up and, when unknown, submits it
// and polls until a terminal state or the attempt cap.
func (e *Engine) ScanFile(ctx context.Context, file moderation.FileRef) Query {
	q := newQuery(moderation.ArtifactFile, file.Name)
	if !e.Enabled() {
		return e.done(q.unavailable(ErrUnavailable))
	}

	sha, err := e.hashFile(ctx, file)
	if err != nil {
		return e.done(q.unavailable(err))
	}

	q = e.CheckFile(ctx, sha)
	if q.State != moderation.StateNotSubmitted {
		return e.done(q)
	}

	id, err := e.SubmitFile(ctx, file)
	if err != nil {
		e.logger.WithFields(log.Fields{"sha256": sha, "error": err.Error()}).Warn("file submission failed")
		return e.done(q.unavailable(err))
	}
	q = q.submitted(id)

	for !q.State.Terminal() {
		if err := e.sleep(ctx, e.pollInterval); err != nil {
			q.State = moderation.StateUnresolved
			q.Err = err
			break
		}
		q = e.poll(ctx, q)
	}
	return e.done(q)
}

func (e *Engine) hashFile(ctx context.Context, file moderation.FileRef) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	body, err := file.Open(callCtx)
	if err != nil {
		return "", fmt.Errorf("open attachment: %w", err)
	}
	defer body.Close()

	sha, err := HashReader(body)
	if err != nil {
		return "", fmt.Errorf("hash attachment: %w", err)
	}
	return sha, nil
}

func (e *Engine) done(q Query) Query {
	if e.observe != nil {
		e.observe(q.Verdict())
	}
	e.logger.WithFields(log.Fields{
		"kind":     q.Kind,
		"subject":  q.Subject,
		"state":    q.State.String(),
		"attempts": q.Attempts,
	}).Debug("reputation query finished")
	return q
}
