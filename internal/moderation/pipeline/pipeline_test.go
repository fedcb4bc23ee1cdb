package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iamwavecut/phishguard/internal/db"
	"github.com/iamwavecut/phishguard/internal/moderation"
	"github.com/iamwavecut/phishguard/internal/moderation/prefilter"
	"github.com/iamwavecut/phishguard/internal/moderation/reputation"
	"github.com/iamwavecut/phishguard/internal/policy/enforcement"
)

type stubLimiter struct {
	err    error
	notice time.Duration
	calls  int
}

func (l *stubLimiter) Wait(_ context.Context, _ int64, onNotice func(time.Duration)) error {
	l.calls++
	if l.notice > 0 && onNotice != nil {
		onNotice(l.notice)
	}
	return l.err
}

type stubAdmins map[int64]bool

func (a stubAdmins) IsAdmin(_ context.Context, _ int64, userID int64) bool {
	return a[userID]
}

type stubReputation struct {
	disabled bool
	file     reputation.Query
	url      reputation.Query

	mu         sync.Mutex
	scanned    int
	checkedURL string
}

func (r *stubReputation) Enabled() bool { return !r.disabled }

func (r *stubReputation) ScanFile(context.Context, moderation.FileRef) reputation.Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanned++
	return r.file
}

func (r *stubReputation) CheckURL(_ context.Context, rawURL string) reputation.Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkedURL = rawURL
	return r.url
}

type stubRisk struct {
	category moderation.RiskCategory

	mu          sync.Mutex
	seenContext *moderation.ReputationVerdict
	classified  int
	explained   []string
}

func (r *stubRisk) Enabled() bool { return r != nil }

func (r *stubRisk) Classify(_ context.Context, _ string, rep *moderation.ReputationVerdict) moderation.RiskVerdict {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classified++
	r.seenContext = rep
	return moderation.RiskVerdict{Category: r.category, RawExplanation: "analysis"}
}

func (r *stubRisk) Explain(_ context.Context, labels []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.explained = labels
	return "explained"
}

type stubPolicies struct {
	policy moderation.ChatPolicy
	err    error
}

func (p stubPolicies) GetPolicy(context.Context, int64) (moderation.ChatPolicy, error) {
	return p.policy, p.err
}

type stubRecorder struct {
	actions    []db.Action
	reputation int
	classifier int
}

func (r *stubRecorder) Action(_ int64, action db.Action) {
	r.actions = append(r.actions, action)
}

func (r *stubRecorder) APIUsage(reputationCalls, classifierCalls int) {
	r.reputation += reputationCalls
	r.classifier += classifierCalls
}

func maliciousQuery(kind moderation.ArtifactKind) reputation.Query {
	return reputation.Query{
		Kind:  kind,
		State: moderation.StateResolved,
		Report: reputation.Report{
			Malicious: 4,
			Total:     70,
			Results:   map[string]string{"a": "Trojan.Stealer"},
		},
	}
}

func cleanQuery(kind moderation.ArtifactKind) reputation.Query {
	return reputation.Query{Kind: kind, State: moderation.StateResolved, Report: reputation.Report{Total: 70}}
}

func attachment(name string, size int64) *moderation.FileRef {
	return &moderation.FileRef{
		Name: name,
		Size: size,
		Opener: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("data")), nil
		},
	}
}

func newPipeline(t *testing.T, deps Deps, opts ...Option) *Pipeline {
	t.Helper()
	if deps.Gate == nil {
		gate, err := prefilter.NewDefault()
		if err != nil {
			t.Fatalf("prefilter: %v", err)
		}
		deps.Gate = gate
	}
	return New(deps, opts...)
}

func TestRunGroupNotEscalated(t *testing.T) {
	t.Parallel()

	rep := &stubReputation{}
	risk := &stubRisk{category: moderation.RiskDangerous}
	p := newPipeline(t, Deps{Reputation: rep, Risk: risk})

	res, err := p.Run(context.Background(), moderation.Candidate{
		ChatID: -1, SenderID: 1, ChatKind: moderation.ChatGroup, Text: "good morning everyone",
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Escalated || res.Action.Visibility != moderation.Ignore || res.Action.ReasonTag != ReasonNotEscalated {
		t.Fatalf("unexpected result: %+v", res)
	}
	if rep.scanned != 0 || risk.classified != 0 {
		t.Fatalf("expensive checks must not run for ordinary messages")
	}
}

func TestRunAdminsAreNotInspected(t *testing.T) {
	t.Parallel()

	risk := &stubRisk{category: moderation.RiskDangerous}
	p := newPipeline(t, Deps{Admins: stubAdmins{7: true}, Risk: risk})

	res, err := p.Run(context.Background(), moderation.Candidate{
		ChatID: -1, SenderID: 7, ChatKind: moderation.ChatGroup, Text: "crypto airdrop https://x.example",
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Escalated || risk.classified != 0 {
		t.Fatalf("admin content must bypass the pipeline: %+v", res)
	}

	trusted, err := p.Run(context.Background(), moderation.Candidate{
		ChatID: -1, SenderID: -1, ChatKind: moderation.ChatGroup, Text: "crypto airdrop", TrustedSender: true,
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if trusted.Escalated {
		t.Fatalf("posts on behalf of the chat must bypass the pipeline")
	}
}

func TestRunGroupMaliciousURLDeletes(t *testing.T) {
	t.Parallel()

	rep := &stubReputation{url: maliciousQuery(moderation.ArtifactURL)}
	risk := &stubRisk{category: moderation.RiskSafe}
	rec := &stubRecorder{}
	p := newPipeline(t, Deps{
		Reputation: rep,
		Risk:       risk,
		Policies:   stubPolicies{policy: moderation.ChatPolicy{Mode: moderation.ModeSilent}},
		Recorder:   rec,
	})

	res, err := p.Run(context.Background(), moderation.Candidate{
		ChatID:   -1,
		SenderID: 2,
		ChatKind: moderation.ChatGroup,
		Text:     "claim https://phish.example.com now",
		URLs:     []string{"https://phish.example.com", "https://second.example.com"},
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Action.Visibility != moderation.DeleteSilent || !res.Action.NotifyOperatorChannel {
		t.Fatalf("unexpected action: %+v", res.Action)
	}
	if res.Action.ReasonTag != enforcement.ReasonReputationMalicious {
		t.Fatalf("unexpected reason: %s", res.Action.ReasonTag)
	}
	if rep.checkedURL != "https://phish.example.com" {
		t.Fatalf("first URL must be checked, got %q", rep.checkedURL)
	}
	if risk.seenContext == nil || risk.seenContext.Detections != 4 {
		t.Fatalf("classifier must receive the link stats: %+v", risk.seenContext)
	}
	if rec.reputation != 1 || rec.classifier != 1 || len(rec.actions) != 1 || !rec.actions[0].Link || !rec.actions[0].Threat {
		t.Fatalf("unexpected stats: %+v", rec)
	}
	if res.RunID == "" {
		t.Fatalf("run id must be set")
	}
}

func TestRunGroupSuspiciousFollowsStrictness(t *testing.T) {
	t.Parallel()

	candidate := moderation.Candidate{ChatID: -1, SenderID: 3, ChatKind: moderation.ChatGroup, Text: "скинь перевод на карту"}
	risk := &stubRisk{category: moderation.RiskSuspicious}

	lenient := newPipeline(t, Deps{Risk: risk, Reputation: &stubReputation{}})
	res, err := lenient.Run(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Action.Visibility != moderation.WarnInChat || res.Action.NotifyOperatorChannel {
		t.Fatalf("lenient: %+v", res.Action)
	}

	strict := newPipeline(t, Deps{
		Risk:     risk,
		Policies: stubPolicies{policy: moderation.ChatPolicy{Mode: moderation.ModeActive, Strict: true}},
	})
	res, err = strict.Run(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Action.Visibility != moderation.DeleteAndAnnounce || !res.ReputationSkipped {
		t.Fatalf("strict: %+v", res)
	}
}

func TestRunPolicyErrorFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, Deps{
		Risk:     &stubRisk{category: moderation.RiskDangerous},
		Policies: stubPolicies{err: errors.New("db locked")},
	})
	res, err := p.Run(context.Background(), moderation.Candidate{
		ChatID: -1, SenderID: 3, ChatKind: moderation.ChatGroup, Text: "crypto giveaway",
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Policy != moderation.DefaultPolicy() || res.Action.Visibility != moderation.DeleteAndAnnounce {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunPrivateMaliciousFileIsExplained(t *testing.T) {
	t.Parallel()

	rep := &stubReputation{file: maliciousQuery(moderation.ArtifactFile)}
	risk := &stubRisk{category: moderation.RiskSafe}
	limiter := &stubLimiter{notice: time.Second}
	p := newPipeline(t, Deps{Limiter: limiter, Reputation: rep, Risk: risk})

	var notices int
	res, err := p.Run(context.Background(), moderation.Candidate{
		ChatID: 5, SenderID: 5, ChatKind: moderation.ChatPrivate, Attachment: attachment("photo.jpg", 10),
	}, func(time.Duration) { notices++ })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Escalated || rep.scanned != 1 {
		t.Fatalf("private files must always be checked: %+v", res)
	}
	if res.Action.Visibility != moderation.WarnInChat || res.Action.NotifyOperatorChannel {
		t.Fatalf("unexpected private action: %+v", res.Action)
	}
	if res.ThreatExplanation != "explained" || len(risk.explained) != 1 || risk.explained[0] != "Trojan.Stealer" {
		t.Fatalf("threat must be explained: %q %v", res.ThreatExplanation, risk.explained)
	}
	if risk.classified != 0 || res.Risk.Category != moderation.RiskUnknown {
		t.Fatalf("file without text must not be classified")
	}
	if notices != 1 || limiter.calls != 1 {
		t.Fatalf("limiter notice not forwarded")
	}
}

func TestRunPrivateUnresolvedFile(t *testing.T) {
	t.Parallel()

	rep := &stubReputation{file: reputation.Query{Kind: moderation.ArtifactFile, State: moderation.StateUnresolved}}
	p := newPipeline(t, Deps{Reputation: rep})

	res, err := p.Run(context.Background(), moderation.Candidate{
		ChatID: 5, SenderID: 5, ChatKind: moderation.ChatPrivate, Attachment: attachment("a.exe", 10),
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.FileUnresolved() || res.Reputation.IsClean() {
		t.Fatalf("unresolved analysis must not look clean: %+v", res)
	}
	if !res.RiskSkipped {
		t.Fatalf("missing classifier must be reported as skipped")
	}
}

func TestRunOversizedFileIsNotScanned(t *testing.T) {
	t.Parallel()

	rep := &stubReputation{file: cleanQuery(moderation.ArtifactFile)}
	p := newPipeline(t, Deps{Reputation: rep}, WithMaxFileSize(100))

	res, err := p.Run(context.Background(), moderation.Candidate{
		ChatID: 5, SenderID: 5, ChatKind: moderation.ChatPrivate, Attachment: attachment("big.zip", 101),
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.FileTooLarge || rep.scanned != 0 || res.File != nil {
		t.Fatalf("oversized file must be skipped: %+v", res)
	}
}

func TestRunCancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, Deps{Limiter: &stubLimiter{err: context.Canceled}})
	if _, err := p.Run(context.Background(), moderation.Candidate{ChatKind: moderation.ChatPrivate, Text: "x"}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestRunNoSignalsIgnores(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, Deps{})
	res, err := p.Run(context.Background(), moderation.Candidate{
		ChatID: -1, SenderID: 9, ChatKind: moderation.ChatGroup, Text: "airdrop",
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Escalated || res.Action.Visibility != moderation.Ignore || res.Reputation.State != moderation.StateUnavailable {
		t.Fatalf("unexpected result: %+v", res)
	}
}
