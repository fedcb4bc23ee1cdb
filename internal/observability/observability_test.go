package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iamwavecut/phishguard/internal/moderation"
)

func TestAuditRecordsDecision(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	AuditTo(zap.New(core), AuditEntry{
		RunID:     "run-1",
		Candidate: moderation.Candidate{ChatID: -100, SenderID: 42, ChatKind: moderation.ChatGroup, URLs: []string{"https://x.example"}},
		Reputation: moderation.ReputationVerdict{
			Kind:        moderation.ArtifactURL,
			State:       moderation.StateResolved,
			Outcome:     moderation.OutcomeMalicious,
			Detections:  7,
			EngineTotal: 90,
		},
		Risk:   moderation.RiskVerdict{Category: moderation.RiskSafe},
		Action: moderation.EnforcementAction{Visibility: moderation.DeleteSilent, NotifyOperatorChannel: true, ReasonTag: "reputation_malicious"},
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one audit line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["run_id"] != "run-1" || fields["reason"] != "reputation_malicious" || fields["detections"] != int64(7) {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["visibility"] != moderation.DeleteSilent.String() {
		t.Fatalf("unexpected visibility: %v", fields["visibility"])
	}
}

func TestAuditToNilLogger(t *testing.T) {
	t.Parallel()

	AuditTo(nil, AuditEntry{})
}

func TestMetricsHandlerExposesPipelineMetrics(t *testing.T) {
	t.Parallel()

	RecordPipelineRun(moderation.Ignore.String())
	RecordReputation("url", "resolved")
	RecordRiskVerdict("safe")
	StartPipeline()()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"phishguard_pipeline_runs_total",
		"phishguard_reputation_lookups_total",
		"phishguard_risk_verdicts_total",
		"phishguard_pipeline_duration_seconds",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("metric %s missing", name)
		}
	}
}
