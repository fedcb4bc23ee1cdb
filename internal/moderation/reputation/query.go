package reputation

import (
	"errors"
	"sort"

	"github.com/iamwavecut/phishguard/internal/moderation"
)

const maxThreatLabels = 10

// Query is the per-artifact lookup state owned by a single pipeline run.
type Query struct {
	Kind         moderation.ArtifactKind
	Subject      string
	State        moderation.QueryState
	SubmissionID string
	Attempts     int
	Report       Report
	Err          error
}

func newQuery(kind moderation.ArtifactKind, subject string) Query {
	return Query{Kind: kind, Subject: subject, State: moderation.StateNotSubmitted}
}

func (q Query) resolved(report Report) Query {
	q.State = moderation.StateResolved
	q.Report = report
	q.Err = nil
	return q
}

// notFound keeps a file in NotSubmitted so it can be uploaded; a URL has no
// submit step and resolves with insufficient data.
func (q Query) notFound() Query {
	q.Err = ErrNotFound
	if q.Kind == moderation.ArtifactURL {
		q.State = moderation.StateResolved
		q.Report = Report{}
	}
	return q
}

func (q Query) unavailable(err error) Query {
	q.State = moderation.StateUnavailable
	q.Err = err
	return q
}

func (q Query) submitted(id string) Query {
	q.State = moderation.StateSubmitted
	q.SubmissionID = id
	q.Err = nil
	return q
}

// polled advances the machine after one poll. A failed poll counts as an attempt.
func (q Query) polled(analysis Analysis, err error, maxAttempts int) Query {
	q.Attempts++
	switch {
	case errors.Is(err, ErrUnavailable):
		return q.unavailable(err)
	case err == nil && analysis.Completed():
		return q.resolved(analysis.Report)
	}
	q.State = moderation.StatePolling
	q.Err = err
	if q.Attempts >= maxAttempts {
		q.State = moderation.StateUnresolved
	}
	return q
}

// NotFound reports whether the service had no record of the artifact.
func (q Query) NotFound() bool {
	return errors.Is(q.Err, ErrNotFound)
}

func (q Query) Verdict() moderation.ReputationVerdict {
	v := moderation.ReputationVerdict{
		Kind:    q.Kind,
		Subject: q.Subject,
		State:   q.State,
	}
	if q.Err != nil {
		v.Detail = q.Err.Error()
	}
	if q.State != moderation.StateResolved {
		return v
	}
	v.Detections = q.Report.Malicious
	v.EngineTotal = q.Report.Total
	switch {
	case q.Report.Malicious > 0:
		v.Outcome = moderation.OutcomeMalicious
		v.Labels = ThreatLabels(q.Report.Results)
	case q.NotFound() || q.Report.Total == 0:
		v.Outcome = moderation.OutcomeInsufficientData
	default:
		v.Outcome = moderation.OutcomeClean
	}
	return v
}

// ThreatLabels returns distinct labels ordered by engine name, at most ten.
func ThreatLabels(results map[string]string) []string {
	engines := make([]string, 0, len(results))
	for engine := range results {
		engines = append(engines, engine)
	}
	sort.Strings(engines)

	seen := make(map[string]struct{}, maxThreatLabels)
	labels := make([]string, 0, maxThreatLabels)
	for _, engine := range engines {
		label := results[engine]
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
		if len(labels) == maxThreatLabels {
			break
		}
	}
	return labels
}
