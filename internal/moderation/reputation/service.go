// Package reputation looks artifacts up in an external hash/URL reputation
// service and drives unknown files through submission and polling.
package reputation

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound means the service has no report for the artifact yet.
	ErrNotFound = errors.New("reputation: artifact not found")
	// ErrUnavailable means the service is disabled or refuses our credential.
	ErrUnavailable = errors.New("reputation: service unavailable")
)

const (
	AnalysisQueued     = "queued"
	AnalysisInProgress = "in-progress"
	AnalysisCompleted  = "completed"
)

// Report carries detection statistics. Results maps engine name to the
// threat label of every engine that flagged the artifact.
type Report struct {
	Malicious int
	Total     int
	Results   map[string]string
}

type Analysis struct {
	Status string
	Report Report
}

func (a Analysis) Completed() bool {
	return a.Status == AnalysisCompleted
}

// Service is the boundary to the external reputation database.
type Service interface {
	FileReport(ctx context.Context, sha256 string) (Report, error)
	URLReport(ctx context.Context, urlID string) (Report, error)
	SubmitFile(ctx context.Context, name string, body io.Reader) (analysisID string, err error)
	Analysis(ctx context.Context, analysisID string) (Analysis, error)
}
