package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunStore persists job_runs rows.
type RunStore interface {
	CreateJobRun(ctx context.Context, jobType string) (string, error)
	UpdateJobRun(ctx context.Context, runID, status string, detailsJSON []byte) error
}

type Service struct {
	store RunStore
}

func New(store RunStore) *Service {
	return &Service{store: store}
}

// RunNow executes run synchronously and records its outcome. Bookkeeping
// failures are logged and never mask the result of run itself.
func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	runID, err := s.store.CreateJobRun(ctx, jobType)
	if err != nil {
		slog.Warn("job run insert failed", "jobType", jobType, "err", err)
	}

	details, err := run(ctx)
	status := StatusSucceeded
	if err != nil {
		status = StatusFailed
		details = map[string]any{"error": err.Error(), "details": details}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "jobType", jobType, "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.store.UpdateJobRun(ctx, runID, status, detailsJSON); updErr != nil {
			slog.Warn("job run update failed", "jobType", jobType, "runId", runID, "err", updErr)
		}
	}
	return details, err
}
