package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	created []string
	status  map[string]string
	details map[string][]byte
	failOn  string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{status: map[string]string{}, details: map[string][]byte{}}
}

func (m *memoryStore) CreateJobRun(_ context.Context, jobType string) (string, error) {
	if m.failOn == "create" {
		return "", errors.New("insert failed")
	}
	m.created = append(m.created, jobType)
	id := jobType + "-1"
	m.status[id] = StatusRunning
	return id, nil
}

func (m *memoryStore) UpdateJobRun(_ context.Context, runID, status string, detailsJSON []byte) error {
	m.status[runID] = status
	m.details[runID] = detailsJSON
	return nil
}

func TestRunNowSuccess(t *testing.T) {
	store := newMemoryStore()

	details, err := New(store).RunNow(context.Background(), "payroll_commitment", func(context.Context) (any, error) {
		return map[string]any{"lines": 9}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lines": 9}, details)
	assert.Equal(t, StatusSucceeded, store.status["payroll_commitment-1"])
	assert.JSONEq(t, `{"lines":9}`, string(store.details["payroll_commitment-1"]))
}

func TestRunNowFailure(t *testing.T) {
	store := newMemoryStore()
	boom := errors.New("ledger locked")

	_, err := New(store).RunNow(context.Background(), "payroll_commitment", func(context.Context) (any, error) {
		return map[string]any{"runId": "abc"}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, store.status["payroll_commitment-1"])

	var recorded map[string]any
	require.NoError(t, json.Unmarshal(store.details["payroll_commitment-1"], &recorded))
	assert.Equal(t, "ledger locked", recorded["error"])
}

func TestRunNowBookkeepingFailureDoesNotMaskResult(t *testing.T) {
	store := newMemoryStore()
	store.failOn = "create"

	ran := false
	_, err := New(store).RunNow(context.Background(), "payroll_commitment", func(context.Context) (any, error) {
		ran = true
		return nil, nil
	})
	assert.NoError(t, err)
	assert.True(t, ran)
	assert.Empty(t, store.details)
}
