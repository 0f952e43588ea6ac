package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/book-reader/internal/models"
)

func TestDecodeTaskRoundTrip(t *testing.T) {
	task := NewCoverTask("t-1", "book-1")
	payload, err := json.Marshal(task)
	require.NoError(t, err)

	got, err := DecodeTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeCoverExtract, got.Type)
	assert.Equal(t, "book-1", got.BookID)
}

func TestDecodeTaskRejectsMissingFields(t *testing.T) {
	_, err := DecodeTask([]byte(`{"id":"t-1"}`))
	assert.Error(t, err)

	_, err = DecodeTask([]byte(`not json`))
	assert.Error(t, err)
}

func TestQueueFor(t *testing.T) {
	assert.Equal(t, QueueCritical, queueFor(1))
	assert.Equal(t, QueueDefault, queueFor(2))
	assert.Equal(t, QueueLow, queueFor(0))
}

func TestConvertAsynqStatus(t *testing.T) {
	payload, err := json.Marshal(NewCoverTask("t-1", "book-1"))
	require.NoError(t, err)
	done := time.Now()

	tests := []struct {
		name  string
		info  *asynq.TaskInfo
		want  models.CoverStatus
		error string
	}{
		{"pending", &asynq.TaskInfo{ID: "t-1", State: asynq.TaskStatePending, Payload: payload}, models.CoverPending, ""},
		{"active", &asynq.TaskInfo{ID: "t-1", State: asynq.TaskStateActive, Payload: payload}, models.CoverRunning, ""},
		{"completed", &asynq.TaskInfo{ID: "t-1", State: asynq.TaskStateCompleted, CompletedAt: done, Payload: payload}, models.CoverCompleted, ""},
		{"retry", &asynq.TaskInfo{ID: "t-1", State: asynq.TaskStateRetry, LastErr: "boom", Payload: payload}, models.CoverFailed, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertAsynqStatus(tt.info)
			assert.Equal(t, "t-1", got.ID)
			assert.Equal(t, "book-1", got.BookID)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.error, got.Error)
		})
	}
}
