package queue

import (
    "encoding/json"
    "testing"

    "github.com/hibiken/asynq"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestNewProcessTaskPayload(t *testing.T) {
    task, err := NewProcessTask("d1")
    require.NoError(t, err)
    assert.Equal(t, TaskTypeDocumentProcess, task.Type())
    assert.JSONEq(t, `{"documentId":"d1"}`, string(task.Payload()))

    p, err := ParseProcessPayload(task.Payload())
    require.NoError(t, err)
    assert.Equal(t, "d1", p.DocumentID)
}

func TestParseProcessPayloadRejectsBadInput(t *testing.T) {
    _, err := ParseProcessPayload([]byte("not json"))
    assert.Error(t, err)

    data, _ := json.Marshal(map[string]string{"other": "x"})
    _, err = ParseProcessPayload(data)
    assert.Error(t, err)
}

func TestTaskIDIsStable(t *testing.T) {
    assert.Equal(t, "document:d1", TaskID("d1"))
    assert.Equal(t, TaskID("d1"), TaskID("d1"))
}

func TestConvertAsynqStatus(t *testing.T) {
    tests := []struct {
        state asynq.TaskState
        want  string
    }{
        {asynq.TaskStatePending, "pending"},
        {asynq.TaskStateScheduled, "pending"},
        {asynq.TaskStateActive, "running"},
        {asynq.TaskStateRetry, "retrying"},
        {asynq.TaskStateArchived, "failed"},
        {asynq.TaskStateCompleted, "completed"},
    }
    for _, tt := range tests {
        got := convertAsynqStatus(&asynq.TaskInfo{ID: "document:d1", State: tt.state, LastErr: "boom"})
        assert.Equal(t, tt.want, got.Status, tt.state.String())
        assert.Equal(t, "document:d1", got.TaskID)
    }
}

func TestShouldRequeue(t *testing.T) {
    tests := []struct {
        state asynq.TaskState
        want  bool
    }{
        {asynq.TaskStatePending, false},
        {asynq.TaskStateScheduled, false},
        {asynq.TaskStateActive, false},
        {asynq.TaskStateRetry, false},
        {asynq.TaskStateAggregating, false},
        {asynq.TaskStateArchived, true},
        {asynq.TaskStateCompleted, true},
    }
    for _, tt := range tests {
        assert.Equal(t, tt.want, shouldRequeue(tt.state), tt.state.String())
    }
}
