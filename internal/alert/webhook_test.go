package alert

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-data-etl/internal/acquire"
	"github.com/couchcryptid/weather-data-etl/internal/pipeline"
	"github.com/couchcryptid/weather-data-etl/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func degradedReport() *pipeline.RunReport {
	return &pipeline.RunReport{
		RunID:       "run-1",
		StartedAt:   time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2025, 3, 10, 14, 0, 12, 0, time.UTC),
		Locations:   3,
		Fetched:     2,
		Transformed: 2,
		Approved:    2,
		FetchFailures: []acquire.AcquisitionError{
			{LocationID: "chi", Attempts: 3, Err: assert.AnError},
		},
	}
}

func failedReport() *pipeline.RunReport {
	r := degradedReport()
	r.Steps = []store.StepResult{{Step: store.StepHistorical, Err: assert.AnError}}
	return r
}

func TestWebhook_Notify(t *testing.T) {
	var got atomic.Pointer[webhookPayload]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		got.Store(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 0, discardLogger())
	require.NoError(t, wh.Notify(context.Background(), degradedReport()))

	payload := got.Load()
	require.NotNil(t, payload)
	assert.Contains(t, payload.Text, "fetched 2/3 locations")
	assert.Equal(t, "run-1", payload.Event.RunID)
	assert.Equal(t, "degraded", payload.Event.Status)
	assert.Equal(t, 2, payload.Event.Approved)
}

func TestWebhook_Notify_FailedRunStatus(t *testing.T) {
	var got atomic.Pointer[webhookPayload]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		got.Store(&payload)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 0, discardLogger())
	require.NoError(t, wh.Notify(context.Background(), failedReport()))

	payload := got.Load()
	require.NotNil(t, payload)
	assert.Equal(t, "failed", payload.Event.Status)
	assert.Contains(t, payload.Text, "[FAILED]")
}

func TestWebhook_Notify_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "hook disabled", http.StatusGone)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 0, discardLogger())
	err := wh.Notify(context.Background(), degradedReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 410")
	assert.Contains(t, err.Error(), "hook disabled")
}

func TestWebhook_Notify_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	wh := NewWebhook(srv.URL, 0, discardLogger())
	err := wh.Notify(context.Background(), degradedReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post alert")
}

func TestMulti_Notify_TriesEveryNotifier(t *testing.T) {
	var calls atomic.Int32
	srvOK := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srvOK.Close()
	srvBroken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srvBroken.Close()

	m := Multi{
		NewWebhook(srvBroken.URL, 0, discardLogger()),
		NewWebhook(srvOK.URL, 0, discardLogger()),
	}
	err := m.Notify(context.Background(), degradedReport())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestKafkaMessage(t *testing.T) {
	msg, err := serializeToMessage(eventFromReport(failedReport()))
	require.NoError(t, err)

	assert.Equal(t, []byte("run-1"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "status", msg.Headers[0].Key)
	assert.Equal(t, []byte("failed"), msg.Headers[0].Value)

	var event Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, 2, event.Fetched)
	assert.Contains(t, event.Summary, "step historical_dataset failed")
}
