package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorder_Exposition(t *testing.T) {
	r := New()
	r.IntentDispatched("GET_SPECIES", "latest")
	r.IntentDispatched("GET_SPECIES", "latest")
	r.OutcomeRecorded("GET_SPECIES", "superseded")
	r.ObserveRequest("GET_SPECIES", 20*time.Millisecond)
	r.TaskStarted()

	body := scrape(t, r)
	assert.Contains(t, body, `flame_intents_total{op="GET_SPECIES",strategy="latest"} 2`)
	assert.Contains(t, body, `flame_outcomes_total{op="GET_SPECIES",status="superseded"} 1`)
	assert.Contains(t, body, `flame_request_duration_seconds_count{op="GET_SPECIES"} 1`)
	assert.Contains(t, body, `flame_in_flight 1`)

	r.TaskFinished()
	assert.Contains(t, scrape(t, r), `flame_in_flight 0`)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.IntentDispatched("GET_USER", "latest")
		r.OutcomeRecorded("GET_USER", "ok")
		r.ObserveRequest("GET_USER", time.Second)
		r.TaskStarted()
		r.TaskFinished()
	})
	assert.Nil(t, r.Registry())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
