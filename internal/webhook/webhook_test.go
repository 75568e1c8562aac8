package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NoURLsDisables(t *testing.T) {
	assert.Nil(t, New(nil))
	assert.Nil(t, New([]string{" ", ""}))

	var d *Dispatcher
	d.Fire("run.completed", nil)
}

func TestFire_DeliversPayload(t *testing.T) {
	got := make(chan Payload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var p Payload
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&p)) {
			got <- p
		}
	}))
	defer srv.Close()

	New([]string{srv.URL}).Fire("run.completed", map[string]string{"run_id": "r1"})

	select {
	case p := <-got:
		assert.Equal(t, "run.completed", p.Event)
		assert.Equal(t, map[string]interface{}{"run_id": "r1"}, p.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestFire_RetriesOnServerError(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		close(done)
	}))
	defer srv.Close()

	d := New([]string{srv.URL})
	require.NotNil(t, d)
	d.delays = []time.Duration{0, time.Millisecond, time.Millisecond}
	d.Fire("rate_limit", nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no successful retry")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
