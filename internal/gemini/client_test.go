package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "gemini-2.5-flash"), &calls
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(code int, status, msg string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{"code": code, "status": status, "message": msg},
	}
}

func TestGenerate_Success(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "Summarize this text.", req.Contents[0].Parts[0].Text)

		writeJSON(w, 200, map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]string{{"text": "Hello "}, {"text": "world"}},
				},
			}},
			"usageMetadata": map[string]int{
				"promptTokenCount": 12, "candidatesTokenCount": 30, "totalTokenCount": 42,
			},
		})
	})

	gen, err := client.Generate(context.Background(), "secret", "Summarize this text.")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", gen.Text)
	assert.Equal(t, 12, gen.PromptTokens)
	assert.Equal(t, 30, gen.OutputTokens)
	assert.Equal(t, 42, gen.TotalTokens)
}

func TestGenerate_EmptyResponse(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"candidates": []interface{}{}})
	})
	gen, err := client.Generate(context.Background(), "k", "p")
	require.NoError(t, err)
	assert.Equal(t, EmptyResponseText, gen.Text)
	assert.Zero(t, gen.TotalTokens)
}

func TestGenerate_MissingKeyMakesNoCall(t *testing.T) {
	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("network call with no key")
	})
	_, err := client.Generate(context.Background(), "  ", "p")
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = client.CountTokens(context.Background(), "", "p")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestGenerate_RateLimitNormalization(t *testing.T) {
	cases := []struct {
		name string
		code int
		body interface{}
	}{
		{"status 429", 429, apiError(429, "RESOURCE_EXHAUSTED", "Resource has been exhausted")},
		{"status token only", 400, apiError(400, "RESOURCE_EXHAUSTED", "try later")},
		{"quota in message", 403, apiError(403, "PERMISSION_DENIED", "You exceeded your current quota")},
		{"plain 429 body", 429, "Too Many Requests"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if s, ok := tc.body.(string); ok {
					w.WriteHeader(tc.code)
					fmt.Fprint(w, s)
					return
				}
				writeJSON(w, tc.code, tc.body)
			})
			_, err := client.Generate(context.Background(), "k", "p")
			assert.ErrorIs(t, err, ErrRateLimited)
			assert.Equal(t, RateLimitMessage, UserMessage(err))
		})
	}
}

func TestGenerate_RemoteFailure(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, apiError(400, "INVALID_ARGUMENT", "API key not valid. Please pass a valid API key."))
	})
	_, err := client.Generate(context.Background(), "bad", "p")
	require.Error(t, err)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 400, remote.StatusCode)
	assert.Equal(t, "INVALID_ARGUMENT", remote.Status)
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, "API key not valid. Please pass a valid API key.", UserMessage(err))
}

func TestGenerate_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, "m")
	_, err := client.Generate(context.Background(), "k", "p")
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Zero(t, remote.StatusCode)
	assert.NotEmpty(t, UserMessage(err))
}

func TestGenerate_BadJSON(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		fmt.Fprint(w, "{broken")
	})
	_, err := client.Generate(context.Background(), "k", "p")
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Contains(t, remote.Message, "decode response")
}

func TestCountTokens(t *testing.T) {
	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:countTokens", r.URL.Path)
		writeJSON(w, 200, map[string]int{"totalTokens": 17})
	})

	n, err := client.CountTokens(context.Background(), "k", "some text")
	require.NoError(t, err)
	assert.Equal(t, 17, n)

	n, err = client.CountTokens(context.Background(), "k", "")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestTryCountTokens_FailsSoft(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 500, apiError(500, "INTERNAL", "boom"))
	})

	res := client.TryCountTokens(context.Background(), "k", "text")
	assert.False(t, res.Available)
	assert.Zero(t, res.OrZero())

	res = client.TryCountTokens(context.Background(), "", "text")
	assert.Equal(t, Unavailable, res)
}

func TestTryCountTokens_OK(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]int{"totalTokens": 5})
	})
	res := client.TryCountTokens(context.Background(), "k", "text")
	assert.True(t, res.Available)
	assert.Equal(t, 5, res.OrZero())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, FallbackMessage, UserMessage(&RemoteError{StatusCode: 500}))
	assert.Equal(t, ErrConfiguration.Error(), UserMessage(fmt.Errorf("run: %w", ErrConfiguration)))
	assert.Equal(t, RateLimitMessage, UserMessage(fmt.Errorf("wrapped: %w", ErrRateLimited)))
	assert.Equal(t, "gemini: 503 UNAVAILABLE: overloaded",
		(&RemoteError{StatusCode: 503, Status: "UNAVAILABLE", Message: "overloaded"}).Error())
}
