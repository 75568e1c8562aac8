// Package gemini wraps the Gemini generateContent and countTokens endpoints
// and normalizes their failures into ErrConfiguration, ErrRateLimited and
// *RemoteError.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/Manjussha/promptvs/internal/limiter"
)

// EmptyResponseText replaces a generation that returned no text.
const EmptyResponseText = "No response generated."

const maxErrorBody = 4096

// Generation is the result of one generateContent call.
type Generation struct {
	Text string
	// Token counts as reported by the server for the combined prompt.
	PromptTokens int
	OutputTokens int
	TotalTokens  int
}

// Client calls the Gemini REST API. The API key is passed per call so a run
// uses one key from start to finish.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	detector   *limiter.Detector
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client for the given model.
// The default HTTP client has no timeout; pass one through the context or WithHTTPClient.
func NewClient(baseURL, model string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{},
		detector:   limiter.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model identifier used for every call.
func (c *Client) Model() string { return c.model }

// Generate sends prompt to generateContent.
func (c *Client) Generate(ctx context.Context, apiKey, prompt string) (*Generation, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrConfiguration
	}

	var resp generateResponse
	if err := c.post(ctx, apiKey, "generateContent", newRequest(prompt), &resp); err != nil {
		return nil, err
	}

	gen := &Generation{
		Text:         resp.text(),
		PromptTokens: resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:  resp.UsageMetadata.TotalTokenCount,
	}
	if gen.Text == "" {
		gen.Text = EmptyResponseText
	}
	return gen, nil
}

// CountTokens returns the exact token count of text. Errors are normalized
// like Generate's. Empty text counts as zero without a network call.
func (c *Client) CountTokens(ctx context.Context, apiKey, text string) (int, error) {
	if strings.TrimSpace(apiKey) == "" {
		return 0, ErrConfiguration
	}
	if text == "" {
		return 0, nil
	}

	var resp countResponse
	if err := c.post(ctx, apiKey, "countTokens", newRequest(text), &resp); err != nil {
		return 0, err
	}
	if resp.TotalTokens < 0 {
		return 0, nil
	}
	return resp.TotalTokens, nil
}

// CountResult is the outcome of a best-effort count.
type CountResult struct {
	Tokens    int
	Available bool
}

// OrZero returns the count, or 0 when the count is unavailable.
func (r CountResult) OrZero() int {
	if !r.Available {
		return 0
	}
	return r.Tokens
}

// Unavailable is the CountResult for a failed count.
var Unavailable = CountResult{}

// TryCountTokens is CountTokens for the live estimate path: any failure,
// including a missing key, yields Unavailable and is only logged.
func (c *Client) TryCountTokens(ctx context.Context, apiKey, text string) CountResult {
	n, err := c.CountTokens(ctx, apiKey, text)
	if err != nil {
		if errors.Is(err, ErrConfiguration) || errors.Is(err, context.Canceled) {
			log.Debugf("gemini.TryCountTokens: %v", err)
		} else {
			log.Warnf("gemini.TryCountTokens: %v", err)
		}
		return Unavailable
	}
	return CountResult{Tokens: n, Available: true}
}

func (c *Client) post(ctx context.Context, apiKey, method string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gemini.%s: marshal: %w", method, err)
	}

	url := fmt.Sprintf("%s/models/%s:%s", c.baseURL, c.model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("gemini.%s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.normalize(0, "", err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		status, msg := parseAPIError(raw)
		return c.normalize(resp.StatusCode, status, msg, nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{StatusCode: resp.StatusCode, Message: "decode response: " + err.Error(), Err: err}
	}
	return nil
}

// normalize maps a failed call to ErrRateLimited or *RemoteError.
func (c *Client) normalize(code int, status, msg string, cause error) error {
	if c.detector.Detect(code, status+" "+msg) {
		log.Warnf("gemini: quota exhausted (status=%d %s): %s", code, status, msg)
		return ErrRateLimited
	}
	log.Errorf("gemini: request failed (status=%d %s): %s", code, status, msg)
	return &RemoteError{StatusCode: code, Status: status, Message: msg, Err: cause}
}

func parseAPIError(raw []byte) (status, message string) {
	var env apiErrorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && (env.Error.Message != "" || env.Error.Status != "") {
		return env.Error.Status, env.Error.Message
	}
	return "", strings.TrimSpace(string(raw))
}
