// Package webhook fires outbound webhook events to configured URLs.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Dispatcher posts events to a fixed list of URLs.
type Dispatcher struct {
	urls   []string
	client *http.Client
	delays []time.Duration
}

// New creates a Dispatcher with a default HTTP client. Blank URLs are ignored.
// Returns nil when no URL remains, which disables webhooks.
func New(urls []string) *Dispatcher {
	var clean []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return &Dispatcher{
		urls:   clean,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, time.Second, 2 * time.Second},
	}
}

// Payload is the JSON body sent to webhook URLs.
type Payload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Fire sends an event to every URL in the background.
// Each delivery is attempted up to 3 times with backoff (immediately, 1s, 2s).
func (d *Dispatcher) Fire(event string, data interface{}) {
	if d == nil {
		return
	}
	body, err := json.Marshal(Payload{Event: event, Timestamp: time.Now(), Data: data})
	if err != nil {
		log.Errorf("webhook.Fire: marshal: %v", err)
		return
	}
	for _, url := range d.urls {
		go d.fireOne(url, body)
	}
}

func (d *Dispatcher) fireOne(url string, body []byte) {
	for i, delay := range d.delays {
		if delay > 0 {
			time.Sleep(delay)
		}
		status, err := d.post(url, body)
		if err == nil && status < 400 {
			return
		}
		log.Warnf("webhook.fireOne: attempt %d to %s: status=%d err=%v", i+1, url, status, err)
	}
}

func (d *Dispatcher) post(url string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("webhook.post: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "promptvs-webhook")
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook.post: do: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
