// Package scheduler wraps robfig/cron to send a periodic usage digest.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/Manjussha/promptvs/internal/usage"
)

// UsageReporter reports the local request budget. The digest never writes the ledger.
type UsageReporter interface {
	Snapshot() usage.Snapshot
}

// DigestSender delivers a digest.
type DigestSender interface {
	Send(event string, payload interface{})
}

// Digest is the payload of one usage digest.
type Digest struct {
	usage.Snapshot
}

func (d Digest) String() string {
	return fmt.Sprintf("%d requests and %d tokens in the last 24h (%d/%d). Last minute: %d/%d.",
		d.RequestsLastDay, d.TokensLastDay, d.RequestsLastDay, d.DayLimit,
		d.RequestsLastMinute, d.MinuteLimit)
}

// Engine manages the cron scheduler.
type Engine struct {
	cron     *cron.Cron
	reporter UsageReporter
	sender   DigestSender
	event    string

	mu    sync.Mutex
	entry cron.EntryID
}

// New creates a new cron-based Engine. Digests are sent as event.
func New(reporter UsageReporter, sender DigestSender, event string) *Engine {
	return &Engine{
		cron:     cron.New(cron.WithSeconds()),
		reporter: reporter,
		sender:   sender,
		event:    event,
	}
}

// Start registers the digest job with a six-field cron expression and starts
// the engine. An empty expression disables the digest.
func (e *Engine) Start(ctx context.Context, expr string) error {
	if expr == "" {
		log.Infof("scheduler: usage digest disabled")
		return nil
	}
	id, err := e.cron.AddFunc(expr, e.RunDigest)
	if err != nil {
		return fmt.Errorf("scheduler.Start: parse cron %q: %w", expr, err)
	}
	e.mu.Lock()
	e.entry = id
	e.mu.Unlock()

	e.cron.Start()
	go func() {
		<-ctx.Done()
		e.cron.Stop()
	}()
	log.Infof("scheduler: usage digest scheduled, next at %s", e.Next().Format(time.RFC3339))
	return nil
}

// Next returns the next digest time, or zero when none is scheduled.
func (e *Engine) Next() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.entry == 0 {
		return time.Time{}
	}
	return e.cron.Entry(e.entry).Next
}

// RunDigest sends one digest now.
func (e *Engine) RunDigest() {
	d := Digest{Snapshot: e.reporter.Snapshot()}
	log.Debugf("scheduler.RunDigest: %s", d)
	e.sender.Send(e.event, d)
}
