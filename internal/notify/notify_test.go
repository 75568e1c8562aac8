package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSender struct {
	msgs []string
	err  error
}

func (f *fakeSender) Send(msg string) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

type fakeAlerter struct {
	fakeSender
	alerts []string
}

func (f *fakeAlerter) SendLimitAlert(runID string, retryAfter time.Duration) error {
	f.alerts = append(f.alerts, runID+"/"+retryAfter.String())
	return nil
}

type fakeHook struct{ events []string }

func (f *fakeHook) Fire(event string, _ interface{}) { f.events = append(f.events, event) }

type summary string

func (s summary) String() string { return "summary: " + string(s) }

func TestSend(t *testing.T) {
	tg, hook := &fakeSender{}, &fakeHook{}
	d := New(tg, hook)

	d.Send(EventRunCompleted, summary("both done"))
	d.Send(EventRunFailed, 42)

	assert.Equal(t, []string{"[run.completed] summary: both done", "[run.failed] 42"}, tg.msgs)
	assert.Equal(t, []string{EventRunCompleted, EventRunFailed}, hook.events)
}

func TestSend_TelegramErrorDoesNotStopWebhook(t *testing.T) {
	tg, hook := &fakeSender{err: errors.New("down")}, &fakeHook{}
	New(tg, hook).Send(EventUsageDigest, "x")
	assert.Equal(t, []string{EventUsageDigest}, hook.events)
}

func TestRateLimited(t *testing.T) {
	alerter, hook := &fakeAlerter{}, &fakeHook{}
	New(alerter, hook).RateLimited("run-1", time.Minute, nil)
	assert.Equal(t, []string{"run-1/1m0s"}, alerter.alerts)
	assert.Empty(t, alerter.msgs)
	assert.Equal(t, []string{EventRateLimited}, hook.events)

	plain := &fakeSender{}
	New(plain, nil).RateLimited("run-2", 0, "limited")
	assert.Equal(t, []string{"[rate_limit] limited"}, plain.msgs)
}

func TestDisabled(t *testing.T) {
	var d *Dispatcher
	d.Send(EventRunCompleted, nil)
	d.RateLimited("", 0, nil)
	New(nil, nil).Send(EventRunCompleted, nil)
	New(nil, nil).RateLimited("", 0, nil)
}
