package telegram

import (
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manjussha/promptvs/internal/compare"
	"github.com/Manjussha/promptvs/internal/credential"
	"github.com/Manjussha/promptvs/internal/tokenizer"
	"github.com/Manjussha/promptvs/internal/usage"
)

type fakeUsage usage.Snapshot

func (f fakeUsage) Snapshot() usage.Snapshot { return usage.Snapshot(f) }

type fakeRuns struct {
	state compare.State
	err   string
	last  *compare.Comparison
}

func (f fakeRuns) State() compare.State { return f.state }
func (f fakeRuns) LastError() string { return f.err }
func (f fakeRuns) Last() *compare.Comparison { return f.last }

type fakeKeys credential.Source

func (f fakeKeys) Resolve() (string, credential.Source) { return "k", credential.Source(f) }

type sent struct {
	chatID int64
	text   string
}

func newHandler(snap usage.Snapshot, runs fakeRuns) (*CommandHandler, *[]sent) {
	var out []sent
	h := NewCommandHandler(fakeUsage(snap), runs, fakeKeys(credential.SourceEnv))
	h.reply = func(chatID int64, text string) { out = append(out, sent{chatID, text}) }
	return h, &out
}

func command(text string) *tgbotapi.Message {
	end := len(text)
	for i, r := range text {
		if r == ' ' {
			end = i
			break
		}
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 7},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}},
	}
}

func TestHandle_Usage(t *testing.T) {
	snap := usage.Snapshot{
		RequestsLastMinute: 15, RequestsLastDay: 40, TokensLastDay: 12345,
		MinuteLimit: 15, DayLimit: 1500, RetryAfter: 46 * time.Second,
	}
	h, out := newHandler(snap, fakeRuns{})

	h.Handle(command("/usage"))
	require.Len(t, *out, 1)
	assert.Equal(t, int64(7), (*out)[0].chatID)
	assert.Contains(t, (*out)[0].text, "Last minute: 15 / 15")
	assert.Contains(t, (*out)[0].text, "Tokens last 24h: 12345")
	assert.Contains(t, (*out)[0].text, "retry in 46s")
}

func TestHandle_Status(t *testing.T) {
	h, out := newHandler(usage.Snapshot{}, fakeRuns{state: compare.StateFailed, err: "boom"})
	h.Handle(command("/status"))
	require.Len(t, *out, 1)
	assert.Contains(t, (*out)[0].text, "`failed`")
	assert.Contains(t, (*out)[0].text, "API key: `env`")
	assert.Contains(t, (*out)[0].text, "Last error: boom")
}

func TestHandle_Last(t *testing.T) {
	u := tokenizer.NewTokenUsage(100, 5, 50)
	cmp := &compare.Comparison{
		ID:             "r1",
		Simple:         &compare.Result{Strategy: compare.StrategySimple, Usage: u, Cost: tokenizer.DefaultPricing.Breakdown(u), LatencyMs: 900},
		TotalLatencyMs: 1000,
	}
	h, out := newHandler(usage.Snapshot{}, fakeRuns{last: cmp})
	h.Handle(command("/last"))
	require.Len(t, *out, 1)
	assert.Contains(t, (*out)[0].text, "*simple*: 105 in / 50 out tokens")
	assert.Contains(t, (*out)[0].text, "Total latency: 1000ms")

	h, out = newHandler(usage.Snapshot{}, fakeRuns{})
	h.Handle(command("/last"))
	assert.Equal(t, "_No comparison yet._", (*out)[0].text)
}

func TestHandle_IgnoresPlainText(t *testing.T) {
	h, out := newHandler(usage.Snapshot{}, fakeRuns{})
	h.Handle(&tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 7}})
	h.Handle(nil)
	assert.Empty(t, *out)

	h.Handle(command("/nope"))
	require.Len(t, *out, 1)
	assert.Contains(t, (*out)[0].text, "Unknown command")
}

func TestHandleCallback(t *testing.T) {
	h, out := newHandler(usage.Snapshot{MayProceed: true, MinuteLimit: 15, DayLimit: 1500}, fakeRuns{state: compare.StateIdle})
	h.HandleCallback(callbackUsage, 9)
	h.HandleCallback(callbackStatus, 9)
	h.HandleCallback("other", 9)
	require.Len(t, *out, 2)
	assert.Contains(t, (*out)[0].text, "Runs allowed")
	assert.Contains(t, (*out)[1].text, "`idle`")
}

func TestLimitAlertText(t *testing.T) {
	assert.Contains(t, limitAlertText("r1", 90*time.Second), "frees up in 1m30s")
	assert.Contains(t, limitAlertText("", 0), "rejected the request for quota")
}
