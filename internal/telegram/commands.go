package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Manjussha/promptvs/internal/compare"
	"github.com/Manjussha/promptvs/internal/credential"
	"github.com/Manjussha/promptvs/internal/usage"
)

const (
	callbackUsage  = "usage"
	callbackStatus = "status"
)

// UsageReporter reports the local request budget.
type UsageReporter interface {
	Snapshot() usage.Snapshot
}

// RunReporter reports the state of the comparison runner.
type RunReporter interface {
	State() compare.State
	LastError() string
	Last() *compare.Comparison
}

// KeyResolver reports where the active API key comes from.
type KeyResolver interface {
	Resolve() (string, credential.Source)
}

// CommandHandler handles Telegram bot commands. It only reads state.
type CommandHandler struct {
	usage UsageReporter
	runs  RunReporter
	keys  KeyResolver
	reply func(chatID int64, text string)
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(u UsageReporter, runs RunReporter, keys KeyResolver) *CommandHandler {
	return &CommandHandler{usage: u, runs: runs, keys: keys}
}

// Handle dispatches incoming messages to the correct command handler.
func (h *CommandHandler) Handle(msg *tgbotapi.Message) {
	if msg == nil || !msg.IsCommand() || h.reply == nil {
		return
	}
	switch msg.Command() {
	case "usage":
		h.reply(msg.Chat.ID, FormatUsage(h.usage.Snapshot()))
	case "status":
		h.reply(msg.Chat.ID, h.status())
	case "last":
		h.reply(msg.Chat.ID, formatComparison(h.runs.Last()))
	case "help", "start":
		h.reply(msg.Chat.ID, helpText)
	default:
		h.reply(msg.Chat.ID, "Unknown command. Use /help for a list of commands.")
	}
}

// HandleCallback processes inline keyboard button presses.
func (h *CommandHandler) HandleCallback(data string, chatID int64) {
	if h.reply == nil {
		return
	}
	switch data {
	case callbackUsage:
		h.reply(chatID, FormatUsage(h.usage.Snapshot()))
	case callbackStatus:
		h.reply(chatID, h.status())
	}
}

func (h *CommandHandler) status() string {
	_, source := h.keys.Resolve()
	var sb strings.Builder
	sb.WriteString("*PromptVs Status*\n\n")
	sb.WriteString(fmt.Sprintf("%s Runner: `%s`\n", stateIcon(h.runs.State()), h.runs.State()))
	sb.WriteString(fmt.Sprintf("API key: `%s`\n", source))
	if msg := h.runs.LastError(); msg != "" {
		sb.WriteString("Last error: " + msg + "\n")
	}
	return sb.String()
}

// FormatUsage renders a usage snapshot for chat.
func FormatUsage(s usage.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("*Request Budget*\n\n")
	sb.WriteString(fmt.Sprintf("Last minute: %d / %d\n", s.RequestsLastMinute, s.MinuteLimit))
	sb.WriteString(fmt.Sprintf("Last 24h: %d / %d\n", s.RequestsLastDay, s.DayLimit))
	sb.WriteString(fmt.Sprintf("Tokens last 24h: %d\n", s.TokensLastDay))
	if s.MayProceed {
		sb.WriteString("✅ Runs allowed")
	} else {
		sb.WriteString(fmt.Sprintf("⛔ Blocked, retry in %s", s.RetryAfter.Round(time.Second)))
	}
	return sb.String()
}

func formatComparison(c *compare.Comparison) string {
	if c == nil {
		return "_No comparison yet._"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Last comparison* `%s`\n\n", c.ID))
	for _, r := range []*compare.Result{c.Simple, c.Context} {
		if r == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("*%s*: %d in / %d out tokens, $%s, %dms\n",
			r.Strategy, r.Usage.PromptTokens, r.Usage.OutputTokens, r.Cost.Total, r.LatencyMs))
	}
	sb.WriteString(fmt.Sprintf("Total latency: %dms", c.TotalLatencyMs))
	return sb.String()
}

const helpText = `*PromptVs Commands*

/usage - Request budget
/status - Runner state and API key source
/last - Last comparison summary
/help - This help`

func stateIcon(s compare.State) string {
	switch s {
	case compare.StateRunning:
		return "🟢"
	case compare.StateCompleted, compare.StateIdle:
		return "⚪"
	case compare.StateNeedsConfiguration:
		return "🟡"
	case compare.StateFailed:
		return "🔴"
	default:
		return "⚫"
	}
}
