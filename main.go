// PromptVs compares a simple prompt with a context-engineered prompt on the
// same input and reports tokens, latency and cost for each.
// Entry point: wires all packages and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Manjussha/promptvs/internal/api"
	"github.com/Manjussha/promptvs/internal/compare"
	"github.com/Manjussha/promptvs/internal/config"
	"github.com/Manjussha/promptvs/internal/credential"
	"github.com/Manjussha/promptvs/internal/db"
	"github.com/Manjussha/promptvs/internal/estimate"
	"github.com/Manjussha/promptvs/internal/gemini"
	"github.com/Manjussha/promptvs/internal/notify"
	"github.com/Manjussha/promptvs/internal/platform"
	"github.com/Manjussha/promptvs/internal/scheduler"
	"github.com/Manjussha/promptvs/internal/telegram"
	"github.com/Manjussha/promptvs/internal/tokenizer"
	"github.com/Manjussha/promptvs/internal/usage"
	"github.com/Manjussha/promptvs/internal/webhook"
	"github.com/Manjussha/promptvs/internal/wizard"
	"github.com/Manjussha/promptvs/internal/ws"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	// ── 0. Subcommands ───────────────────────────────────────────────────────
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "version", "--version", "-v":
		fmt.Println("promptvs", Version)
		return
	case "", "serve", "setkey":
	default:
		fmt.Fprintf(os.Stderr, "usage: promptvs [serve|setkey|version]\n")
		os.Exit(2)
	}

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg := config.Load()
	cfg.SetupLogging()

	if err := platform.EnsureDir(cfg.WorkDir); err != nil {
		log.Fatalf("EnsureDir %s: %v", cfg.WorkDir, err)
	}

	// ── 2. Open database + migrate ───────────────────────────────────────────
	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db.New: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("db.Migrate: %v", err)
	}

	keys := credential.NewProvider(database, cfg.APIKey)

	if cmd == "setkey" {
		if err := wizard.SetKey(Version, keys); err != nil {
			log.Fatalf("setkey: %v", err)
		}
		return
	}

	log.Infof("PromptVs %s starting (port=%s db=%s)", Version, cfg.Port, cfg.DBPath)
	if _, source := keys.Resolve(); source == credential.SourceNone {
		log.Warnf("No Gemini API key configured. Run 'promptvs setkey' or PUT /api/v1/settings/api-key.")
	} else {
		log.Infof("Gemini API key source: %s", source)
	}

	// Root context, cancelled on shutdown signal.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── 3. Budget, client, pricing ───────────────────────────────────────────
	governor := usage.NewGovernor(usage.NewSettingsStore(database))
	client := gemini.NewClient(cfg.GeminiBaseURL, cfg.GeminiModel)
	pricing := tokenizer.PricingTable{InputPer1M: cfg.PriceInputPer1M, OutputPer1M: cfg.PriceOutputPer1M}

	// ── 4. WebSocket hub ─────────────────────────────────────────────────────
	hub := ws.NewHub()
	go hub.Run(ctx)

	// ── 5. Comparison runner ─────────────────────────────────────────────────
	// notifier is assigned once Telegram is up; Dispatcher methods are nil-safe.
	var notifier *notify.Dispatcher
	runner := compare.New(client, governor, keys,
		compare.WithModel(client.Model()),
		compare.WithPricing(pricing),
		compare.WithObserver(func(ev compare.Event) {
			hub.Broadcast(ws.Message{Type: ws.TypeRunState, RunID: ev.RunID, Message: ev.Error, Data: ev})
			switch {
			case ev.RateLimited:
				snap := governor.Snapshot()
				hub.Broadcast(ws.Message{Type: ws.TypeRateLimit, RunID: ev.RunID, Message: ev.Error, Data: snap})
				notifier.RateLimited(ev.RunID, snap.RetryAfter, ev)
			case ev.State == compare.StateCompleted:
				notifier.Send(notify.EventRunCompleted, ev.Comparison)
				hub.Broadcast(ws.Message{Type: ws.TypeUsage, Data: governor.Snapshot()})
			case ev.State == compare.StateFailed:
				notifier.Send(notify.EventRunFailed, ev)
			}
		}),
	)

	// ── 6. Live estimator ────────────────────────────────────────────────────
	estimator := estimate.New(client, keys,
		estimate.WithDelay(cfg.EstimateDebounce),
		estimate.WithPricing(pricing),
		estimate.WithObserver(func(e estimate.Estimate) {
			hub.Broadcast(ws.Message{Type: ws.TypeEstimate, Data: e})
		}),
	)
	defer estimator.Stop()
	estimator.Edit(compare.DefaultInput())

	// ── 7. Telegram bot ──────────────────────────────────────────────────────
	cmdHandler := telegram.NewCommandHandler(governor, runner, keys)
	bot, err := telegram.New(cfg.TelegramToken, cfg.TelegramChatID, cmdHandler)
	if err != nil {
		log.Warnf("Telegram init error (continuing without Telegram): %v", err)
	}
	if bot != nil {
		go bot.Start(ctx)
		log.Infof("Telegram bot started (chatID=%d)", cfg.TelegramChatID)
	}

	// ── 8. Notify + Webhook dispatchers ─────────────────────────────────────
	notifier = notify.New(telegramSender(bot), webhookFirer(webhook.New(cfg.WebhookURLs)))

	// ── 9. Usage digest ──────────────────────────────────────────────────────
	digest := scheduler.New(governor, notifier, notify.EventUsageDigest)
	if err := digest.Start(ctx, cfg.UsageDigestCron); err != nil {
		log.Warnf("scheduler.Start: %v", err)
	}

	// ── 10. HTTP router ──────────────────────────────────────────────────────
	mux := http.NewServeMux()
	api.SetupRoutes(mux, &api.Deps{
		Runner:    runner,
		Estimator: estimator,
		Budget:    governor,
		Keys:      keys,
		Hub:       hub,
		Model:     client.Model(),
		Pricing:   pricing,
	})
	wizard.PrintDashboardURLs(cfg.Port)

	handler := loggingMiddleware(recoveryMiddleware(mux))

	// ── 11. Start HTTP server ────────────────────────────────────────────────
	// No WriteTimeout: POST /api/v1/run waits on the remote model without a deadline.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Infof("Received %s, shutting down", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("HTTP shutdown: %v", err)
		}
	}()

	log.Infof("PromptVs listening on http://0.0.0.0:%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("ListenAndServe: %v", err)
	}
	log.Infof("PromptVs stopped.")
}

// loggingMiddleware logs each request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("http request")
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				log.Errorf("panic: %v", rv)
				http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// telegramSender wraps *telegram.Bot to implement notify.Sender.
// Returns nil if bot is nil (Telegram disabled).
func telegramSender(bot *telegram.Bot) notify.Sender {
	if bot == nil {
		return nil
	}
	return bot
}

// webhookFirer returns nil if no webhook URL is configured.
func webhookFirer(d *webhook.Dispatcher) notify.WebhookFirer {
	if d == nil {
		return nil
	}
	return d
}
