// Command parley listens to a microphone, cuts speech into utterances,
// transcribes them and prints a chat model's reply to each one.
package main

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/parley/internal/app"
	"github.com/MrWong99/parley/internal/chat"
	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/health"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/session"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "parley.yaml", "path to the YAML configuration file")
	once := flag.Bool("once", false, "exit after the first answered utterance")
	stopOnEnter := flag.Bool("stop-on-enter", false, "pressing Enter while listening ends the program")
	watch := flag.Bool("watch", true, "reload log level and quit phrase when the config file changes or on SIGHUP")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "parley: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("parley starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	opts := []app.Option{app.WithMetrics(metrics), app.WithOnce(*once)}
	if cfg.Chat.Name != "" {
		client, err := newChatClient(cfg.Chat, metrics)
		if err != nil {
			slog.Error("failed to create chat client", "err", err)
			return 1
		}
		opts = append(opts, app.WithResponder(client))
	}

	application, err := app.New(cfg, providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if *watch {
		w, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if d.LogLevelChanged {
				level.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			if d.QuitPhraseChanged {
				application.SetQuitPhrase(d.NewQuitPhrase)
				slog.Info("quit phrase changed", "phrase", d.NewQuitPhrase)
			}
			if len(d.Restart) > 0 {
				slog.Warn("config changes need a restart", "sections", d.Restart)
			}
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
			go reloadOnHangup(ctx, w)
		}
	}

	if *stopOnEnter {
		go stopOnNewline(os.Stdin, application.Controller())
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	if addr := cfg.Server.ListenAddr; addr != "" {
		srv := newAdminServer(addr, tel, metrics, application)
		g.Go(func() error {
			slog.Info("admin server listening", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		defer cancelRun()
		slog.Info("listening, speak now")
		return application.Run(gctx)
	})

	runErr := g.Wait()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown error", "err", err)
	}

	if runErr != nil {
		slog.Error("run error", "err", runErr)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func newChatClient(cfg config.ChatConfig, metrics *observe.Metrics) (*chat.Client, error) {
	opts := []chat.Option{chat.WithProvider(cfg.Name), chat.WithMetrics(metrics)}
	if cfg.BaseURL != "" {
		opts = append(opts, chat.WithBaseURL(cfg.BaseURL))
	}
	if cfg.SystemPromptFile != "" {
		prompt, err := chat.LoadSystemPrompt(cfg.SystemPromptFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chat.WithSystemPrompt(prompt))
	}
	if cfg.HistoryTurns > 0 {
		opts = append(opts, chat.WithHistoryTurns(cfg.HistoryTurns))
	}
	if cfg.HistoryTokens > 0 {
		opts = append(opts, chat.WithHistoryTokenBudget(cfg.HistoryTokens))
	}
	if cfg.HistoryFile != "" {
		opts = append(opts, chat.WithHistoryFile(cfg.HistoryFile))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, chat.WithTimeout(cfg.Timeout))
	}
	key := cmp.Or(cfg.APIKey, os.Getenv(chatKeyEnv(cfg.Name)))
	return chat.New(key, cfg.Model, opts...)
}

// chatKeyEnv names the environment variable holding the vendor's API key,
// e.g. DEEPSEEK_API_KEY.
func chatKeyEnv(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// newAdminServer serves /metrics, /healthz and /readyz.
func newAdminServer(addr string, tel *observe.Telemetry, metrics *observe.Metrics, a *app.App) *http.Server {
	checks := health.New(version,
		health.SourceCheck(a.Controller()),
		health.BackendsCheck(a.Transcription()),
	)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", tel.MetricsHandler())
	checks.Register(mux)

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// reloadOnHangup re-reads the config file each time the process receives
// SIGHUP, without waiting for the next poll.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			changed, err := w.Reload()
			switch {
			case err != nil:
				slog.Warn("config reload failed, keeping previous config", "err", err)
			case !changed:
				slog.Info("config reload: no changes")
			}
		}
	}
}

// stopOnNewline stops the running session each time a line is read from r.
func stopOnNewline(r io.Reader, ctrl *session.Controller) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		ctrl.Stop()
	}
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
