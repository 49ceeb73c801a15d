// Command bluethai is the English/Thai conversation translator. It runs a
// terminal UI by default, or a continuous listening loop with -headless.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/Pavlo4242/bluethai/internal/app"
	"github.com/Pavlo4242/bluethai/internal/config"
	"github.com/Pavlo4242/bluethai/internal/observe"
	"github.com/Pavlo4242/bluethai/internal/tui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "bluethai.yaml", "path to the YAML configuration file")
	headless := flag.Bool("headless", false, "listen continuously without the terminal UI")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	watch := true
	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "bluethai: config file %q not found, using defaults\n", *configPath)
		cfg, watch = config.Default(), false
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "bluethai: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The TUI owns the terminal, so logs go to a file unless headless.
	var level slog.LevelVar
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	var logOut io.Writer = os.Stderr
	if !*headless {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bluethai: open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logOut = f
	}
	slog.SetDefault(newLogger(logOut, &level))

	slog.Info("bluethai starting",
		"version", version,
		"config", *configPath,
		"headless", *headless,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "bluethai", ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	if *headless {
		printStartupSummary(cfg)
	}

	application, err := app.New(ctx, cfg, reg,
		app.WithMetrics(metrics),
		app.WithMetricsHandler(tel.MetricsHandler),
		app.WithLogLevel(&level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		fmt.Fprintf(os.Stderr, "bluethai: %v\n", err)
		return 1
	}

	if watch {
		w, err := config.NewWatcher(*configPath, application.ApplyConfig)
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	runCtx, cancelRun := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return application.Run(gctx) })
	if *headless {
		slog.Info("listening, press Ctrl+C to shut down")
		g.Go(func() error { return application.ListenContinuously(gctx) })
	} else {
		g.Go(func() error {
			// Quitting the UI ends the run.
			defer cancelRun()
			model := tui.New(gctx, application.Orchestrator(), application.Text())
			_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx)).Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		})
	}

	code := 0
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}
	cancelRun()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return code
}

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	style, mode, model := cfg.Translator.Settings()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        bluethai, startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, model.Identifier())
	printProvider("Fallback", cfg.Providers.LLMFallback.Name, cfg.Providers.LLMFallback.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Store", string(cfg.Store.Driver), "")
	fmt.Printf("║  Persona         : %-19s ║\n", style)
	fmt.Printf("║  Input mode      : %-19s ║\n", mode)
	fmt.Printf("║  API key         : %-19s ║\n", cfg.Translator.APIKeyName)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	val := "(not configured)"
	if name != "" {
		val = name
		if model != "" {
			val += " / " + model
		}
	}
	fmt.Printf("║  %-16s: %-19s ║\n", kind, val)
}
