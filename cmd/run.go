package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/kakak/internal/agent"
	"github.com/nextlevelbuilder/kakak/internal/config"
	"github.com/nextlevelbuilder/kakak/internal/digest"
	"github.com/nextlevelbuilder/kakak/internal/providers"
	"github.com/nextlevelbuilder/kakak/internal/server"
	"github.com/nextlevelbuilder/kakak/internal/store"
	"github.com/nextlevelbuilder/kakak/internal/store/pg"
	"github.com/nextlevelbuilder/kakak/internal/store/sqlite"
	"github.com/nextlevelbuilder/kakak/internal/summarize"
	"github.com/nextlevelbuilder/kakak/internal/telegram"
	"github.com/nextlevelbuilder/kakak/internal/telemetry"
	"github.com/nextlevelbuilder/kakak/internal/tools"
	"github.com/nextlevelbuilder/kakak/internal/worker"
)

// runtime holds the composed application pieces shared by the commands.
type runtime struct {
	cfg          *config.Config
	stores       *store.Stores
	provider     providers.Provider
	channel      *telegram.Channel
	sender       tools.Sender
	orchestrator *agent.Orchestrator
	worker       *worker.Worker
}

func buildStores(cfg *config.Config) (*store.Stores, error) {
	sc := store.StoreConfig{
		Mode:        cfg.Database.Mode,
		SQLitePath:  config.ExpandHome(cfg.Database.SQLitePath),
		PostgresDSN: cfg.Database.PostgresDSN,
	}
	backend, target, err := sc.Select()
	if err != nil {
		return nil, err
	}
	slog.Info("storage backend selected", "backend", backend)
	if backend == "pg" {
		return pg.Open(target)
	}
	return sqlite.Open(target)
}

// logSender stands in when no Telegram token is configured so agents can
// still run (e.g. direct invokes in development).
type logSender struct{}

func (logSender) Send(ctx context.Context, chatID, text string) error {
	slog.Warn("outbound message dropped, telegram not configured", "chat", chatID, "text_len", len(text))
	return nil
}

func buildRuntime(cfg *config.Config) (*runtime, error) {
	stores, err := buildStores(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := providers.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("llm provider ready", "provider", provider.Name(), "model", provider.DefaultModel())

	var (
		channel *telegram.Channel
		sender  tools.Sender = logSender{}
	)
	if cfg.Telegram.Token != "" {
		channel, err = telegram.NewChannel(cfg.Telegram, stores.Messages)
		if err != nil {
			return nil, err
		}
		sender = telegram.NewSender(channel.Bot(), cfg.Telegram.SendRatePerSec, cfg.Telegram.SendBurst)
	} else {
		slog.Warn("KAKAK_TELEGRAM_TOKEN not set, outbound messages will be dropped")
	}

	kb := make([]tools.KBEntry, 0, len(cfg.Company.KnowledgeBase))
	for _, a := range cfg.Company.KnowledgeBase {
		kb = append(kb, tools.KBEntry{Title: a.Title, Body: a.Body})
	}

	orchestrator := agent.NewOrchestrator(agent.Deps{
		Provider: provider,
		Tickets:  stores.Tickets,
		Sender:   sender,
		Calendar: tools.NewMemoryCalendar(),
		KB:       kb,
		Company:  cfg.Company,
		Agents:   cfg.Agents,
	})

	summarizer := summarize.NewService(stores.Customers, provider, cfg.Agents.Model)
	w := worker.New(stores.Messages, stores.Customers, orchestrator, summarizer, worker.Config{
		PollInterval:     cfg.Worker.PollInterval.Std(),
		InvokeTimeout:    cfg.Worker.InvokeTimeout.Std(),
		HistoryThreshold: cfg.Worker.HistoryThreshold,
	})

	return &runtime{
		cfg:          cfg,
		stores:       stores,
		provider:     provider,
		channel:      channel,
		sender:       sender,
		orchestrator: orchestrator,
		worker:       w,
	}, nil
}

// runAll starts every component: channel, worker, gateway and digest.
func runAll() error {
	setupLogging()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}

	if err := config.Watch(ctx, resolveConfigPath(), func(next *config.Config) {
		slog.Info("config file changed, restart to apply")
	}); err != nil {
		slog.Warn("config watch disabled", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rt.worker.Run(gctx) })
	g.Go(func() error { return server.New(cfg, rt.stores, rt.orchestrator).Run(gctx) })

	if rt.channel != nil && cfg.Telegram.Mode != "webhook" {
		g.Go(func() error { return rt.channel.Run(gctx) })
	}

	if cfg.Digest.Enabled {
		sched, err := digest.NewScheduler(cfg.Digest.Cron, rt.stores.Customers, rt.stores.Tickets, rt.orchestrator)
		if err != nil {
			return fmt.Errorf("digest scheduler: %w", err)
		}
		g.Go(func() error { return sched.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the queue worker and Telegram polling channel only",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(context.Background())

			rt, err := buildRuntime(cfg)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return rt.worker.Run(gctx) })
			if rt.channel != nil && cfg.Telegram.Mode != "webhook" {
				g.Go(func() error { return rt.channel.Run(gctx) })
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func serverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP gateway only (webhook ingress and REST)",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(context.Background())

			rt, err := buildRuntime(cfg)
			if err != nil {
				return err
			}

			err = server.New(cfg, rt.stores, rt.orchestrator).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Send the daily digest once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			rt, err := buildRuntime(cfg)
			if err != nil {
				return err
			}

			sched, err := digest.NewScheduler(cfg.Digest.Cron, rt.stores.Customers, rt.stores.Tickets, rt.orchestrator)
			if err != nil {
				return err
			}
			sched.RunOnce(context.Background())
			return nil
		},
	}
}
