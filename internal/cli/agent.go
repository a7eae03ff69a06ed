package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/parley-agents/parley/internal/calendar"
	"github.com/parley-agents/parley/internal/channel"
	"github.com/parley-agents/parley/internal/config"
	"github.com/parley-agents/parley/internal/directory"
	"github.com/parley-agents/parley/internal/llm"
	"github.com/parley-agents/parley/internal/negotiation"
	"github.com/parley-agents/parley/internal/persona"
	"github.com/parley-agents/parley/internal/relay"
	"github.com/parley-agents/parley/internal/server"
	"github.com/parley-agents/parley/internal/tools"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run this person's agent",
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := calendar.Open(cfg.CalendarPath)
	if err != nil {
		return fmt.Errorf("failed to open calendar: %w", err)
	}
	defer store.Close()

	systemPrompt, err := persona.Load(cfg.SoulPath, cfg.ContextPath)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterCalendarTools(registry, store); err != nil {
		return err
	}

	dir := directory.New(cfg.Peers)
	if dir.Len() > 0 {
		ch := channel.New(dir, cfg.AgentName, cfg.CallTimeout, logger)
		if err := tools.RegisterOrchestrationTools(registry, ch, dir.List()); err != nil {
			return err
		}
		logger.Info("peer agents configured", "peers", strings.Join(dir.List(), ", "))
	}

	driver := negotiation.NewDriver(negotiation.Options{
		AgentName:    cfg.AgentName,
		Engine:       llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel),
		Registry:     registry,
		SystemPrompt: systemPrompt,
		MaxTurns:     cfg.MaxTurns,
		Model:        cfg.OpenAIModel,
		Logger:       logger,
	})

	taskStore, err := newTaskStore(cfg, logger)
	if err != nil {
		return err
	}
	defer taskStore.Close()

	var mirror *relay.EventMirror
	if cfg.NATSURL != "" {
		mirror, err = relay.NewEventMirror(cfg.NATSURL, cfg.AgentName, logger)
		if err != nil {
			return err
		}
		defer mirror.Close()
	}

	srv := server.New(server.Options{
		AgentName:   cfg.AgentName,
		DisplayName: cfg.DisplayName,
		Description: cfg.Description,
		BaseURL:     cfg.BaseURL(),
		Version:     version,
		Driver:      driver,
		Relay:       relay.New(cfg.AgentName, taskStore, mirror, logger),
		Directory:   dir,
		Logger:      logger,
	})

	color.Green("Starting agent %s on %s", cfg.AgentName, cfg.BaseURL())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
}

func newTaskStore(cfg *config.Config, logger *slog.Logger) (relay.TaskStore, error) {
	if cfg.TaskStoreURL == "" {
		return relay.NewMemoryStore(), nil
	}
	store, err := relay.NewRedisStore(cfg.TaskStoreURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open task store: %w", err)
	}
	return store, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
