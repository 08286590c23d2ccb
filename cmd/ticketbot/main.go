package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/bot"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/scheduler"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	flags := pflag.NewFlagSet("ticketbot", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	responsesFile := flags.String("responses", "", "YAML file with auto replies, FAQ answers and reminders (overrides RESPONSES_FILE)")
	storeDriver := flags.String("store", "", "ticket store backend: file, redis or postgres (overrides STORE_DRIVER)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *storeDriver != "" {
		cfg.Store.Driver = strings.ToLower(*storeDriver)
	}
	if *responsesFile != "" {
		cfg.Responses.File = *responsesFile
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open ticket store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer store.Close()

	responses, err := config.LoadResponses(cfg.Responses.File, config.DefaultResponses(cfg.Discord, cfg.Tickets))
	if err != nil {
		logger.Fatal("failed to load responses", zap.Error(err))
	}

	session, err := platform.NewSession(cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	client := platform.NewDiscord(session)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger.Named("events"))

	tickets := service.NewTicketService(service.TicketDependencies{
		Store:      store.Tickets,
		Dispatcher: dispatcher,
	})
	audit := service.NewAuditService(dispatcher, client, cfg.Discord.LogChannelID, logger.Named("audit"), metrics)
	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditDone := worker.StartAuditWorker(auditCtx, audit)

	alerts := worker.NewAlerter(client, cfg.Discord.OperatorChannelID, logger.Named("alerts"))
	tasks := scheduler.NewTasks(logger.Named("scheduler"))
	teardown := worker.NewTeardown(tasks, tickets, client, alerts, cfg.Tickets.TeardownDelay, logger.Named("teardown"), metrics)
	reminders := worker.NewReminderWorker(scheduler.NewRecurring(logger.Named("cron")), client, alerts, responses.Reminders, logger.Named("reminders"), metrics)

	ticketBot := bot.New(bot.Dependencies{
		Discord:   cfg.Discord,
		Tickets:   cfg.Tickets,
		Responses: responses,
		Client:    client,
		Service:   tickets,
		Feedback:  worker.NewFeedbackCollector(tasks),
		Teardown:  teardown,
		Reminders: reminders,
		Alerts:    alerts,
		Logger:    logger.Named("bot"),
		Metrics:   metrics,
	})
	unregister := ticketBot.Register(session)

	if err := session.Open(); err != nil {
		logger.Fatal("failed to open discord gateway", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Dashboard.JWTSecret, cfg.Dashboard.TokenTTLMinutes)
	app := httptransport.NewApp(cfg.App.Name, logger.Named("http"), metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store.HealthChecks()...),
		Dashboard:      handlers.NewDashboardHandler(tickets, service.NewAuthService(cfg.Dashboard, tokens), metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		logger.Info("dashboard listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	shutdownDashboard(shutdownCtx, app, logger)
	unregister()
	if err := session.Close(); err != nil {
		logger.Warn("discord session close", zap.Error(err))
	}
	reminders.Stop(shutdownCtx)
	if pending := tasks.Len(); pending > 0 {
		logger.Info("dropping pending timers; closed tickets are recovered on next start", zap.Int("pending", pending))
	}
	tasks.Stop()
	stopAudit()
	select {
	case <-auditDone:
	case <-shutdownCtx.Done():
		logger.Warn("audit queue not drained before shutdown deadline")
	}
}

type shutdowner interface {
	ShutdownWithContext(ctx context.Context) error
}

func shutdownDashboard(ctx context.Context, app shutdowner, logger *zap.Logger) {
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Warn("dashboard shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
