package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"hestia.local/dispatch/internal/config"
	"hestia.local/dispatch/internal/conversation"
	"hestia.local/dispatch/internal/dispatch"
	"hestia.local/dispatch/internal/gateway"
	"hestia.local/dispatch/internal/httpapi"
	"hestia.local/dispatch/internal/reminder"
	"hestia.local/dispatch/internal/scoring"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/subscribers"
	"hestia.local/dispatch/internal/subscribers/bridge"
	"hestia.local/dispatch/internal/subscribers/discord"
	"hestia.local/dispatch/internal/subscribers/feed"
	logging "hestia.local/dispatch/internal/subscribers/logging"
	"hestia.local/dispatch/internal/ticket"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the inbound message API, router and reminder loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	logger := log.New(os.Stdout, "hestia ", log.Ldate|log.Ltime|log.Lmicroseconds|log.LUTC)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	window, err := cfg.Window()
	if err != nil {
		return err
	}

	st, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Printf("database close error: %v", err)
		}
	}()

	sessions, err := session.NewCachedStore(st.sessions, cfg.SessionCacheSize)
	if err != nil {
		return fmt.Errorf("init session cache: %w", err)
	}

	locker, closeLocker, err := newLocker(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	hub := feed.NewHub(logger)
	defer hub.Close()
	subs, err := buildSubscribers(cfg, logger, hub)
	if err != nil {
		return err
	}
	dispatcher := dispatch.New(logger, subs)

	manager := ticket.NewManager(st.tickets)
	deps := conversation.Deps{
		Tickets:     manager,
		Directory:   st.directory,
		Engine:      scoring.NewEngine(st.tickets, st.directory),
		Supervisors: cfg.Supervisors,
		Logger:      logger,
		Location:    window.Location,
		StaleAfter:  cfg.StaleAfter,
	}
	workerFlow, err := conversation.NewWorker(deps)
	if err != nil {
		return fmt.Errorf("init worker orchestrator: %w", err)
	}
	supervisorFlow, err := conversation.NewSupervisor(deps)
	if err != nil {
		return fmt.Errorf("init supervisor orchestrator: %w", err)
	}

	router, err := gateway.New(gateway.Deps{
		Logger:      logger,
		Scheduler:   session.NewScheduler(logger, cfg.SessionQueueSize),
		Locker:      locker,
		Sessions:    sessions,
		Directory:   st.directory,
		Worker:      workerFlow,
		Supervisor:  supervisorFlow,
		Supervisors: cfg.Supervisors,
		Outbound:    dispatcher,
		Notices:     st.notices,
		Hours:       window,
	})
	if err != nil {
		return fmt.Errorf("init router: %w", err)
	}

	sweeper := reminder.New(manager, st.directory, sessions, dispatcher, logger,
		reminder.WithInterval(cfg.ReminderInterval),
		reminder.WithReminderAfter(cfg.ReminderAfter),
		reminder.WithNotices(st.notices, window),
		reminder.WithLocker(locker),
	)
	if err := sweeper.Start(context.Background()); err != nil {
		return fmt.Errorf("start reminder loop: %w", err)
	}
	defer sweeper.Stop()

	srv := httpapi.NewServer(logger, cfg.HTTPAddr, router, manager, hub)
	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s hours=%s supervisors=%d", cfg.HTTPAddr, window, len(cfg.Supervisors))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Printf("shutting down signal=%s", sig)
	case err := <-serverErr:
		return fmt.Errorf("http server crashed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("http server shutdown error: %v", err)
	}
	if err := router.Close(ctx); err != nil {
		logger.Printf("router close error: %v", err)
	}
	if err := dispatcher.Wait(ctx); err != nil {
		logger.Printf("dispatcher drain error: %v", err)
	}
	return nil
}

func newLocker(ctx context.Context, cfg config.Config, logger *log.Logger) (session.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return session.NewLocalLocker(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid %s: %w", config.EnvRedisURL, err)
	}
	client := redis.NewClient(opts)
	if ctx == nil {
		ctx = context.Background()
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Printf("session locks backed by redis addr=%s", opts.Addr)
	return session.NewRedisLocker(client, logger, session.WithLockPrefix(cfg.RedisLockPrefix)), func() {
		if err := client.Close(); err != nil {
			logger.Printf("redis close error: %v", err)
		}
	}, nil
}

func buildSubscribers(cfg config.Config, logger *log.Logger, hub *feed.Hub) ([]subscribers.Subscriber, error) {
	subs := []subscribers.Subscriber{logging.New(logger), hub}
	if cfg.OutboundWebhookURL != "" {
		subs = append(subs, bridge.New(cfg.OutboundWebhookURL, logger))
	}
	if cfg.DiscordBotToken != "" {
		sender, err := discord.NewDiscordSender(cfg.DiscordBotToken)
		if err != nil {
			return nil, fmt.Errorf("init discord mirror: %w", err)
		}
		subs = append(subs, discord.New(sender, cfg.DiscordChannelID))
	}
	return subs, nil
}
