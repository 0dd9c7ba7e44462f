package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-chat-orders/internal/bot"
	"github.com/ariefcatur/go-chat-orders/internal/config"
	"github.com/ariefcatur/go-chat-orders/internal/gateway/kafkagw"
	"github.com/ariefcatur/go-chat-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-chat-orders/internal/kafka"
	"github.com/ariefcatur/go-chat-orders/internal/logger"
	"github.com/ariefcatur/go-chat-orders/internal/memstore"
	"github.com/ariefcatur/go-chat-orders/internal/orders"
	"github.com/ariefcatur/go-chat-orders/internal/postgres"
	"github.com/ariefcatur/go-chat-orders/internal/redisx"
	"github.com/ariefcatur/go-chat-orders/internal/stats"
	"github.com/ariefcatur/go-chat-orders/internal/subscription"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log, err := logger.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Errorw("bot stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis is optional: without it dedup stays in process and membership
	// is looked up on every gated action.
	var (
		dedup bot.Deduper
		cache subscription.Cache
	)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		dedup = redisx.NewDeduper(rdb, cfg.ServiceName)
		cache = redisx.NewMembershipCache(rdb)
	}

	outbound := kafkax.NewProducer(cfg.KafkaBrokers, cfg.OutboundTopic, 1024, log)
	outbound.Start(ctx)
	events := kafkax.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic, 1024, log)
	events.Start(ctx)
	defer func() {
		outbound.Close()
		events.Close()
		outbound.WaitClosed()
		events.WaitClosed()
	}()

	gw := &kafkagw.Gateway{
		Out:      outbound,
		Members:  kafkagw.NewMembershipClient(cfg.MembershipURL, cfg.MembershipTimeout),
		Producer: cfg.ServiceName,
	}
	gate := subscription.NewGate(gw, cfg.MandatoryChannel, cfg.MembershipTimeout, log)
	if cache != nil {
		gate.WithCache(cache)
	}

	svc := orders.NewService(store, gw, orders.NewAdminSet(cfg.AdminIDs...), log,
		orders.WithEvents(events, cfg.ServiceName),
		orders.WithSendTimeout(cfg.SendTimeout),
	)
	ctrl := bot.New(bot.Config{
		Service:     svc,
		Gateway:     gw,
		Gate:        gate,
		Stats:       stats.Aggregator{Store: store},
		Dedup:       dedup,
		Log:         log,
		BotUsername: cfg.BotUsername,
		SendTimeout: cfg.SendTimeout,
	})

	router := httpx.NewRouter(log)
	(&httpx.ReportsHandler{Store: store, Log: log}).Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	consumer := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.UpdatesTopic, cfg.Workers, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("consuming updates", "topic", cfg.UpdatesTopic, "group", cfg.ConsumerGroup, "workers", cfg.Workers)
		return consumer.Start(gctx, kafkagw.UpdateHandler(ctrl.Handle, log))
	})
	g.Go(func() error {
		log.Infow("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (orders.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Infow("store ready", "backend", cfg.StoreBackend)
		return postgres.NewStore(db), db.Close, nil
	default:
		if cfg.DataDir == "" {
			log.Warn("DATA_DIR not set; state is kept in memory only")
			return memstore.New(), func() {}, nil
		}
		s, err := memstore.Open(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		log.Infow("store ready", "backend", cfg.StoreBackend, "dir", cfg.DataDir)
		return s, func() {}, nil
	}
}
