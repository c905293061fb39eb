package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GalaDe/ideas-service/internal/auth"
	"github.com/GalaDe/ideas-service/internal/config"
	handler "github.com/GalaDe/ideas-service/internal/handlers"
	logger "github.com/GalaDe/ideas-service/internal/log/log"
	"github.com/GalaDe/ideas-service/internal/poller"
	"github.com/GalaDe/ideas-service/internal/services/checkout"
	"github.com/GalaDe/ideas-service/internal/services/drafts"
	stripe "github.com/GalaDe/ideas-service/internal/services/stripe"
	"github.com/GalaDe/ideas-service/internal/services/temporal/activity"
	"github.com/GalaDe/ideas-service/internal/services/temporal/workflow"
	repository "github.com/GalaDe/ideas-service/internal/storage/postgres"
	"github.com/GalaDe/ideas-service/internal/storage/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration (env, optionally seeded from .env)
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	l := logger.New(cfg.App.Name, cfg.App.LogLevel)
	defer l.Sync()
	log := l.Logger()

	if err := run(ctx, cfg, l); err != nil {
		log.Fatal("service stopped", zap.Error(err))
	}
	log.Info("service stopped")
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	log := l.Logger()

	// Setup DB connection
	db, err := repository.NewPostgresDB(ctx, &repository.PostgresSecret{
		DBConnString: cfg.Postgres.DatabaseURL,
	},
		repository.MaxPoolSize(cfg.Postgres.MaxConns),
		repository.ConnAttempts(cfg.Postgres.ConnAttempts),
		repository.ConnTimeout(cfg.Postgres.ConnTimeout),
		repository.WithLogger(log))
	if err != nil {
		return err
	}
	defer db.Close()
	transactor := repository.NewPostgresTransactor(db, log)
	repo := repository.NewPostgresRepo(transactor)

	// Draft storage
	rdb, err := redis.NewClient(ctx, redis.RedisConfig{
		Address:  cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()
	draftStore := redis.NewDraftStore(rdb, cfg.App.DraftTTL)

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    l,
	})
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	stripeSvc := stripe.NewStripe(&stripe.StripeConfig{
		AppKey:        cfg.Stripe.APIKey,
		WebhookKey:    cfg.Stripe.WebhookSecret,
		BackendURL:    cfg.Stripe.BackendURL,
		PublicBaseURL: cfg.App.PublicBaseURL,
		RateLimit:     cfg.Stripe.RateLimit,
		MaxRetries:    cfg.Stripe.MaxRetries,
	}, log)

	checkoutSvc := checkout.NewService(checkout.Config{
		OwnerPolicy:    poller.Policy{Interval: cfg.Polling.OwnerInterval, MaxAttempts: cfg.Polling.OwnerMaxAttempts},
		ObserverPolicy: poller.Policy{Interval: cfg.Polling.CallbackInterval, MaxAttempts: cfg.Polling.CallbackMaxAttempts},
	}, repo, transactor, stripeSvc, draftStore, workflow.NewStarter(temporalClient, cfg.Temporal.TaskQueue), log)

	w := workflow.NewWorker(temporalClient, cfg.Temporal.TaskQueue)
	workflow.RegisterWorkflows(w)
	activity.NewTemporalActivityPort(checkoutSvc, workflow.AwaitPaymentHeartbeat/3).RegisterActivities(w)

	httpHandler := handler.NewHttpServer(log, auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		drafts.NewService(draftStore, log), checkoutSvc, stripeSvc)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler.RegisterRoutes(httpHandler, cfg.App.CORSOrigins),
		ReadHeaderTimeout: 15 * time.Second,
		// Long enough for GET /payments/{ref}/await to reach the owner poll cap.
		WriteTimeout: time.Duration(cfg.Polling.OwnerMaxAttempts+1)*cfg.Polling.OwnerInterval + time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return w.Run(stopOn(gctx))
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// stopOn adapts ctx to the interrupt channel a Temporal worker waits on.
func stopOn(ctx context.Context) <-chan interface{} {
	ch := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
