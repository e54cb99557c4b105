package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/app"
	"github.com/tallyroom/tallyroom/internal/audits"
	"github.com/tallyroom/tallyroom/internal/auth"
	"github.com/tallyroom/tallyroom/internal/masterdata/locations"
	"github.com/tallyroom/tallyroom/internal/masterdata/machines"
	"github.com/tallyroom/tallyroom/internal/masterdata/vendors"
	"github.com/tallyroom/tallyroom/internal/observability"
	"github.com/tallyroom/tallyroom/internal/platform/cache"
	"github.com/tallyroom/tallyroom/internal/platform/db"
	"github.com/tallyroom/tallyroom/internal/shared"
	"github.com/tallyroom/tallyroom/internal/slips"
	"github.com/tallyroom/tallyroom/internal/users"
	"github.com/tallyroom/tallyroom/internal/view"
	"github.com/tallyroom/tallyroom/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("load timezone", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "tallyroom_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	activity := shared.NewActivityLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	policy := access.NewPolicy(access.SystemClock, loc)
	usersRepo := users.NewRepository(dbpool)
	resolver := access.NewResolver(users.NewLoader(usersRepo), redisClient, cfg.PrincipalTTL, logger)
	accessMW := access.Middleware{Policy: policy, Resolver: resolver, Logger: logger, Denials: metrics}

	usersService := users.NewService(users.Deps{
		Repo:                usersRepo,
		Authz:               accessMW,
		Activity:            activity,
		Mail:                jobClient,
		Cache:               resolver,
		Logger:              logger,
		ResetPasswordLength: cfg.ResetPasswordLength,
	})

	authService := auth.NewService(auth.NewRepository(dbpool))

	locationsService := locations.NewService(locations.NewRepository(dbpool), activity, logger)
	vendorsService := vendors.NewService(vendors.NewRepository(dbpool), activity, logger)
	machinesService := machines.NewService(machines.NewRepository(dbpool), vendorsService, activity, logger)
	auditsService := audits.NewService(audits.NewRepository(dbpool), machinesService, accessMW, activity, logger)
	slipsService := slips.NewService(slips.NewRepository(dbpool), accessMW, idempotencyStore, activity, logger)

	forms, err := view.NewEngine(policy)
	if err != nil {
		logger.Error("parse forms", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Access:           accessMW,
		Metrics:          metrics,
		AuthHandler:      auth.NewHandler(logger, authService, sessionManager, csrfManager, resolver),
		AccessHandler:    access.NewHandler(accessMW),
		FormsHandler:     view.NewHandler(logger, forms, csrfManager, accessMW),
		UsersHandler:     users.NewHandler(logger, usersService, accessMW),
		LocationsHandler: locations.NewHandler(logger, locationsService, accessMW),
		VendorsHandler:   vendors.NewHandler(logger, vendorsService, accessMW),
		MachinesHandler:  machines.NewHandler(logger, machinesService, accessMW),
		AuditsHandler:    audits.NewHandler(logger, auditsService, accessMW),
		SlipsHandler:     slips.NewHandler(logger, slipsService, accessMW),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
