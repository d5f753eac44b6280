package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/openweather-collector/internal/api/http"
	"github.com/i474232898/openweather-collector/internal/common/logger"
	"github.com/i474232898/openweather-collector/internal/config"
	"github.com/i474232898/openweather-collector/internal/mapping"
	"github.com/i474232898/openweather-collector/internal/scheduler"
	"github.com/i474232898/openweather-collector/internal/store"
	"github.com/i474232898/openweather-collector/internal/weather"
	"github.com/i474232898/openweather-collector/internal/weather/providers"
)

const maxRetryInterval = time.Minute

func main() {
	testOnly := flag.Bool("test", false, "test the provider connection and exit")
	once := flag.Bool("once", false, "run one activity, print the variables and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	provider, err := providers.Lookup(cfg.Provider)
	if err != nil {
		lg.Fatal("unknown provider", zap.Error(err), zap.Strings("available", providers.Names()))
	}

	setting := cfg.Setting(provider.DefaultSetting())
	activity, err := cfg.Activity(provider.DefaultActivity())
	if err != nil {
		lg.Fatal("invalid activity", zap.Error(err))
	}

	var props []mapping.CommandProperty
	if cfg.PropertiesFile != "" {
		props, err = config.LoadProperties(cfg.PropertiesFile)
	} else {
		props, err = provider.SupportedProperties()
	}
	if err != nil {
		lg.Fatal("failed to load properties", zap.String("file", cfg.PropertiesFile), zap.Error(err))
	}

	snapshots, closeStore, err := openStore(cfg, lg)
	if err != nil {
		lg.Fatal("failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	// The per-request deadline comes from the setting's read timeout.
	conn := providers.NewHTTPConnection(provider.Name(), &http.Client{}, lg)
	service := weather.NewService(conn, snapshots, provider, setting, props, lg)
	service.UseTestConnection(providers.NewHTTPConnection(provider.Name()+"-test", &http.Client{}, lg))

	sched := scheduler.New(service, scheduler.Options{
		Provider: provider.Name(),
		Activity: activity,
		Backoff: scheduler.BackoffConfig{
			MaxRetries:      cfg.FetchMaxRetries,
			InitialInterval: cfg.FetchRetryInterval,
			MaxInterval:     maxRetryInterval,
		},
		RunTimeout: cfg.RunTimeout,
		Location:   cfg.ActivityTimezone,
	}, lg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *testOnly || *once {
		code := 0
		if *testOnly {
			code = runTest(ctx, service, setting)
		} else {
			code = runOnce(ctx, sched, lg)
		}
		stop()
		closeStore()
		_ = lg.Sync()
		os.Exit(code)
	}

	if err := sched.Start(); err != nil {
		lg.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	lg.Info("collector started",
		zap.String("provider", provider.Name()),
		zap.Stringer("activity", activity),
		zap.Int("properties", len(props)),
		zap.Int("fields", len(mapping.Fields(props))),
	)

	app := fiber.New(fiber.Config{
		AppName:               "openweather-collector",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "openweather-collector",
			"provider": provider.Name(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			lg.Error("fiber server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Error("error during shutdown", zap.Error(err))
	}
}

func openStore(cfg *config.AppConfig, lg *zap.Logger) (weather.Store, func(), error) {
	if cfg.StoreBackend != "redis" {
		return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge), func() {}, nil
	}

	rs := store.NewRedisStore(store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.StoreMaxHistory, cfg.StoreMaxAge)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rs.Ping(ctx); err != nil {
		_ = rs.Close()
		return nil, nil, err
	}
	lg.Info("using redis store", zap.String("addr", cfg.RedisAddr))
	return rs, func() {
		if err := rs.Close(); err != nil {
			lg.Warn("failed to close redis store", zap.Error(err))
		}
	}, nil
}

func runTest(ctx context.Context, service *weather.Service, setting weather.Setting) int {
	result := service.TestConnection(ctx, setting)
	fmt.Println(result.Detail)
	if !result.OK {
		return 1
	}
	return 0
}

func runOnce(ctx context.Context, sched *scheduler.Scheduler, lg *zap.Logger) int {
	snapshot, err := sched.Run(ctx)
	if err != nil {
		lg.Error("activity failed", zap.Error(err))
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		lg.Error("failed to print variables", zap.Error(err))
		return 1
	}
	return 0
}
