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

	"github.com/SherClockHolmes/webpush-go"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"production-output-backend/config"
	"production-output-backend/internal/api"
	"production-output-backend/internal/catalog"
	"production-output-backend/internal/dashboard"
	"production-output-backend/internal/db"
	"production-output-backend/internal/influx"
	"production-output-backend/internal/ingest"
	"production-output-backend/internal/ledger"
	"production-output-backend/internal/logger"
	"production-output-backend/internal/mw"
	"production-output-backend/internal/notification"
	"production-output-backend/internal/reading"
	"production-output-backend/internal/reference"
	"production-output-backend/internal/store"
)

const (
	limiterSweepInterval = time.Minute
	limiterIdle          = 10 * time.Minute
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "outputd")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zlog.Info("configuration loaded", zap.String("path", configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	appStore := store.NewGormStore(gormDB)
	zlog.Info("database initialized", zap.String("driver", cfg.Database.Driver))

	table := reference.NewTable(appStore, zlog)
	if err := table.Load(ctx); err != nil {
		zlog.Fatal("failed to load reference table", zap.Error(err))
	}
	if cfg.Ledger.SeedReference {
		n, err := table.Seed(ctx, catalog.DefaultReference())
		if err != nil {
			zlog.Fatal("failed to seed reference table", zap.Error(err))
		}
		if n > 0 {
			zlog.Info("reference table seeded", zap.Int("entries", n))
		}
	}

	loc := cfg.Ledger.Location()
	runLedger := ledger.New(appStore, loc, zlog)
	if err := runLedger.Load(ctx); err != nil {
		zlog.Fatal("failed to load run ledger", zap.Error(err))
	}

	recorder := reading.NewRecorder(appStore, table, loc, cfg.Ledger.TolerancePercent, zlog)

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, zlog)
		pool.Start(ctx)
		recorder.SetDispatcher(pool)
	} else {
		zlog.Warn("VAPID keys not configured; out-of-tolerance alerts are disabled")
	}

	if cfg.Influx.Enabled {
		writer := influx.NewWriter(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket)
		defer writer.Close()
		if err := writer.Health(ctx); err != nil {
			zlog.Warn("influxdb health check failed; readings will still be forwarded", zap.Error(err))
		}
		recorder.SetSink(writer)
	}

	var responses mw.ResponseStore
	switch cfg.Cache.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zlog.Fatal("failed to reach redis", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		}
		responses = mw.NewRedisStore(rdb, "outputd:cache:")
	default:
		responses = mw.NewMemoryStore(cfg.Server.CacheTTL, 2*cfg.Server.CacheTTL)
	}

	if cfg.MQTT.Enabled {
		sub := ingest.NewSubscriber(runLedger, recorder, zlog)
		sub.SetCache(responses)
		client, err := connectMQTT(cfg.MQTT, sub, zlog)
		if err != nil {
			zlog.Fatal("failed to connect to MQTT broker", zap.Error(err))
		}
		defer client.Disconnect(250)
	}

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	go limiter.RunSweeper(ctx, limiterSweepInterval, limiterIdle)

	handler := api.NewHandler(api.Deps{
		Store:     appStore,
		Ledger:    runLedger,
		Reference: table,
		Recorder:  recorder,
		Dashboard: dashboard.NewService(appStore, runLedger, cfg.Ledger.TolerancePercent),
		Webpush:   webpushOptions,
		Logger:    zlog,
	})
	router := api.NewRouter(handler, limiter, responses, cfg.Server.CacheTTL, zlog)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zlog.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	zlog.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("HTTP server Shutdown", zap.Error(err))
	}

	zlog.Info("server gracefully stopped")
}

// connectMQTT connects to the broker and subscribes on every (re)connect.
func connectMQTT(cfg config.MQTTConfig, sub *ingest.Subscriber, zlog *zap.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := sub.Subscribe(c); err != nil {
			zlog.Error("failed to subscribe to terminal topics", zap.Error(err))
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		zlog.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	zlog.Info("connected to MQTT broker", zap.String("broker", cfg.Broker))
	return client, nil
}
