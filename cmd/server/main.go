// SMS Validation Bridge - Main Entry Point
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/brivas/sms-validation-bridge/packages/adminauth"
	"github.com/brivas/sms-validation-bridge/packages/checks"
	"github.com/brivas/sms-validation-bridge/packages/counters"
	"github.com/brivas/sms-validation-bridge/packages/membership"
	"github.com/brivas/sms-validation-bridge/packages/onboarding"
	"github.com/brivas/sms-validation-bridge/packages/outbound"
	"github.com/brivas/sms-validation-bridge/packages/pipeline"
	"github.com/brivas/sms-validation-bridge/packages/settings"
	"github.com/brivas/sms-validation-bridge/packages/store"
	"github.com/brivas/sms-validation-bridge/services/admin"
	"github.com/brivas/sms-validation-bridge/services/ingress"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("starting sms validation bridge",
		zap.String("version", "1.0.0"),
		zap.Time("startup", time.Now()),
	)

	dbConfig := &store.Config{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		Database:        getEnv("DB_DATABASE", "sms_bridge"),
		User:            getEnv("DB_USER", "sms_bridge"),
		Password:        getEnv("DB_PASSWORD", ""),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 1),
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}

	client, err := store.Connect(dbConfig)
	if err != nil {
		logger.Fatal("failed to connect to store", zap.Error(err))
	}
	defer client.Close()

	logger.Info("connected to store",
		zap.String("host", dbConfig.Host),
		zap.Int("port", dbConfig.Port),
		zap.String("database", dbConfig.Database),
	)

	redisConfig := &membership.Config{
		Host:         getEnv("REDIS_HOST", "localhost"),
		Port:         getEnvInt("REDIS_PORT", 6379),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           getEnvInt("REDIS_DB", 0),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	membershipCache, err := membership.Connect(redisConfig)
	if err != nil {
		logger.Fatal("failed to connect to membership cache", zap.Error(err))
	}
	defer membershipCache.Close()

	settingsStore := settings.New(client)
	countersStore := counters.New(client)
	onboardingRegistry := onboarding.New(client)

	checksRegistry := checks.NewRegistry(checks.Deps{
		Settings:   settingsStore,
		Counters:   countersStore,
		Membership: membershipCache,
		Onboarding: onboardingRegistry,
	})

	outboundEmitter := outbound.New(client, membershipCache, outbound.Config{
		CloudForwardURL:    getEnv("CLOUD_FORWARD_URL", ""),
		CloudForwardAPIKey: getEnv("CLOUD_FORWARD_API_KEY", ""),
		ForwardTimeout:     5 * time.Second,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", ""),
	}, logger)
	defer outboundEmitter.Close()

	warmStartCtx, warmStartCancel := context.WithTimeout(context.Background(), 30*time.Second)
	acceptedNumbers, err := outboundEmitter.AcceptedNumbers(warmStartCtx)
	if err != nil {
		warmStartCancel()
		logger.Fatal("failed to load accepted numbers for membership cache warm start", zap.Error(err))
	}
	if err := membershipCache.WarmStart(warmStartCtx, acceptedNumbers); err != nil {
		warmStartCancel()
		logger.Fatal("failed to warm start membership cache", zap.Error(err))
	}
	warmStartCancel()
	logger.Info("membership cache warm started", zap.Int("accepted_numbers", len(acceptedNumbers)))

	monitorReader := pipeline.NewMonitorReader(client)
	queue := pipeline.NewQueue(client)
	cursor := pipeline.NewCursor(settingsStore)

	engine := pipeline.New(pipeline.Deps{
		Queue:    queue,
		Monitor:  queue,
		Cursor:   cursor,
		Outbound: outboundEmitter,
		Settings: settingsStore,
		Checks:   checksRegistry,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pollInterval := time.Duration(getEnvInt("PIPELINE_POLL_INTERVAL_MS", 1000)) * time.Millisecond
	go engine.Run(ctx, pollInterval)

	ingressService := ingress.New(client, onboardingRegistry, settingsStore, logger)

	adminSecret := getEnv("ADMIN_JWT_SECRET", "")
	if adminSecret == "" {
		logger.Fatal("ADMIN_JWT_SECRET must be set")
	}
	authEngine := adminauth.New(adminSecret)
	adminService := admin.New(settingsStore, monitorReader, cursor, authEngine, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Mount("/", ingressService.Routes())
	router.Handle("/admin/*", adminService.Routes())

	var handler http.Handler = router
	if getEnvBool("ENABLE_CORS", true) {
		c := cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		})
		handler = c.Handler(router)
	}

	addr := fmt.Sprintf("%s:%d", getEnv("API_HOST", "0.0.0.0"), getEnvInt("API_PORT", 8080))
	srv := &http.Server{Addr: addr, Handler: handler}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
