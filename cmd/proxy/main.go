package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/weatherdash/proxy/internal/admission"
	"github.com/weatherdash/proxy/internal/client"
	"github.com/weatherdash/proxy/internal/clock"
	"github.com/weatherdash/proxy/internal/config"
	httphandler "github.com/weatherdash/proxy/internal/http"
	"github.com/weatherdash/proxy/internal/observability"
	"github.com/weatherdash/proxy/internal/store"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	for _, name := range cfg.MissingCredentials() {
		logger.Warn("missing upstream credential; dependent routes will fail closed", zap.String("credential", name))
	}

	owClient := client.NewOpenWeatherClient(cfg.OpenWeatherAPIKey, cfg.GeoURL, cfg.ForecastURL, cfg.UpstreamTimeout)
	geminiClient := client.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiURL, cfg.UpstreamTimeout, client.BreakerConfig{
		ConsecutiveFailures: uint32(cfg.BreakerConsecutiveFailures),
		OpenTimeout:         cfg.BreakerOpenTimeout,
	}, logger)

	// A health probe on the record store when one is configured server-side.
	// The store itself is consumed by the dashboard client; the proxy only
	// reports on it.
	var storePing func() error
	var storeCloser interface{ Close() error }
	switch cfg.StoreBackend {
	case "bolt":
		bs, err := store.OpenBolt(cfg.StorePath)
		if err != nil {
			logger.Fatal("record store", zap.Error(err))
		}
		storePing = bs.Ping
		storeCloser = bs
		logger.Info("record store: bolt", zap.String("path", cfg.StorePath))
	case "memcached":
		ms, err := store.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("record store", zap.Error(err))
		}
		storePing = ms.Ping
		storeCloser = ms
		logger.Info("record store: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		logger.Info("record store: in_memory")
	}

	clk := clock.System{}
	limiter := admission.NewWindowRateLimiter(clk, cfg.RateWindowLimit, cfg.RateWindow)
	quota := admission.NewQuotaTracker(clk, cfg.DailyQuotaLimit)

	handler := httphandler.NewHandler(owClient, geminiClient, limiter, quota, httphandler.Limits{
		CityQueryMinLen:  cfg.CityQueryMinLen,
		CityQueryMaxLen:  cfg.CityQueryMaxLen,
		SuggestionsLimit: cfg.SuggestionsLimit,
		SuggestionsMax:   cfg.SuggestionsMax,
	}, logger, storePing)

	var globalLimiter *rate.Limiter
	if cfg.GlobalRPS > 0 {
		globalLimiter = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.PathPrefix("/api").Subrouter()
	api.Use(httphandler.GlobalRateLimitMiddleware(globalLimiter))
	api.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/citySuggestions", handler.GetCitySuggestions).Methods("GET")
	api.HandleFunc("/forecast", handler.GetForecast).Methods("GET")
	api.HandleFunc("/geminiWeather", handler.PostGeminiWeather).Methods("POST")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	if inFlight > 0 {
		logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer waitCancel()
		if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
			logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
		}
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if storeCloser != nil {
		if err := storeCloser.Close(); err != nil {
			logger.Error("record store close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
