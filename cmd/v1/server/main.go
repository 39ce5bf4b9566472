package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/nyxikitty/mpp-server-go/internal/v1/config"
	"github.com/nyxikitty/mpp-server-go/internal/v1/health"
	"github.com/nyxikitty/mpp-server-go/internal/v1/identity"
	"github.com/nyxikitty/mpp-server-go/internal/v1/logging"
	"github.com/nyxikitty/mpp-server-go/internal/v1/middleware"
	"github.com/nyxikitty/mpp-server-go/internal/v1/ratelimit"
	"github.com/nyxikitty/mpp-server-go/internal/v1/session"
	"github.com/nyxikitty/mpp-server-go/internal/v1/tracing"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return
	}

	if err := logging.Initialize(!cfg.Production); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		return
	}

	// Optional OTLP tracing; stays off unless a collector is configured.
	if cfg.OtelEndpoint != "" {
		tp, err := tracing.Init(context.Background(), cfg)
		if err != nil {
			slog.Error("Failed to initialize tracer", "error", err)
			return
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
		slog.Info("✅ Tracing initialized", "collector", cfg.OtelEndpoint)
	}

	ids := identity.NewService(cfg.Production, cfg.Salt1, cfg.Salt2)
	if cfg.Production {
		slog.Info("🔒 Production mode: client ids derived from IP and salts")
	} else {
		slog.Warn("⚠️ Development mode: client ids are random per connection")
	}

	limiter, err := ratelimit.New(cfg)
	if err != nil {
		slog.Error("Failed to create rate limiter", "error", err)
		return
	}

	hub := session.NewHub(ids, limiter, cfg.Origins())

	// The quota ticker runs for the process lifetime.
	tickerCtx, stopTicker := context.WithCancel(context.Background())
	defer stopTicker()
	go hub.RunQuotaTicker(tickerCtx)

	// --- Set up Server ---
	router := gin.Default()

	// Cors
	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Origins()
	}
	router.Use(cors.New(corsConfig))

	// Error handling
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(otelgin.Middleware(tracing.ServiceName))

	// Routing
	router.GET("/ws", hub.ServeWs)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoint
	healthHandler := health.NewHandler(hub)
	router.GET("/health", healthHandler.Healthz)

	// Start the server.
	srv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	stopTicker()

	// The context gives in-flight requests 5 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	slog.Info("Server exiting")
}
