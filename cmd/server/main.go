package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/makeasinger/moviegen/internal/client"
	"github.com/makeasinger/moviegen/internal/config"
	"github.com/makeasinger/moviegen/internal/handler"
	"github.com/makeasinger/moviegen/internal/logging"
	"github.com/makeasinger/moviegen/internal/middleware"
	"github.com/makeasinger/moviegen/internal/service"
	ws "github.com/makeasinger/moviegen/internal/websocket"
	"github.com/makeasinger/moviegen/pkg/response"
	"github.com/makeasinger/moviegen/pkg/tracer"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		klog.ErrorS(err, "Failed to load config")
		os.Exit(1)
	}

	logging.Init(flag.CommandLine, cfg.Server.LogLevel)
	flag.Parse()
	defer klog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		klog.ErrorS(err, "Failed to initialize tracing")
		os.Exit(1)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		klog.V(logging.WARNING).InfoS("Redis not available, rate limiter will fail open", "err", err)
	}

	// Upstream completer, mocked when no API key is configured
	var completer service.Completer
	if cfg.OpenRouter.IsConfigured() {
		completer = client.NewOpenRouterClient(&cfg.OpenRouter)
	} else {
		klog.V(logging.WARNING).InfoS("OPENROUTER_API_KEY not set, using mock completions")
		completer = client.NewMockClient()
	}

	validate := validator.New()
	hub := ws.NewHub()

	// Initialize services
	builder := service.NewRequestBuilder(cfg.OpenRouter.Model)
	sessionService := service.NewSessionService(builder, completer, hub)

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(sessionService, validate)
	healthHandler := handler.NewHealthHandler(redisClient, cfg.OpenRouter.IsConfigured(), sessionService.Count)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestContext())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/auth/verify", authMiddleware.Verify)

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	sessions := api.Group("/sessions")
	sessions.Post("/", sessionHandler.Create)
	sessions.Get("/:id", sessionHandler.Get)
	sessions.Post("/:id/generate", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerMin), sessionHandler.Generate)
	sessions.Post("/:id/reset", sessionHandler.Reset)
	sessions.Delete("/:id", sessionHandler.Delete)
	sessions.Get("/:id/notifications", sessionHandler.Notifications)

	// WebSocket routes
	app.Use("/ws", handler.RequireUpgrade, authMiddleware.AuthenticateQuery())
	app.Get("/ws/sessions/:id", handler.NewStreamHandler(sessionService, hub))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		return sessionService.RunSweeper(gctx, cfg.Session.SweepInterval, cfg.Session.MaxIdle)
	})

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		klog.InfoS("Server starting", "addr", addr, "model", builder.Model(), "env", cfg.Server.Env)
		return app.Listen(addr)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		klog.InfoS("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			klog.ErrorS(err, "Server shutdown error")
		}
		drained := make(chan struct{})
		go func() {
			sessionService.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(30 * time.Second):
			klog.V(logging.WARNING).InfoS("Abandoning in-flight generations")
		}

		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracer(tctx)
	})

	if err := g.Wait(); err != nil {
		klog.ErrorS(err, "Server error")
		klog.Flush()
		os.Exit(1)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	if code == fiber.StatusNotFound {
		errCode = response.CodeNotFound
	}
	return response.Error(c, code, errCode, message, nil)
}
