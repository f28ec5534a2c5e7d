package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"casepulse/internal/config"
	"casepulse/internal/dataprocessing"
	"casepulse/internal/dataset"
	apierrors "casepulse/internal/errors"
	"casepulse/internal/infrastructure"
	customMiddleware "casepulse/internal/middleware"
	"casepulse/internal/services"
	transport "casepulse/internal/transport/http"
	ws "casepulse/internal/websocket"
	"casepulse/pkg/contracts"
)

// Application wires the dashboard together and owns its lifecycle.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Store         *dataset.Store
	Watcher       *dataset.Watcher
	WebSocketHub  *ws.Hub
	Services      *ServiceContainer

	errorHandler *apierrors.ErrorHandler
	validator    *customMiddleware.QueryValidator
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Cases  *services.CaseService
	Health *services.HealthService
}

// NewApplication builds the application from cfg. The logger is the process
// wide one configured from cfg.Logging.
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return newApplication(cfg, logger)
}

func newApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	ctx := context.Background()

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("data_file", cfg.DataFile()))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		errorHandler:  apierrors.NewErrorHandler(logger, cfg.Server.Debug),
		validator:     customMiddleware.NewQueryValidator(),
	}

	a.initializeServices()

	// A corrupt file leaves the store empty and readiness reports not_ready;
	// the server still starts so the file can be fixed and reloaded.
	if _, err := a.Store.Reload(ctx); err != nil {
		logger.ErrorContext(ctx, "Initial case file load failed",
			slog.String("file", a.Store.Path()),
			slog.String("error", err.Error()))
	}

	if err := a.setupRouter(); err != nil {
		return nil, err
	}
	a.createServer()

	return a, nil
}

// initializeServices creates the store, hub and services in dependency order.
func (a *Application) initializeServices() {
	loader := dataprocessing.NewLoader(a.Logger)
	a.Store = dataset.NewStore(a.Config.DataFile(), loader, a.Logger, a.Metrics)

	a.WebSocketHub = ws.NewHub(a.Logger, a.Metrics)
	a.Store.Subscribe(a.WebSocketHub.BroadcastDataUpdate)

	if a.Config.Data.Watch {
		a.Watcher = dataset.NewWatcher(a.Store.Path(), a.Config.Data.WatchDebounce, a.Store, a.Logger)
	}

	a.Services = &ServiceContainer{
		Cases:  services.NewCaseService(a.Store, a.Metrics, a.Logger, a.Config.Data.MaxPageSize),
		Health: services.NewHealthService(contracts.Version, a.Store, a.WebSocketHub, a.Logger),
	}
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	// These don't wrap the ResponseWriter, so the websocket upgrade is safe.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	wsHandler := ws.NewHandler(a.WebSocketHub, ws.HandlerConfig{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		Timing: ws.Timing{
			PingPeriod: a.Config.WebSocket.PingPeriod,
			PongWait:   a.Config.WebSocket.PongWait,
		},
		AllowedOrigins: a.Config.Security.AllowedOrigins,
	}, a.errorHandler, a.Logger)
	r.Handle("/ws", wsHandler)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → headers → CORS → rate limit → Timeout
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.errorHandler))
		r.Use(customMiddleware.DefaultSecureHeaders(a.Config.Security.AssetSources).Handler)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
				Logger:         a.Logger,
			}))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
				a.errorHandler,
			).Handler)
		}
		r.Use(customMiddleware.StripSlashes)
		r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout))

		a.setupRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	a.Router = r
	return nil
}

// setupRoutes registers the page and API endpoints.
func (a *Application) setupRoutes(r chi.Router) {
	dataHandler := transport.NewDataHandler(a.Services.Cases, a.validator, a.Logger, a.errorHandler)
	healthHandler := transport.NewHealthHandler(a.Services.Health, a.Logger)
	clientLog := transport.NewClientLogHandler(a.validator, a.errorHandler, a.Logger)
	dashboard := transport.NewDashboardHandler(a.Services.Cases, a.validator, transport.DashboardAssets{}, a.errorHandler, a.Logger)

	r.With(customMiddleware.Compress(5)).Method(http.MethodGet, "/", dashboard)

	r.Route("/api", func(r chi.Router) {
		r.With(customMiddleware.Compress(5)).Mount("/data", dataHandler.Routes())
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
		r.Post("/log", clientLog.Handle)
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run runs the application until SIGINT or SIGTERM.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext listens on the configured address and serves until ctx is done.
func (a *Application) RunContext(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the server on ln together with the hub and the file watcher,
// then shuts everything down once ctx is done or any of them fails.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.WebSocketHub.Run(gctx)
	})

	if a.Watcher != nil {
		g.Go(func() error {
			if err := a.Watcher.Run(gctx); err != nil {
				// keep serving; the file can still be reloaded by hand
				a.Logger.WarnContext(gctx, "Case file watcher stopped",
					slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "Application started",
			slog.String("address", ln.Addr().String()),
			slog.String("level", a.Config.Logging.Level))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop gracefully stops the server and flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry",
				slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}
