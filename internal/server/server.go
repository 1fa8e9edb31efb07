package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/flowpilot/config"
	"github.com/mohammad-safakhou/flowpilot/internal/connector"
	"github.com/mohammad-safakhou/flowpilot/internal/events"
	"github.com/mohammad-safakhou/flowpilot/internal/executor"
	"github.com/mohammad-safakhou/flowpilot/internal/planner"
	"github.com/mohammad-safakhou/flowpilot/internal/telemetry"
	"github.com/mohammad-safakhou/flowpilot/provider"
)

// HTTPError is the body written for every failed request.
type HTTPError struct {
	Error string `json:"error"`
}

// Deps are the components served over HTTP. Metrics and JWTSecret are optional.
type Deps struct {
	Planner   Planner
	Runner    Runner
	Metrics   *telemetry.Metrics
	JWTSecret []byte
	Logger    *log.Logger
}

// New builds the echo instance with middleware and routes.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))

	baseLogger := d.Logger
	if baseLogger == nil {
		baseLogger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAuthorization},
		ExposeHeaders: []string{echo.HeaderXRequestID, HeaderWorkflowSource, HeaderWorkflowDiagnostic, HeaderWorkflowHalted},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	api := e.Group("")
	if len(d.JWTSecret) > 0 {
		api.Use(AuthMiddleware(d.JWTSecret))
	}
	NewWorkflowHandler(d.Planner, d.Runner).Register(api)
	return e
}

// Run wires the configured components and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, version string) error {
	shutdownTracing := telemetry.ShutdownFunc(func(context.Context) error { return nil })
	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		var err error
		shutdownTracing, err = telemetry.SetupTracing(ctx, cfg.Telemetry, version)
		if err != nil {
			return err
		}
		metrics = telemetry.NewMetrics()
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Printf("telemetry: %v", err)
		}
	}()

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	genOpts := []planner.Option{
		planner.WithModel(cfg.LLM.Model),
		planner.WithTemperature(cfg.LLM.Temperature),
	}
	execOpts := []executor.Option{executor.WithRegistry(connector.Default())}
	if metrics != nil {
		genOpts = append(genOpts, planner.WithObserver(metrics.ObservePlan))
		execOpts = append(execOpts, executor.WithMetrics(metrics.ExecutorMetrics()))
	}

	var sink events.Sink
	if cfg.Events.Enabled {
		rdb, err := events.Connect(ctx, cfg.Storage.Redis)
		if err != nil {
			return err
		}
		defer func(rdb *redis.Client) { _ = rdb.Close() }(rdb)
		sink = events.NewPublisher(rdb, cfg.Events.Stream, cfg.Events.MaxLen)
		log.Printf("publishing execution events to %s", cfg.Events.Stream)
	}
	if j := runJournal(cfg.General.Verbose(), sink, nil); j != nil {
		execOpts = append(execOpts, executor.WithJournal(j))
	}

	e := New(Deps{
		Planner:   planner.NewGenerator(llm, genOpts...),
		Runner:    executor.New(execOpts...),
		Metrics:   metrics,
		JWTSecret: []byte(cfg.Server.JWTSecret),
	})

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8000"
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// runJournal composes the executor journals: per-step log lines when verbose, and the event stream
// when a sink is configured. It returns nil when neither applies.
func runJournal(verbose bool, sink events.Sink, logger *log.Logger) executor.Journal {
	var journals executor.MultiJournal
	if verbose {
		journals = append(journals, executor.NewLogJournal(logger))
	}
	if sink != nil {
		journals = append(journals, events.NewStreamJournal(sink, nil))
	}
	if len(journals) == 0 {
		return nil
	}
	return journals
}
