package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/moltguard/moltguard/activity"
	"github.com/moltguard/moltguard/agent"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
)

// Server is the read-only status API. It never mutates agent state.
type Server struct {
	agent    *agent.Agent
	activity *activity.Store
	echo     *echo.Echo
	httpd    *http.Server
	logger   *slog.Logger
}

// registered once per process
var httpMetrics = echoprometheus.NewMiddleware("moltguard")

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func NewServer(ag *agent.Agent, act *activity.Store, bind string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		agent:    ag,
		activity: act,
		echo:     e,
		logger:   logger,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(httpMetrics)
	e.Use(middleware.BodyLimit("64K"))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/status", srv.HandleStatus)
	e.GET("/activity", srv.HandleActivity)

	return srv
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// RunAPI serves until ctx is cancelled.
func (srv *Server) RunAPI(ctx context.Context) error {
	srv.logger.Info("starting status server", "bind", srv.httpd.Addr)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.httpd.Shutdown(sctx); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}
	}()
	if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// RunMetrics serves prometheus metrics until ctx is cancelled.
func RunMetrics(ctx context.Context, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	httpd := &http.Server{Addr: listen, Handler: mux}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpd.Shutdown(sctx)
	}()
	if err := httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start metrics endpoint: %w", err)
	}
	return nil
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("moltguard-http-internal-error", "err", err)
	}
	c.JSON(code, GenericStatus{Status: "error", Daemon: "moltguard", Message: errorMessage})
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "moltguard"})
}

func (srv *Server) HandleStatus(c echo.Context) error {
	return c.JSON(200, srv.agent.Status(c.Request().Context()))
}

// HandleActivity returns recent decisions and outcome counts for the last day.
func (srv *Server) HandleActivity(c echo.Context) error {
	if srv.activity == nil {
		return echo.NewHTTPError(http.StatusNotFound, "activity log not configured")
	}
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 500")
		}
		limit = n
	}
	ctx := c.Request().Context()
	decisions, err := srv.activity.RecentDecisions(ctx, limit)
	if err != nil {
		return err
	}
	counts, err := srv.activity.OutcomeCounts(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return err
	}
	return c.JSON(200, map[string]any{
		"decisions":    decisions,
		"outcomes_24h": counts,
	})
}
