// Package api serves the tracked-token dataset, session control and per-mint
// analytics over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/observability"
	"solana-token-radar/internal/radar"
)

// DefaultHistoryLimit bounds /history responses without a limit parameter.
const DefaultHistoryLimit = 100

// Radar is the service surface the API exposes.
type Radar interface {
	TrackedTokens(ctx context.Context) ([]*domain.TokenRecord, error)
	Status(ctx context.Context) radar.StoreStatus
	ClearAll(ctx context.Context) error
	Start() bool
	Stop() bool
	Running() bool

	AnalyzeHolderDistribution(ctx context.Context, mint string) (domain.HolderDistribution, error)
	DetectDistributionPatterns(ctx context.Context, mint string) (domain.DistributionSignals, error)
	CheckHoneypot(ctx context.Context, mint string) (domain.HoneypotResult, error)
	ResolveLPAddresses(ctx context.Context, mint string) ([]*domain.LPAddressSet, error)
	MintInfo(ctx context.Context, mint string) (*domain.MintInfo, error)
	RugcheckReport(ctx context.Context, mint string) (*domain.RiskReport, error)
	SignalHistory(ctx context.Context, pool string, limit int) ([]*domain.SignalSnapshot, error)
}

var _ Radar = (*radar.Service)(nil)

// Config for the server.
type Config struct {
	Debug bool
}

// Server is the HTTP API.
type Server struct {
	*echo.Echo
	radar  Radar
	logger *zap.Logger
}

// TokensResponse is the body of GET /api/tokens.
type TokensResponse struct {
	Tokens []*domain.TokenRecord `json:"tokens"`
}

// SessionResponse is the body of the session endpoints.
type SessionResponse struct {
	Active bool   `json:"active"`
	Status string `json:"status,omitempty"`
}

// MessageResponse is a status with a human-readable message.
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// New creates the server and registers routes.
func New(cfg Config, r Radar, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Debug
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	s := &Server{Echo: e, radar: r, logger: logger.Named("api")}
	e.Use(s.requestLogger())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.GET("/health", s.GetHealth)
	s.GET("/metrics", echo.WrapHandler(observability.Handler()))

	api := s.Group("/api")
	api.GET("/tokens", s.GetTokens)
	api.GET("/db-status", s.GetDBStatus)
	api.POST("/session/start", s.StartSession)
	api.POST("/session/stop", s.StopSession)
	api.GET("/session/status", s.GetSessionStatus)
	api.POST("/database/clear", s.ClearDatabase)
	api.GET("/tokens/:address/rugcheck", s.GetRugcheck)
	api.GET("/tokens/:address/history", s.GetHistory)

	mints := api.Group("/mints/:mint")
	mints.GET("/holders", s.GetHolders)
	mints.GET("/patterns", s.GetPatterns)
	mints.GET("/honeypot", s.GetHoneypot)
	mints.GET("/lp", s.GetLP)
	mints.GET("/info", s.GetMintInfo)
}

// GetHealth reports liveness.
func (s *Server) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, MessageResponse{Status: "ok"})
}

// GetTokens returns every tracked token, newest first.
func (s *Server) GetTokens(c echo.Context) error {
	tokens, err := s.radar.TrackedTokens(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
	if tokens == nil {
		tokens = []*domain.TokenRecord{}
	}
	return c.JSON(http.StatusOK, TokensResponse{Tokens: tokens})
}

// GetDBStatus reports store connectivity and the tracked-token count.
func (s *Server) GetDBStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.radar.Status(c.Request().Context()))
}

// StartSession starts the scheduler; starting a running session is a no-op.
func (s *Server) StartSession(c echo.Context) error {
	if s.radar.Start() {
		s.logger.Info("session started")
	}
	return c.JSON(http.StatusOK, SessionResponse{Active: true, Status: "started"})
}

// StopSession stops the scheduler after any in-flight pass.
func (s *Server) StopSession(c echo.Context) error {
	if s.radar.Stop() {
		s.logger.Info("session stopped")
	}
	return c.JSON(http.StatusOK, SessionResponse{Active: false, Status: "stopped"})
}

// GetSessionStatus reports whether the scheduler is running.
func (s *Server) GetSessionStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, SessionResponse{Active: s.radar.Running()})
}

// ClearDatabase removes every tracked token.
func (s *Server) ClearDatabase(c echo.Context) error {
	if err := s.radar.ClearAll(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Status: "success", Message: "Database cleared"})
}

// GetRugcheck returns the filtered third-party risk report of a mint.
func (s *Server) GetRugcheck(c echo.Context) error {
	report, err := s.radar.RugcheckReport(c.Request().Context(), c.Param("address"))
	if err != nil {
		if errors.Is(err, radar.ErrInvalidAddress) {
			return toHTTPError(err)
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Rugcheck API error: "+err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, report)
}

// GetHistory returns signal snapshots of a pool, newest first.
func (s *Server) GetHistory(c echo.Context) error {
	limit := DefaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	snaps, err := s.radar.SignalHistory(c.Request().Context(), c.Param("address"), limit)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, snaps)
}

// GetHolders returns holder concentration for a mint.
func (s *Server) GetHolders(c echo.Context) error {
	res, err := s.radar.AnalyzeHolderDistribution(c.Request().Context(), c.Param("mint"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// GetPatterns returns distribution pattern signals for a mint.
func (s *Server) GetPatterns(c echo.Context) error {
	res, err := s.radar.DetectDistributionPatterns(c.Request().Context(), c.Param("mint"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// GetHoneypot returns the buy/sell round-trip verdict for a mint.
func (s *Server) GetHoneypot(c echo.Context) error {
	res, err := s.radar.CheckHoneypot(c.Request().Context(), c.Param("mint"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// GetLP returns the resolved LP address sets of a mint.
func (s *Server) GetLP(c echo.Context) error {
	res, err := s.radar.ResolveLPAddresses(c.Request().Context(), c.Param("mint"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// GetMintInfo returns the decoded mint account and its risky extensions.
func (s *Server) GetMintInfo(c echo.Context) error {
	res, err := s.radar.MintInfo(c.Request().Context(), c.Param("mint"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// ShutdownWithTimeout gracefully stops the server.
func (s *Server) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}

func toHTTPError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, radar.ErrInvalidAddress):
		code = http.StatusBadRequest
	case errors.Is(err, radar.ErrAccountNotFound):
		code = http.StatusNotFound
	case errors.Is(err, radar.ErrNotMint):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, radar.ErrUnavailable):
		code = http.StatusServiceUnavailable
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				s.logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			s.logger.Debug("request", fields...)
			return nil
		},
	})
}
