// Package httpapi serves the stored lore tables over a read-only JSON API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/hurttlocker/loresmith/internal/extract"
	"github.com/hurttlocker/loresmith/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxSearchLimit  = 100
)

// Version is reported by the health endpoint.
var Version = "dev"

// Options configures the HTTP listener.
type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server serves the latest stored run as a read-only JSON API.
type Server struct {
	store  store.Store
	logger zerolog.Logger
	opts   Options
}

type runSummary struct {
	RunID              string    `json:"run_id"`
	GeneratedAt        time.Time `json:"generated_at"`
	TotalRawEntries    int       `json:"total_raw_entries"`
	CleanedEntries     int       `json:"cleaned_entries"`
	DuplicatesRemoved  int       `json:"duplicates_removed"`
	CleaningEfficiency string    `json:"cleaning_efficiency"`
	AverageConfidence  float64   `json:"average_confidence"`
}

// NewServer creates a server. Empty host and non-positive port fall back
// to 127.0.0.1:8080.
func NewServer(st store.Store, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port <= 0 {
		port = 8080
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		store:  st,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
}

// Handler builds the routed echo instance.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := s.logger.Debug()
			if v.Error != nil {
				ev = s.logger.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.GET("/report", s.handleReport)
	api.GET("/search", s.handleSearch)
	api.GET("/categories", s.handleCategories)
	api.GET("/categories/:category", s.handleList)
	api.GET("/categories/:category/:name", s.handleRecord)
	return e
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := s.Addr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("lore api started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("lore api stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if v, ok := he.Message.(string); ok && strings.TrimSpace(v) != "" {
			message = v
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "loresmith",
		"version": Version,
		"time":    time.Now().UTC(),
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("query store stats failed")
		return internalError(c, "Failed to load store stats")
	}

	out := map[string]any{"store": stats}
	run, err := s.store.LatestRun(ctx)
	switch {
	case err == nil:
		out["latest_run"] = summarize(run)
	case errors.Is(err, store.ErrNoRuns):
		out["latest_run"] = nil
	default:
		s.logger.Error().Err(err).Msg("query latest run failed")
		return internalError(c, "Failed to load latest run")
	}
	return success(c, out)
}

func (s *Server) handleReport(c echo.Context) error {
	run, err := s.store.LatestRun(c.Request().Context())
	if err != nil {
		return s.storeError(c, err, "Failed to load report")
	}
	if run.Report != nil {
		return success(c, run.Report)
	}
	return success(c, summarize(run))
}

func (s *Server) handleCategories(c echo.Context) error {
	cats, err := s.store.Categories(c.Request().Context())
	if err != nil {
		return s.storeError(c, err, "Failed to load categories")
	}
	return success(c, map[string]any{"items": cats})
}

func (s *Server) handleList(c echo.Context) error {
	category := normalize(c.Param("category"))
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	offset, err := parsePositiveInt(c.QueryParam("offset"), 0, 0, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"offset": err.Error()})
	}
	sortBy := normalize(c.QueryParam("sort"))
	if sortBy != "" && !slices.Contains([]string{"mentions", "confidence", "name"}, sortBy) {
		return failValidation(c, map[string]string{"sort": "must be one of mentions, confidence, name"})
	}

	ctx := c.Request().Context()
	known, err := s.knownCategory(ctx, category)
	if err != nil {
		return s.storeError(c, err, "Failed to load categories")
	}
	if !known {
		return failNotFound(c, "Category not found")
	}

	items, err := s.store.ListRecords(ctx, category, store.ListOpts{Limit: limit, Offset: offset, SortBy: sortBy})
	if err != nil {
		return s.storeError(c, err, "Failed to load records")
	}
	if items == nil {
		items = []*store.StoredRecord{}
	}
	return success(c, map[string]any{
		"category": category,
		"items":    items,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"sort":   sortBy,
		},
	})
}

func (s *Server) handleRecord(c echo.Context) error {
	category := normalize(c.Param("category"))
	name := normalize(c.Param("name"))
	if name == "" {
		return failValidation(c, map[string]string{"name": "is required"})
	}

	rec, err := s.store.GetRecord(c.Request().Context(), category, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failNotFound(c, "Record not found")
		}
		return s.storeError(c, err, "Failed to load record")
	}
	return success(c, rec)
}

func (s *Server) handleSearch(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return failValidation(c, map[string]string{"q": "is required"})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), 10, 1, maxSearchLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	results, err := s.store.SearchContexts(c.Request().Context(), q, limit)
	if err != nil {
		return s.storeError(c, err, "Search failed")
	}
	if results == nil {
		results = []*store.SearchResult{}
	}
	return success(c, map[string]any{
		"query": q,
		"items": results,
	})
}

// storeError maps an empty store to 404 and everything else to 500.
func (s *Server) storeError(c echo.Context, err error, message string) error {
	if errors.Is(err, store.ErrNoRuns) {
		return failNotFound(c, "No cleaning run has been stored yet")
	}
	s.logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg(strings.ToLower(message))
	return internalError(c, message)
}

func (s *Server) knownCategory(ctx context.Context, category string) (bool, error) {
	if slices.Contains(extract.Categories, category) {
		return true, nil
	}
	cats, err := s.store.Categories(ctx)
	if err != nil {
		return false, err
	}
	_, ok := cats[category]
	return ok, nil
}

func summarize(run *store.Run) runSummary {
	return runSummary{
		RunID:              run.ID,
		GeneratedAt:        run.GeneratedAt,
		TotalRawEntries:    run.TotalRawEntries,
		CleanedEntries:     run.CleanedEntries,
		DuplicatesRemoved:  run.DuplicatesRemoved,
		CleaningEfficiency: run.CleaningEfficiency,
		AverageConfidence:  run.AverageConfidence,
	}
}

func normalize(raw string) string {
	return strings.TrimSpace(strings.ToLower(raw))
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
