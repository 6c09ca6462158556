// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

//go:embed static
var staticFS embed.FS

// Querier answers questions and manages their sessions.
type Querier interface {
	Query(ctx context.Context, req *entities.ChatRequest) (*entities.ChatResponse, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// Catalog reports the ingested courses.
type Catalog interface {
	Analytics(ctx context.Context) (*entities.CourseAnalytics, error)
}

// Options configures a Server.
type Options struct {
	Addr        string
	FrontendDir string       // served at / when it exists
	Metrics     http.Handler // served at /metrics when set
}

// Server is the HTTP server for the course Q&A API and UI.
type Server struct {
	echo    *echo.Echo
	queries Querier
	catalog Catalog
	addr    string
	logger  *log.Logger
}

type queryRequest struct {
	Query     *string `json:"query"`
	SessionID *string `json:"session_id"`
}

type queryResponse struct {
	Answer    string            `json:"answer"`
	Sources   []entities.Source `json:"sources"`
	SessionID string            `json:"session_id"`
}

// NewServer creates a new HTTP server.
func NewServer(queries Querier, catalog Catalog, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	s := &Server{
		echo:    echo.New(),
		queries: queries,
		catalog: catalog,
		addr:    opts.Addr,
		logger:  log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))
	e.Use(s.logRequests)

	api := e.Group("/api")
	api.POST("/query", s.handleQuery)
	api.GET("/courses", s.handleCourses)
	api.DELETE("/session/:id", s.handleClearSession)
	api.GET("/health", s.handleHealth)

	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}

	if info, err := os.Stat(opts.FrontendDir); opts.FrontendDir != "" && err == nil && info.IsDir() {
		e.Static("/", opts.FrontendDir)
	} else {
		e.StaticFS("/", echo.MustSubFS(staticFS, "static"))
	}

	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Printf("[INFO] Course Q&A server starting on %s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.echo.Shutdown(shutdownCtx)
	}()

	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleQuery answers one question, creating a session when none is given.
func (s *Server) handleQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid request body")
	}
	if req.Query == nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "field required: query")
	}

	chatReq := &entities.ChatRequest{Query: *req.Query}
	if req.SessionID != nil {
		chatReq.SessionID = *req.SessionID
	}

	resp, err := s.queries.Query(c.Request().Context(), chatReq)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	sources := resp.Sources
	if sources == nil {
		sources = []entities.Source{}
	}
	return c.JSON(http.StatusOK, queryResponse{
		Answer:    resp.Answer,
		Sources:   sources,
		SessionID: resp.SessionID,
	})
}

func (s *Server) handleCourses(c echo.Context) error {
	stats, err := s.catalog.Analytics(c.Request().Context())
	if err != nil {
		return fmt.Errorf("course analytics failed: %w", err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleClearSession(c echo.Context) error {
	if err := s.queries.ClearSession(c.Request().Context(), c.Param("id")); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleError renders every failure as {"detail": ...}. Internal errors are
// logged with their cause and reported generically.
func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	detail := "Internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		detail = fmt.Sprint(he.Message)
	}

	req := c.Request()
	if code >= http.StatusInternalServerError {
		s.logger.Printf("[ERROR] %d %s %s: %v", code, req.Method, req.URL.Path, err)
	}
	if c.Response().Committed {
		return
	}
	if req.Method == http.MethodHead {
		c.NoContent(code)
		return
	}
	c.JSON(code, map[string]string{"detail": detail})
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		req := c.Request()
		s.logger.Printf("%s %s %v", req.Method, req.URL.Path, time.Since(start))
		return err
	}
}
