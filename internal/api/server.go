package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/db"
	"github.com/david/scholarship-finder/internal/ingest"
	"github.com/david/scholarship-finder/internal/logger"
	"github.com/david/scholarship-finder/internal/metrics"
	"github.com/david/scholarship-finder/internal/models"
)

// ScholarshipStore is the read side of the record store.
type ScholarshipStore interface {
	Ping(ctx context.Context) error
	ListScholarships(ctx context.Context, params db.ListParams) (*db.ListResult, error)
	GetScholarship(ctx context.Context, id uuid.UUID) (*models.Scholarship, error)
}

// Matcher ranks candidates for a profile, falling back to placeholders.
type Matcher interface {
	Recommend(ctx context.Context, profile models.ApplicantProfile) []models.MatchCandidate
}

// SourceRunner runs one configured source.
type SourceRunner interface {
	RunOne(ctx context.Context, sourceID string) (ingest.RunSummary, error)
}

// JobRunner triggers named jobs without overlapping runs.
type JobRunner interface {
	Trigger(ctx context.Context, name string) error
	Running(name string) bool
}

type Options struct {
	Store       ScholarshipStore
	Matcher     Matcher
	Sources     SourceRunner
	Jobs        JobRunner
	AdminSecret string
	CORSOrigins []string
	JobTimeout  time.Duration
	Logger      *zap.Logger
}

type Server struct {
	Echo *echo.Echo

	store       ScholarshipStore
	matcher     Matcher
	sources     SourceRunner
	runner      JobRunner
	adminSecret string
	jobTimeout  time.Duration
	logger      *zap.Logger
	validate    *validator.Validate
	jobs        *jobTracker
}

func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	if len(opts.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: opts.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
		}))
	}

	s := &Server{
		Echo:        e,
		store:       opts.Store,
		matcher:     opts.Matcher,
		sources:     opts.Sources,
		runner:      opts.Jobs,
		adminSecret: strings.TrimSpace(opts.AdminSecret),
		jobTimeout:  opts.JobTimeout,
		logger:      logger.OrNop(opts.Logger),
		validate:    validator.New(),
		jobs:        newJobTracker(50),
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = 30 * time.Minute
	}
	if s.adminSecret == "" {
		s.adminSecret = ephemeralSecret()
		s.logger.Warn("admin secret is not set; using ephemeral in-memory fallback secret")
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.Echo.Any("/api/match", s.handleMatch)
	api := s.Echo.Group("/api/v1")
	api.Any("/match", s.handleMatch)
	api.GET("/scholarships", s.handleListScholarships)
	api.GET("/scholarships/:id", s.handleGetScholarship)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/ingest/all", s.handleIngestAll)
	admin.POST("/ingest/source/:id", s.handleIngestSourceByID)
	admin.POST("/admin/verify-links", s.handleVerifyLinks)
	admin.GET("/admin/job/:id", s.handleJobStatus)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// handleMatch answers POST with ranked candidates. Malformed bodies and an
// unreachable store are the only 500s; everything else degrades to the
// placeholder set with 200.
func (s *Server) handleMatch(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		metrics.MatchRequestsTotal.WithLabelValues("error").Inc()
		return errorJSON(c, http.StatusMethodNotAllowed, "Method not allowed")
	}

	var profile models.ApplicantProfile
	if err := json.NewDecoder(c.Request().Body).Decode(&profile); err != nil {
		metrics.MatchRequestsTotal.WithLabelValues("error").Inc()
		return errorJSON(c, http.StatusInternalServerError, "invalid request body: "+err.Error())
	}
	if err := s.validate.Struct(profile); err != nil {
		metrics.MatchRequestsTotal.WithLabelValues("error").Inc()
		return errorJSON(c, http.StatusInternalServerError, "invalid profile: "+err.Error())
	}

	ctx := c.Request().Context()
	if err := s.store.Ping(ctx); err != nil {
		metrics.MatchRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Error("match request failed, store unreachable", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "scholarship store unavailable")
	}

	results := s.matcher.Recommend(ctx, profile)
	return c.JSON(http.StatusOK, map[string]any{"scholarships": results})
}

func (s *Server) handleListScholarships(c echo.Context) error {
	params := db.ListParams{
		Query:          strings.TrimSpace(c.QueryParam("q")),
		Source:         strings.TrimSpace(c.QueryParam("source")),
		IncludeExpired: c.QueryParam("include_expired") == "true",
		Limit:          20,
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		params.Offset = o
	}
	if raw := c.QueryParam("needs_review"); raw != "" {
		val := raw == "true"
		params.NeedsReview = &val
	}

	result, err := s.store.ListScholarships(c.Request().Context(), params)
	if err != nil {
		s.logger.Error("failed to list scholarships", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetScholarship(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid id")
	}
	rec, err := s.store.GetScholarship(c.Request().Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "Not found")
	}
	if err != nil {
		s.logger.Error("failed to get scholarship", zap.String("id", id.String()), zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		adminHeader := c.Request().Header.Get("X-Admin-Secret")
		if adminHeader != "" && secretEqual(adminHeader, s.adminSecret) {
			return next(c)
		}
		authHeader := c.Request().Header.Get("Authorization")
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") && secretEqual(authHeader[7:], s.adminSecret) {
			return next(c)
		}
		return errorJSON(c, http.StatusUnauthorized, "Unauthorized admin access")
	}
}

func secretEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func ephemeralSecret() string {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString() + uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
