// Package api serves the dashboard record over HTTP for the presentation
// layer. The cache file is re-read on every request so a running server
// always reflects the latest completed update run.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Traderyo93/gapdash/internal/logger"
	"github.com/Traderyo93/gapdash/internal/models"
	"github.com/Traderyo93/gapdash/internal/storage"
)

const maxGapsLimit = 500

// Server exposes the dashboard endpoints.
type Server struct {
	cachePath  string
	engine     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a server listening on addr and reading the dashboard from
// cachePath. An empty allowedOrigins list allows every origin.
func NewServer(addr, cachePath string, allowedOrigins []string) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		cachePath: cachePath,
		engine:    engine,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.HEAD("/health", s.getHealth)
	api.GET("/dashboard", s.getDashboard)
	api.GET("/periods/:kind", s.getPeriods)
	api.GET("/periods/:kind/:key", s.getPeriod)
	api.GET("/gaps", s.getGaps)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens until Shutdown is called. It returns nil after a shutdown.
func (s *Server) Start() error {
	logger.Info("Starting dashboard API on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) getHealth(c *gin.Context) {
	d, err := storage.LoadDashboard(s.cachePath)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"hasData":      true,
			"runId":        d.RunID,
			"lastUpdated":  d.LastUpdated,
			"totalGappers": d.TotalGappers,
		})
	case errors.Is(err, storage.ErrNoDashboard):
		c.JSON(http.StatusOK, gin.H{"status": "ok", "hasData": false})
	default:
		logger.Error("Failed to load dashboard: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "dashboard unreadable"})
	}
}

func (s *Server) getDashboard(c *gin.Context) {
	d, ok := s.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) getPeriods(c *gin.Context) {
	kind, err := models.ParsePeriodKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, ok := s.load(c)
	if !ok {
		return
	}
	periods := d.Periods(kind)
	if c.Query("populated") == "true" {
		periods = populated(periods)
	}
	c.JSON(http.StatusOK, gin.H{
		"kind":    kind,
		"periods": periods,
		"stats":   statsOf(d, kind),
	})
}

func (s *Server) getPeriod(c *gin.Context) {
	kind, err := models.ParsePeriodKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, ok := s.load(c)
	if !ok {
		return
	}
	agg, found := d.Periods(kind)[c.Param("key")]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "period not found"})
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (s *Server) getGaps(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxGapsLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	d, ok := s.load(c)
	if !ok {
		return
	}
	gaps := d.LastGaps
	if limit > 0 && limit < len(gaps) {
		gaps = gaps[:limit]
	}
	c.JSON(http.StatusOK, gin.H{
		"gaps":     gaps,
		"calendar": d.Calendar,
	})
}

// load reads the dashboard and writes the error response when it cannot.
func (s *Server) load(c *gin.Context) (*models.Dashboard, bool) {
	d, err := storage.LoadDashboard(s.cachePath)
	if errors.Is(err, storage.ErrNoDashboard) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no dashboard yet, run an update first"})
		return nil, false
	}
	if err != nil {
		logger.Error("Failed to load dashboard: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dashboard unreadable"})
		return nil, false
	}
	return d, true
}

// populated drops back-filled placeholder periods.
func populated(periods map[string]models.PeriodAggregate) map[string]models.PeriodAggregate {
	out := make(map[string]models.PeriodAggregate, len(periods))
	for key, p := range periods {
		if !p.Empty() {
			out[key] = p
		}
	}
	return out
}

func statsOf(d *models.Dashboard, kind models.PeriodKind) []models.PeriodStat {
	switch kind {
	case models.PeriodDay:
		return d.DailyStats
	case models.PeriodWeek:
		return d.WeeklyStats
	default:
		return d.MonthlyStats
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
