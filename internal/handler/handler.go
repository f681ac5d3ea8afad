package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/cache"
	"github.com/profiq/meetup-analysis-kinetica/internal/consumer"
	"github.com/profiq/meetup-analysis-kinetica/internal/throttle"
)

const healthCheckTimeout = 3 * time.Second

// Pinger checks that the storage backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PipelineStats exposes ingestion counters
type PipelineStats interface {
	Stats() consumer.Stats
}

// ThrottleStats exposes the rate limiter state
type ThrottleStats interface {
	Stats() throttle.Stats
}

// CacheStats exposes attribute cache usage
type CacheStats interface {
	Stats() cache.Stats
}

// StatsResponse is the body of GET /stats
type StatsResponse struct {
	Pipeline consumer.Stats `json:"pipeline"`
	Throttle throttle.Stats `json:"throttle"`
	Cache    *cache.Stats   `json:"cache,omitempty"`
}

// Handler serves the consumer's operational endpoints
type Handler struct {
	storage  Pinger
	pipeline PipelineStats
	throttle ThrottleStats
	cache    CacheStats
	router   *gin.Engine
	log      *zap.Logger
}

// NewHandler creates the ops handler. cacheStats may be nil when caching is disabled.
func NewHandler(storage Pinger, pipeline PipelineStats, limiter ThrottleStats, cacheStats CacheStats, log *zap.Logger) *Handler {
	h := &Handler{
		storage:  storage,
		pipeline: pipeline,
		throttle: limiter,
		cache:    cacheStats,
		router:   gin.New(),
		log:      log,
	}

	h.router.Use(gin.Recovery())
	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.GET("/stats", h.getStats)
	h.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheck reports unavailable while ClickHouse cannot be reached
func (h *Handler) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.storage.Ping(ctx); err != nil {
		h.log.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (h *Handler) getStats(c *gin.Context) {
	response := StatsResponse{
		Pipeline: h.pipeline.Stats(),
		Throttle: h.throttle.Stats(),
	}
	if h.cache != nil {
		stats := h.cache.Stats()
		response.Cache = &stats
	}

	c.JSON(http.StatusOK, response)
}
