package backend

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SimonCaignart/plant-e/pkg/metrics"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// OpsConfig holds the configuration of the operations HTTP server.
type OpsConfig struct {
	Logger  *slog.Logger
	Metrics *metrics.OpsMetrics
	// Checks run on /healthz, keyed by dependency name.
	Checks map[string]HealthCheck
	// Pumps serves the pump websocket endpoint. Optional.
	Pumps gin.HandlerFunc
}

// NewOpsRouter builds the router serving /healthz, /metrics and /ws/pumps.
func NewOpsRouter(cfg *OpsConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestMetrics(cfg.Logger, cfg.Metrics))

	r.GET("/healthz", healthHandler(cfg.Checks))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if cfg.Pumps != nil {
		r.GET("/ws/pumps", cfg.Pumps)
	}
	return r
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		code := http.StatusOK
		results := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				code = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		status := "ok"
		if code != http.StatusOK {
			status = "degraded"
		}
		c.JSON(code, gin.H{"status": status, "checks": results})
	}
}

func requestMetrics(logger *slog.Logger, m *metrics.OpsMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := c.Writer.Status()

		if m != nil {
			m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(code)).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(metrics.Since(start))
		}
		if logger != nil && path != "/metrics" {
			logger.Debug("http request",
				"method", c.Request.Method,
				"path", path,
				"status", code,
				"duration", time.Since(start),
			)
		}
	}
}
