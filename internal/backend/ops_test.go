package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/SimonCaignart/plant-e/internal/backend"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
)

// Registered once: the metrics registry is global.
var opsMetrics = metrics.NewOpsMetrics("backend_ops_test")

var _ = Describe("Ops router", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	serve := func(r http.Handler, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]any {
		var body map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	It("should report ok when every check passes", func() {
		r := backend.NewOpsRouter(&backend.OpsConfig{
			Logger:  logger,
			Metrics: opsMetrics,
			Checks: map[string]backend.HealthCheck{
				"database": func(context.Context) error { return nil },
			},
		})

		rec := serve(r, "/healthz")
		Expect(rec.Code).To(Equal(http.StatusOK))

		body := decode(rec)
		Expect(body).To(HaveKeyWithValue("status", "ok"))
		Expect(body["checks"]).To(HaveKeyWithValue("database", "ok"))
	})

	It("should report degraded when a check fails", func() {
		r := backend.NewOpsRouter(&backend.OpsConfig{
			Logger: logger,
			Checks: map[string]backend.HealthCheck{
				"database": func(context.Context) error { return nil },
				"mqtt":     func(context.Context) error { return errors.New("not connected") },
			},
		})

		rec := serve(r, "/healthz")
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))

		body := decode(rec)
		Expect(body).To(HaveKeyWithValue("status", "degraded"))
		Expect(body["checks"]).To(HaveKeyWithValue("mqtt", "not connected"))
	})

	It("should expose prometheus metrics", func() {
		r := backend.NewOpsRouter(&backend.OpsConfig{Logger: logger, Metrics: opsMetrics})

		serve(r, "/healthz")
		rec := serve(r, "/metrics")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("backend_ops_test_http_requests_total"))
	})

	It("should only mount the pump endpoint when configured", func() {
		r := backend.NewOpsRouter(&backend.OpsConfig{Logger: logger})
		Expect(serve(r, "/ws/pumps").Code).To(Equal(http.StatusNotFound))

		r = backend.NewOpsRouter(&backend.OpsConfig{
			Logger: logger,
			Pumps:  func(c *gin.Context) { c.Status(http.StatusTeapot) },
		})
		Expect(serve(r, "/ws/pumps").Code).To(Equal(http.StatusTeapot))
	})
})
