// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// InboundAccepted counts inbound emails that produced a ticket.
	InboundAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deskmail_inbound_accepted_total",
		Help: "Inbound emails successfully converted to tickets.",
	}, []string{"provider"})

	// InboundRejected counts inbound emails rejected before persistence.
	InboundRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deskmail_inbound_rejected_total",
		Help: "Inbound emails rejected, by reason.",
	}, []string{"provider", "reason"})

	// IngestDuration observes end-to-end pipeline latency per webhook call.
	IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deskmail_ingest_duration_seconds",
		Help:    "Time spent converting an inbound email into a ticket.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
