/*
metrics.go - Prometheus instrumentation for the HTTP surface

METRICS:
  frontdesk_http_requests_total{method,route,status}
  frontdesk_http_request_duration_seconds{method,route}
  frontdesk_rejections_total{code}         business and infra failures by code
  frontdesk_bookings_created_total
  frontdesk_ledger_entries_total{type}     committed transactions by type
  frontdesk_rooms{status}                  sampled by OccupancySampler

Everything is registered on a private registry so tests can build as many
routers as they like.

SEE ALSO:
  - scheduler.go: fills frontdesk_rooms
  - server.go: mounts /metrics
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/frontdesk-engine/engine"
)

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	rejections      *prometheus.CounterVec
	bookingsCreated prometheus.Counter
	ledgerEntries   *prometheus.CounterVec
	rooms           *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "frontdesk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_rejections_total",
			Help: "Engine errors returned to clients, by code.",
		}, []string{"code"}),
		bookingsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_bookings_created_total",
			Help: "Bookings committed.",
		}),
		ledgerEntries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_ledger_entries_total",
			Help: "Ledger transactions committed, by type.",
		}, []string{"type"}),
		rooms: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "frontdesk_rooms",
			Help: "Rooms by housekeeping status at the last sample.",
		}, []string{"status"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records count and latency per matched route pattern, so ids
// in the path don't explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) observeRejection(code string) {
	m.rejections.WithLabelValues(code).Inc()
}

func (m *Metrics) observeBooking() {
	m.bookingsCreated.Inc()
}

func (m *Metrics) observeEntry(t engine.TransactionType) {
	m.ledgerEntries.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) setRooms(counts map[engine.RoomStatus]int) {
	for _, s := range []engine.RoomStatus{engine.RoomAvailable, engine.RoomOccupied, engine.RoomDirty, engine.RoomMaintenance} {
		m.rooms.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
