package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the scholarship workflow counters.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	applicationsDecided *prometheus.CounterVec
	slotAssignments     prometheus.Counter
	capacityConflicts   prometheus.Counter
	reportsDecided      *prometheus.CounterVec
	serviceHoursAccrued prometheus.Counter
	notificationsQueued prometheus.Counter
}

// NewMetricsService registers the service collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	applicationsDecided := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "applications_decided_total",
		Help: "Scholarship application decisions by outcome",
	}, []string{"decision"})

	slotAssignments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slot_assignments_total",
		Help: "Approved slot assignments",
	})

	capacityConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slot_capacity_conflicts_total",
		Help: "Slot approvals refused because the slot was full",
	})

	reportsDecided := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weekly_reports_decided_total",
		Help: "Weekly report decisions by outcome",
	}, []string{"decision"})

	serviceHoursAccrued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "service_hours_accrued_total",
		Help: "Service hours credited through report approvals",
	})

	notificationsQueued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_queued_total",
		Help: "Notifications enqueued for dispatch",
	})

	registry.MustRegister(requestDuration, requestTotal, applicationsDecided,
		slotAssignments, capacityConflicts, reportsDecided, serviceHoursAccrued, notificationsQueued)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		applicationsDecided: applicationsDecided,
		slotAssignments:     slotAssignments,
		capacityConflicts:   capacityConflicts,
		reportsDecided:      reportsDecided,
		serviceHoursAccrued: serviceHoursAccrued,
		notificationsQueued: notificationsQueued,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records a completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ApplicationDecided counts a terminal application decision.
func (s *MetricsService) ApplicationDecided(decision string) {
	s.applicationsDecided.WithLabelValues(decision).Inc()
}

// SlotAssigned counts an approved slot assignment.
func (s *MetricsService) SlotAssigned() {
	s.slotAssignments.Inc()
}

// CapacityConflict counts a slot approval lost to capacity.
func (s *MetricsService) CapacityConflict() {
	s.capacityConflicts.Inc()
}

// ReportDecided counts a terminal weekly report decision.
func (s *MetricsService) ReportDecided(decision string) {
	s.reportsDecided.WithLabelValues(decision).Inc()
}

// HoursAccrued counts service hours credited to beneficiaries.
func (s *MetricsService) HoursAccrued(hours float64) {
	if hours > 0 {
		s.serviceHoursAccrued.Add(hours)
	}
}

// NotificationQueued counts an enqueued notification.
func (s *MetricsService) NotificationQueued() {
	s.notificationsQueued.Inc()
}
