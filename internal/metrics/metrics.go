package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Статусы операций с хранилищем для метки status
const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// Registry держит все инструменты процесса. Создаётся один раз при старте и
// передаётся в менеджер задач и HTTP-слой; в тестах у каждого теста свой.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec
	ActiveConnections   prometheus.Gauge

	TasksTotal          prometheus.Gauge
	TasksCreated        *prometheus.CounterVec
	TasksUpdated        prometheus.Counter
	TasksDeleted        prometheus.Counter
	TasksCompletedRatio prometheus.Gauge

	DatabaseOperationDuration *prometheus.HistogramVec
	DatabaseErrors            *prometheus.CounterVec
	ApplicationErrors         *prometheus.CounterVec
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	httpLabels := []string{"method", "route", "code"}

	return &Registry{
		reg: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			httpLabels,
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5},
			},
			httpLabels,
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "Size of HTTP responses in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			httpLabels,
		),
		ActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_connections",
				Help: "Number of active connections",
			},
		),

		TasksTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tasks_total",
				Help: "Total number of tasks in the system",
			},
		),
		TasksCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasks_created_total",
				Help: "Total number of tasks created",
			},
			[]string{"status"},
		),
		TasksUpdated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tasks_updated_total",
				Help: "Total number of tasks updated",
			},
		),
		TasksDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tasks_deleted_total",
				Help: "Total number of tasks deleted",
			},
		),
		TasksCompletedRatio: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tasks_completed_ratio",
				Help: "Ratio of completed tasks to total tasks",
			},
		),

		DatabaseOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "database_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation", "status"},
		),
		DatabaseErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_errors_total",
				Help: "Total number of database errors",
			},
			[]string{"operation", "error_type"},
		),
		ApplicationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "application_errors_total",
				Help: "Total number of application errors",
			},
			[]string{"error_type", "endpoint"},
		),
	}
}

// Gatherer нужен для тестов и для promhttp.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler отдаёт снимок в текстовом формате экспозиции.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) ObserveDBOperation(operation, status string, d time.Duration) {
	r.DatabaseOperationDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

func (r *Registry) DatabaseError(operation, errorType string) {
	r.DatabaseErrors.WithLabelValues(operation, errorType).Inc()
}

func (r *Registry) ApplicationError(errorType, endpoint string) {
	r.ApplicationErrors.WithLabelValues(errorType, endpoint).Inc()
}

// SetTaskStats перезаписывает текущие значения, а не накапливает их.
func (r *Registry) SetTaskStats(total int, completedRatio float64) {
	r.TasksTotal.Set(float64(total))
	r.TasksCompletedRatio.Set(completedRatio)
}

func (r *Registry) ObserveHTTPRequest(method, route string, code int, d time.Duration, size int) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"code":   strconv.Itoa(code),
	}
	r.HTTPRequestsTotal.With(labels).Inc()
	r.HTTPRequestDuration.With(labels).Observe(d.Seconds())
	if size > 0 {
		r.HTTPResponseSize.With(labels).Observe(float64(size))
	}
}
