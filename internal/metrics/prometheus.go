package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration продолжительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// CyclesTotal завершенные циклы классификации
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classification_cycles_total",
			Help: "Total number of classification cycles",
		},
		[]string{"status"},
	)

	// CycleDuration длительность цикла классификации
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classification_cycle_duration_seconds",
			Help:    "Full pipeline cycle duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// ProcessesClassified классифицированные процессы
	ProcessesClassified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "processes_classified_total",
			Help: "Total number of processes classified",
		},
	)

	// AnomaliesDetected обнаруженные аномалии по источнику
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Total number of anomalies detected",
		},
		[]string{"source"},
	)

	// StoreOperations операции хранилища меток
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "label_store_operations_total",
			Help: "Total number of label store operations",
		},
		[]string{"operation", "status"},
	)

	// LabeledProcesses число процессов с пользовательскими метками
	LabeledProcesses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labeled_processes",
			Help: "Number of processes with manual labels",
		},
	)

	// CategoryProcesses число процессов по категориям в последнем цикле
	CategoryProcesses = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "category_processes",
			Help: "Processes per category in the last cycle",
		},
		[]string{"category"},
	)
)
