package gogsapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespaceConstant         = "gogsctl"
	metricsSubsystemConstant         = "api"
	requestsMetricNameConstant       = "requests_total"
	requestsMetricHelpConstant       = "Total Gogs API requests."
	durationMetricNameConstant       = "request_duration_seconds"
	durationMetricHelpConstant       = "Gogs API request duration in seconds."
	operationLabelConstant           = "operation"
	methodLabelConstant              = "method"
	statusLabelConstant              = "status"
	transportFailureStatusLabelConst = "transport_error"
)

// Metrics records request counts and latencies per API operation.
type Metrics struct {
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewMetrics creates request collectors and registers them with registerer.
// Collectors already registered on the same registerer are reused.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespaceConstant,
			Subsystem: metricsSubsystemConstant,
			Name:      requestsMetricNameConstant,
			Help:      requestsMetricHelpConstant,
		},
		[]string{operationLabelConstant, methodLabelConstant, statusLabelConstant},
	)
	durations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespaceConstant,
			Subsystem: metricsSubsystemConstant,
			Name:      durationMetricNameConstant,
			Help:      durationMetricHelpConstant,
			Buckets:   prometheus.DefBuckets,
		},
		[]string{operationLabelConstant, methodLabelConstant},
	)

	if registerer == nil {
		return &Metrics{requests: requests, durations: durations}, nil
	}

	registeredRequests, requestsError := registerCollector(registerer, requests)
	if requestsError != nil {
		return nil, requestsError
	}
	registeredDurations, durationsError := registerCollector(registerer, durations)
	if durationsError != nil {
		return nil, durationsError
	}

	return &Metrics{requests: registeredRequests, durations: registeredDurations}, nil
}

// ObserveResponse records a request that produced a response.
func (metrics *Metrics) ObserveResponse(operation OperationName, method Method, statusCode int, duration time.Duration) {
	metrics.observe(operation, method, strconv.Itoa(statusCode), duration)
}

// ObserveFailure records a request that failed before a response was decoded.
func (metrics *Metrics) ObserveFailure(operation OperationName, method Method, duration time.Duration) {
	metrics.observe(operation, method, transportFailureStatusLabelConst, duration)
}

func (metrics *Metrics) observe(operation OperationName, method Method, statusLabel string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.requests.WithLabelValues(string(operation), string(method), statusLabel).Inc()
	metrics.durations.WithLabelValues(string(operation), string(method)).Observe(duration.Seconds())
}

// WriteTextfile exports everything gathered by gatherer in the node exporter textfile format.
func WriteTextfile(filePath string, gatherer prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(filePath, gatherer)
}

func registerCollector[CollectorType prometheus.Collector](registerer prometheus.Registerer, collector CollectorType) (CollectorType, error) {
	registrationError := registerer.Register(collector)
	if registrationError == nil {
		return collector, nil
	}
	var alreadyRegistered prometheus.AlreadyRegisteredError
	if errors.As(registrationError, &alreadyRegistered) {
		if existing, matches := alreadyRegistered.ExistingCollector.(CollectorType); matches {
			return existing, nil
		}
	}
	var zero CollectorType
	return zero, registrationError
}
