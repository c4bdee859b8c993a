package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objectfs/s3backend/pkg/errors"
)

// Collector records storage engine metrics into a private Prometheus registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry

	// Prometheus metrics
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationSize     *prometheus.HistogramVec
	droppedCounter    *prometheus.CounterVec
	dispatchFailures  *prometheus.CounterVec
	errorCounter      *prometheus.CounterVec

	// Internal tracking
	operations map[string]*OperationMetrics
	dropped    map[string]int64
	started    time.Time
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
}

// OperationMetrics tracks metrics for a specific operation type
type OperationMetrics struct {
	Count         int64         `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	TotalSize     int64         `json:"total_size"`
	Errors        int64         `json:"errors"`
	LastOperation time.Time     `json:"last_operation"`
	AvgDuration   time.Duration `json:"avg_duration"`
}

// Reasons an entry is dropped from an enumeration.
const (
	DropTranslation = "translation"
	DropHead        = "head"
	DropMetadata    = "metadata"
	DropTimestamp   = "timestamp"
)

// NewDefaultConfig returns the configuration used when none is given
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Namespace: "s3backend",
		Labels:    make(map[string]string),
	}
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	collector := &Collector{
		config:     config,
		registry:   prometheus.NewRegistry(),
		operations: make(map[string]*OperationMetrics),
		dropped:    make(map[string]int64),
		started:    time.Now(),
	}

	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

func (c *Collector) enabled() bool {
	return c != nil && c.config != nil && c.config.Enabled && c.registry != nil
}

// RecordOperation records an operation with its metrics
func (c *Collector) RecordOperation(operation string, duration time.Duration, size int64, success bool) {
	if !c.enabled() {
		return
	}

	c.mu.Lock()
	metrics, exists := c.operations[operation]
	if !exists {
		metrics = &OperationMetrics{}
		c.operations[operation] = metrics
	}
	metrics.Count++
	metrics.TotalDuration += duration
	metrics.TotalSize += size
	if !success {
		metrics.Errors++
	}
	metrics.LastOperation = time.Now()
	metrics.AvgDuration = time.Duration(int64(metrics.TotalDuration) / metrics.Count)
	c.mu.Unlock()

	status := "success"
	if !success {
		status = "error"
	}
	c.operationCounter.WithLabelValues(operation, status).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if size > 0 {
		c.operationSize.WithLabelValues(operation).Observe(float64(size))
	}
}

// RecordError counts err under its error code. Dispatch failures are also
// counted separately.
func (c *Collector) RecordError(operation string, err error) {
	if !c.enabled() || err == nil {
		return
	}

	c.errorCounter.WithLabelValues(operation, string(errors.CodeOf(err))).Inc()

	if errors.IsCode(err, errors.ErrCodeDispatchFailure) {
		c.dispatchFailures.WithLabelValues(operation).Inc()
	}
}

// RecordEnumerationDropped counts an entry left out of an enumeration
func (c *Collector) RecordEnumerationDropped(reason string) {
	if !c.enabled() {
		return
	}

	c.mu.Lock()
	c.dropped[reason]++
	c.mu.Unlock()

	c.droppedCounter.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	if !c.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the private registry, or nil when disabled
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Operation returns a snapshot of one operation's counters
func (c *Collector) Operation(operation string) OperationMetrics {
	if !c.enabled() {
		return OperationMetrics{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.operations[operation]; ok {
		return *m
	}
	return OperationMetrics{}
}

// Dropped returns how many enumeration entries were dropped for reason
func (c *Collector) Dropped(reason string) int64 {
	if !c.enabled() {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped[reason]
}

// GetMetrics returns current metrics
func (c *Collector) GetMetrics() map[string]any {
	metrics := make(map[string]any)
	if !c.enabled() {
		return metrics
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	operations := make(map[string]OperationMetrics, len(c.operations))
	for k, v := range c.operations {
		operations[k] = *v
	}
	dropped := make(map[string]int64, len(c.dropped))
	for k, v := range c.dropped {
		dropped[k] = v
	}

	metrics["operations"] = operations
	metrics["enumeration_dropped"] = dropped
	metrics["started"] = c.started
	metrics["uptime"] = time.Since(c.started).String()

	return metrics
}

// Helper methods

func (c *Collector) initMetrics() {
	labels := prometheus.Labels(c.config.Labels)

	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of storage operations",
			ConstLabels: labels,
		},
		[]string{"operation", "status"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Duration of storage operations in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			ConstLabels: labels,
		},
		[]string{"operation"},
	)

	c.operationSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operation_size_bytes",
			Help:        "Payload size of storage operations in bytes",
			Buckets:     prometheus.ExponentialBuckets(64, 4, 12), // 64B to ~256MB
			ConstLabels: labels,
		},
		[]string{"operation"},
	)

	c.droppedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "enumeration_dropped_total",
			Help:        "Entries dropped while enumerating a bucket",
			ConstLabels: labels,
		},
		[]string{"reason"},
	)

	c.dispatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "dispatch_failures_total",
			Help:        "Work the executor refused or could not complete",
			ConstLabels: labels,
		},
		[]string{"operation"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "errors_total",
			Help:        "Total number of errors by code",
			ConstLabels: labels,
		},
		[]string{"operation", "code"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.operationSize,
		c.droppedCounter,
		c.dispatchFailures,
		c.errorCounter,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}
