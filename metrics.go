package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	metricsNamespace = "cqrun"
	engineSubsystem  = "engine"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: engineSubsystem,
			Name:      "runs_total",
			Help:      "Completed runs, by final status.",
		},
		[]string{"status"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: engineSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a run.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
	)

	instructionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: engineSubsystem,
			Name:      "instructions_total",
			Help:      "Dispatched instructions, by operation kind.",
		},
		[]string{"kind"},
	)

	skippedInstructions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: engineSubsystem,
			Name:      "skipped_instructions_total",
			Help:      "Conditional instructions skipped because a condition bit was clear.",
		},
	)

	measurementOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: engineSubsystem,
			Name:      "measurement_outcomes_total",
			Help:      "Measurement results read back from the executor, by outcome.",
		},
		[]string{"outcome"},
	)

	executorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: engineSubsystem,
			Name:      "executor_requests_total",
			Help:      "Calls made into the executor, by call and result.",
		},
		[]string{"call", "result"},
	)

	logicalTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: engineSubsystem,
			Name:      "logical_ticks_total",
			Help:      "Logical time units advanced on the executor.",
		},
	)
)

// instrumentedExecutor counts and traces every call into the wrapped
// executor.
type instrumentedExecutor struct {
	next   Executor
	logger *zap.Logger
}

// InstrumentExecutor wraps exec so that its calls are recorded in the
// executor metrics and logged at debug level.
func InstrumentExecutor(exec Executor, logger *zap.Logger) Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedExecutor{next: exec, logger: logger.Named("executor")}
}

func (e *instrumentedExecutor) observe(call string, err error, fields ...zap.Field) {
	result := "ok"
	if err != nil {
		result = "error"
		fields = append(fields, zap.Error(err))
	}
	executorRequests.WithLabelValues(call, result).Inc()
	e.logger.Debug(call, fields...)
}

func (e *instrumentedExecutor) Allocate(n int) ([]QubitRef, error) {
	refs, err := e.next.Allocate(n)
	e.observe("allocate", err, zap.Int("count", n))
	return refs, err
}

func (e *instrumentedExecutor) Free(q QubitRef) error {
	err := e.next.Free(q)
	e.observe("free", err, zap.Uint64("qubit", uint64(q)))
	return err
}

func (e *instrumentedExecutor) Gate(req GateRequest) error {
	err := e.next.Gate(req)
	e.observe("gate", err, zap.Stringer("request", req))
	return err
}

func (e *instrumentedExecutor) Advance(ticks uint64) error {
	err := e.next.Advance(ticks)
	if err == nil {
		logicalTicks.Add(float64(ticks))
	}
	e.observe("advance", err, zap.Uint64("ticks", ticks))
	return err
}

func (e *instrumentedExecutor) Measurement(q QubitRef) (MeasurementResult, error) {
	res, err := e.next.Measurement(q)
	e.observe("measurement", err, zap.Uint64("qubit", uint64(q)), zap.Stringer("value", res.Value))
	return res, err
}

// metricsServer exposes the default registry over HTTP.
type metricsServer struct {
	srv    *http.Server
	logger *zap.Logger
}

func startMetricsServer(addr string, logger *zap.Logger) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	m := &metricsServer{
		srv:    &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
	go func() {
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("address", addr))
	return m
}

func (m *metricsServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics server shutdown", zap.Error(err))
	}
}
