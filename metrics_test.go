package main

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestInstrumentExecutorCountsCalls(t *testing.T) {
	gateOK := executorRequests.WithLabelValues("gate", "ok")
	gateErr := executorRequests.WithLabelValues("gate", "error")
	beforeOK := counterValue(t, gateOK)
	beforeErr := counterValue(t, gateErr)
	beforeTicks := counterValue(t, logicalTicks)

	core, logs := observer.New(zapcore.DebugLevel)
	sim := NewSimulator(SimulatorConfig{Seed: 1, MaxQubits: 2})
	exec := InstrumentExecutor(sim, zap.New(core))

	refs, err := exec.Allocate(1)
	require.NoError(t, err)
	require.NoError(t, exec.Gate(gate(GateH, refs[0])))
	require.NoError(t, exec.Gate(gate(GateX, refs[0])))
	require.Error(t, exec.Gate(gate(GateX, 77)))
	require.NoError(t, exec.Advance(4))
	require.NoError(t, exec.Free(refs[0]))

	assert.Equal(t, 2.0, counterValue(t, gateOK)-beforeOK)
	assert.Equal(t, 1.0, counterValue(t, gateErr)-beforeErr)
	assert.Equal(t, 4.0, counterValue(t, logicalTicks)-beforeTicks)
	assert.Equal(t, uint64(4), sim.Cycle(), "calls reach the wrapped executor")

	assert.Equal(t, 3, logs.FilterMessage("gate").Len())
	assert.Equal(t, 1, logs.FilterMessage("gate").FilterFieldKey("error").Len())
	assert.Equal(t, 1, logs.FilterMessage("allocate").Len())
}

func TestInstrumentExecutorPassesErrors(t *testing.T) {
	m := &mockExecutor{}
	boom := errors.New("boom")
	m.On("Measurement", QubitRef(1)).Return(MeasurementResult{}, boom)
	m.On("Advance", uint64(2)).Return(boom)

	exec := InstrumentExecutor(m, nil)
	_, err := exec.Measurement(1)
	assert.Equal(t, boom, err)

	before := counterValue(t, logicalTicks)
	assert.Equal(t, boom, exec.Advance(2))
	assert.Equal(t, before, counterValue(t, logicalTicks), "failed advances are not counted")
}

func TestRunMetrics(t *testing.T) {
	success := runsTotal.WithLabelValues("success")
	failed := runsTotal.WithLabelValues("error")
	skipped := skippedInstructions
	gates := instructionsTotal.WithLabelValues("gate")
	s0, f0, k0, g0 := counterValue(t, success), counterValue(t, failed), counterValue(t, skipped), counterValue(t, gates)

	sim := NewSimulator(SimulatorConfig{Seed: 1, MaxQubits: 2})
	_, err := Run(sim, mustParse(t, 1, "x q[0]\nc-x b[0], q[0]"), RunInput{}, Options{})
	require.NoError(t, err)
	_, err = Run(sim, mustParse(t, 1, "nope q[0]"), RunInput{}, Options{})
	require.Error(t, err)

	assert.Equal(t, 1.0, counterValue(t, success)-s0)
	assert.Equal(t, 1.0, counterValue(t, failed)-f0)
	assert.Equal(t, 1.0, counterValue(t, skipped)-k0)
	assert.Equal(t, 1.0, counterValue(t, gates)-g0)
}
