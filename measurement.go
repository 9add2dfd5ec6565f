package main

// noProbability is reported when a qubit has not been sampled.
const noProbability = -1.0

// MeasurementData is the metadata kept for the latest sample of a qubit.
// Raw is nil when the executor reported an undefined outcome.
type MeasurementData struct {
	Raw    *int
	JSON   map[string]any
	Binary [][]byte
}

// MeasurementStat averages the measurement outcomes of one qubit over time.
type MeasurementStat struct {
	total  uint64
	ones   uint64
	latest bool
	data   *MeasurementData
}

// Add records a sample.
func (m *MeasurementStat) Add(value bool, data *MeasurementData) {
	m.latest = value
	m.data = data
	m.total++
	if value {
		m.ones++
	}
}

// Probability returns the estimated probability of measuring one, or -1 if
// no samples were taken.
func (m *MeasurementStat) Probability() float64 {
	if m.total == 0 {
		return noProbability
	}
	return float64(m.ones) / float64(m.total)
}

// Samples returns the number of samples taken since the last reset.
func (m *MeasurementStat) Samples() uint64 { return m.total }

// Latest returns the most recent outcome.
func (m *MeasurementStat) Latest() bool { return m.latest }

// Data returns the metadata of the most recent sample, or nil.
func (m *MeasurementStat) Data() *MeasurementData { return m.data }

// Reset clears the averaging state.
func (m *MeasurementStat) Reset() {
	*m = MeasurementStat{}
}
