package main

import (
	"fmt"

	"go.uber.org/zap"
)

// ClassicalState is the bit register and the per-qubit measurement
// statistics of one run. Both have one entry per qubit.
type ClassicalState struct {
	Bits  []bool
	Stats []MeasurementStat
}

// NewClassicalState returns a state for n qubits with all bits cleared.
func NewClassicalState(n int) *ClassicalState {
	return &ClassicalState{
		Bits:  make([]bool, n),
		Stats: make([]MeasurementStat, n),
	}
}

// Record stores a measurement outcome for qubit i.
func (s *ClassicalState) Record(i int, value bool, data *MeasurementData) {
	s.Bits[i] = value
	s.Stats[i].Add(value, data)
}

// ResetAveraging clears all measurement statistics. The bit register is
// left untouched.
func (s *ClassicalState) ResetAveraging() {
	for i := range s.Stats {
		s.Stats[i].Reset()
	}
}

// Flip inverts the given bits.
func (s *ClassicalState) Flip(idxs []int) {
	for _, i := range idxs {
		s.Bits[i] = !s.Bits[i]
	}
}

// AllSet reports whether every bit in idxs is set.
func (s *ClassicalState) AllSet(idxs []int) bool {
	for _, i := range idxs {
		if !s.Bits[i] {
			return false
		}
	}
	return true
}

// DisplayEntry is one line of display_binary output.
type DisplayEntry struct {
	Index       int
	Bit         bool
	Samples     uint64
	Probability float64
	Latest      bool
}

func (e DisplayEntry) String() string {
	if e.Samples == 0 {
		return fmt.Sprintf("b%d: %d; q%d: no data", e.Index, b2i(e.Bit), e.Index)
	}
	return fmt.Sprintf("b%d: %d; q%d: %.6f (%d samples, latest = %d)",
		e.Index, b2i(e.Bit), e.Index, e.Probability, e.Samples, b2i(e.Latest))
}

// Display returns display entries for the given bits.
func (s *ClassicalState) Display(idxs []int) []DisplayEntry {
	entries := make([]DisplayEntry, 0, len(idxs))
	for _, i := range idxs {
		entries = append(entries, DisplayEntry{
			Index:       i,
			Bit:         s.Bits[i],
			Samples:     s.Stats[i].Samples(),
			Probability: s.Stats[i].Probability(),
			Latest:      s.Stats[i].Latest(),
		})
	}
	return entries
}

// diagnostics emits run-scoped warnings. Warnings issued through once are
// shown a single time per run.
type diagnostics struct {
	logger *zap.Logger
	shown  map[string]struct{}
}

func newDiagnostics(logger *zap.Logger) *diagnostics {
	return &diagnostics{logger: logger, shown: make(map[string]struct{})}
}

func (d *diagnostics) warn(msg string, fields ...zap.Field) {
	d.logger.Warn(msg, fields...)
}

func (d *diagnostics) once(key, msg string, fields ...zap.Field) {
	if _, ok := d.shown[key]; ok {
		return
	}
	d.shown[key] = struct{}{}
	d.logger.Warn(msg, fields...)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func indices(n int) []int {
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}
