package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Output formats understood by Report.Encode.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

// Report is the result of a successful run.
type Report struct {
	RunID  string        `json:"run_id" yaml:"run_id"`
	Qubits []QubitReport `json:"qubits" yaml:"qubits"`
}

// QubitReport is the final state of one qubit. Average and the measurement
// metadata are only present if the qubit was sampled since the last
// reset-averaging.
type QubitReport struct {
	Index   int            `json:"index" yaml:"index"`
	Value   int            `json:"value" yaml:"value"`
	Samples uint64         `json:"samples" yaml:"samples"`
	Average *float64       `json:"average,omitempty" yaml:"average,omitempty"`
	Raw     *int           `json:"raw,omitempty" yaml:"raw,omitempty"`
	JSON    map[string]any `json:"json,omitempty" yaml:"json,omitempty"`
	Binary  [][]byte       `json:"binary,omitempty" yaml:"binary,omitempty"`
}

// Encode writes the report to w in the given format.
func (r *Report) Encode(w io.Writer, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(r), "encode json report")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return errors.Wrap(err, "encode yaml report")
		}
		return errors.Wrap(enc.Close(), "encode yaml report")
	case FormatText:
		_, err := fmt.Fprintln(w, renderReport(r))
		return errors.Wrap(err, "write text report")
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}
