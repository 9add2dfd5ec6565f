package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupGate(t *testing.T) {
	tests := []struct {
		ident      string
		arity      int
		needsAngle bool
		gate       PredefinedGate
	}{
		{"h", 1, false, GateH},
		{"H", 1, false, GateH},
		{"x90", 1, false, GateRX90},
		{"mY90", 1, false, GateRYM90},
		{"rz", 1, true, GateRZ},
		{"cnot", 2, false, GateX},
		{"CZ", 2, false, GateZ},
		{"swap", 2, false, GateSwap},
		{"cr", 2, true, GatePhase},
		{"crk", 2, true, GatePhase},
		{"toffoli", 3, false, GateX},
	}
	for _, tt := range tests {
		t.Run(tt.ident, func(t *testing.T) {
			d, ok := lookupGate(tt.ident)
			require.True(t, ok)
			assert.Equal(t, tt.arity, d.Arity)
			assert.Equal(t, tt.needsAngle, d.NeedsAngle)
			assert.Equal(t, tt.gate, d.Gate)
		})
	}

	for _, ident := range []string{"u3", "measure", "prep_z", ""} {
		_, ok := lookupGate(ident)
		assert.False(t, ok, ident)
	}
}

func TestCatalogConsistency(t *testing.T) {
	seen := make(map[string]bool)
	for _, cat := range gateCatalog {
		for _, e := range cat.entries {
			for _, id := range e.idents {
				assert.False(t, seen[id], "duplicate identifier %q", id)
				seen[id] = true

				_, builtin := resolveOperation(id)
				assert.True(t, builtin, id)
			}

			// Every example must parse and resolve to the entry it documents.
			in := parseInstruction(t, 3, e.example)
			d, ok := lookupGate(in.Name)
			require.True(t, ok, e.example)
			assert.Equal(t, e.desc, d, e.example)
			assert.Len(t, in.Qubits, d.Arity, e.example)
			assert.Equal(t, d.NeedsAngle, in.HasAngle, e.example)
			assert.True(t, strings.HasPrefix(e.example, e.idents[0]), e.example)
		}
	}
	assert.Len(t, gateIndex, len(seen))
}
