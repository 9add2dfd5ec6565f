package main

import "strings"

// GateDescriptor describes how a catalog instruction maps onto executor
// gate requests.
type GateDescriptor struct {
	Arity      int // number of qubit roles
	NeedsAngle bool
	Gate       PredefinedGate
}

// catalogEntry is a single cQASM gate in the catalog.
type catalogEntry struct {
	name    string
	idents  []string // cQASM spellings; all share one descriptor
	symbol  string
	desc    GateDescriptor
	example string
}

// catalogCategory groups related gates for display.
type catalogCategory struct {
	name    string
	entries []catalogEntry
}

func single(g PredefinedGate) GateDescriptor  { return GateDescriptor{Arity: 1, Gate: g} }
func rotation(g PredefinedGate) GateDescriptor { return GateDescriptor{Arity: 1, NeedsAngle: true, Gate: g} }

// gateCatalog lists every gate the engine can issue directly.
var gateCatalog = []catalogCategory{
	{
		name: "Single Qubit",
		entries: []catalogEntry{
			{name: "Identity", idents: []string{"i"}, symbol: "I", desc: single(GateI), example: "i q[0]"},
			{name: "Pauli-X", idents: []string{"x"}, symbol: "X", desc: single(GateX), example: "x q[0]"},
			{name: "Pauli-Y", idents: []string{"y"}, symbol: "Y", desc: single(GateY), example: "y q[0]"},
			{name: "Pauli-Z", idents: []string{"z"}, symbol: "Z", desc: single(GateZ), example: "z q[0]"},
			{name: "Hadamard", idents: []string{"h"}, symbol: "H", desc: single(GateH), example: "h q[0:2]"},
			{name: "Phase (S)", idents: []string{"s"}, symbol: "S", desc: single(GateS), example: "s q[0]"},
			{name: "Phase Dagger (S†)", idents: []string{"sdag"}, symbol: "S†", desc: single(GateSdag), example: "sdag q[0]"},
			{name: "T Gate", idents: []string{"t"}, symbol: "T", desc: single(GateT), example: "t q[0]"},
			{name: "T Dagger (T†)", idents: []string{"tdag"}, symbol: "T†", desc: single(GateTdag), example: "tdag q[0]"},
			{name: "X +90°", idents: []string{"x90"}, symbol: "X90", desc: single(GateRX90), example: "x90 q[0]"},
			{name: "X -90°", idents: []string{"mx90"}, symbol: "mX90", desc: single(GateRXM90), example: "mx90 q[0]"},
			{name: "Y +90°", idents: []string{"y90"}, symbol: "Y90", desc: single(GateRY90), example: "y90 q[0]"},
			{name: "Y -90°", idents: []string{"my90"}, symbol: "mY90", desc: single(GateRYM90), example: "my90 q[0]"},
		},
	},
	{
		name: "Rotation",
		entries: []catalogEntry{
			{name: "Rotate X", idents: []string{"rx"}, symbol: "RX", desc: rotation(GateRX), example: "rx q[0], pi/2"},
			{name: "Rotate Y", idents: []string{"ry"}, symbol: "RY", desc: rotation(GateRY), example: "ry q[0], pi/2"},
			{name: "Rotate Z", idents: []string{"rz"}, symbol: "RZ", desc: rotation(GateRZ), example: "rz q[0], pi/2"},
		},
	},
	{
		name: "Multi Qubit",
		entries: []catalogEntry{
			{name: "Controlled Phase", idents: []string{"cr", "crk"}, symbol: "●─R", desc: GateDescriptor{Arity: 2, NeedsAngle: true, Gate: GatePhase}, example: "cr q[0], q[1], pi/4"},
			{name: "SWAP", idents: []string{"swap"}, symbol: "×─×", desc: GateDescriptor{Arity: 2, Gate: GateSwap}, example: "swap q[0], q[1]"},
			{name: "CNOT", idents: []string{"cnot"}, symbol: "●─⊕", desc: GateDescriptor{Arity: 2, Gate: GateX}, example: "cnot q[0], q[1]"},
			{name: "Controlled-Z", idents: []string{"cz"}, symbol: "●─●", desc: GateDescriptor{Arity: 2, Gate: GateZ}, example: "cz q[0], q[1]"},
			{name: "Toffoli", idents: []string{"toffoli"}, symbol: "●─●─⊕", desc: GateDescriptor{Arity: 3, Gate: GateX}, example: "toffoli q[0], q[1], q[2]"},
		},
	},
}

var gateIndex = buildGateIndex(gateCatalog)

func buildGateIndex(cats []catalogCategory) map[string]GateDescriptor {
	idx := make(map[string]GateDescriptor)
	for _, cat := range cats {
		for _, e := range cat.entries {
			for _, id := range e.idents {
				idx[id] = e.desc
			}
		}
	}
	return idx
}

// lookupGate returns the catalog descriptor for a cQASM identifier.
func lookupGate(ident string) (GateDescriptor, bool) {
	d, ok := gateIndex[strings.ToLower(ident)]
	return d, ok
}
