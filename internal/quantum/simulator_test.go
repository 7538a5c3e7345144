package quantum_test

import (
	"math"
	"testing"

	"qarena-service/internal/quantum"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestRunEmptyCircuit(t *testing.T) {
	sim := quantum.NewStatevectorSimulator()

	probs, err := sim.Run(2, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(probs) != 1 || !almostEqual(probs["00"], 1.0) {
		t.Fatalf("expected |00> with probability 1, got %v", probs)
	}
}

func TestRunBellState(t *testing.T) {
	sim := quantum.NewStatevectorSimulator()

	probs, err := sim.Run(2, []quantum.Operation{
		{Gate: "H", Qubits: []int{0}},
		{Gate: "CNOT", Qubits: []int{0, 1}},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(probs) != 2 {
		t.Fatalf("expected two outcomes, got %v", probs)
	}
	if !almostEqual(probs["00"], 0.5) || !almostEqual(probs["11"], 0.5) {
		t.Fatalf("expected 50/50 on 00 and 11, got %v", probs)
	}
}

func TestRunXFlipsQubit(t *testing.T) {
	sim := quantum.NewStatevectorSimulator()

	probs, err := sim.Run(2, []quantum.Operation{
		{Gate: "X", Qubits: []int{1}},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !almostEqual(probs["10"], 1.0) {
		t.Fatalf("expected |10> with probability 1, got %v", probs)
	}
}

func TestRunDeterministic(t *testing.T) {
	sim := quantum.NewStatevectorSimulator()
	ops := []quantum.Operation{
		{Gate: "H", Qubits: []int{0}},
		{Gate: "T", Qubits: []int{0}},
		{Gate: "CNOT", Qubits: []int{0, 1}},
		{Gate: "RY", Qubits: []int{1}, Params: []float64{math.Pi / 3}},
	}

	first, err := sim.Run(2, ops)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	second, err := sim.Run(2, ops)
	if err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("distributions differ: %v vs %v", first, second)
	}
	for label, p := range first {
		if !almostEqual(second[label], p) {
			t.Fatalf("label %s differs: %v vs %v", label, p, second[label])
		}
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	sim := quantum.NewStatevectorSimulator()

	if _, err := sim.Run(0, nil); err == nil {
		t.Fatal("expected error for zero qubits")
	}
	if _, err := sim.Run(2, []quantum.Operation{{Gate: "H", Qubits: []int{5}}}); err == nil {
		t.Fatal("expected error for out-of-range qubit")
	}
	if _, err := sim.Run(2, []quantum.Operation{{Gate: "WARP", Qubits: []int{0}}}); err == nil {
		t.Fatal("expected error for unknown gate")
	}
	if _, err := sim.Run(2, []quantum.Operation{{Gate: "CNOT", Qubits: []int{1, 1}}}); err == nil {
		t.Fatal("expected error for duplicate qubits")
	}
}
