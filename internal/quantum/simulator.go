package quantum

import (
	"fmt"
	"math"
	"math/cmplx"
	"strconv"
	"strings"
)

// Operation is one gate application in an ordered circuit.
type Operation struct {
	Gate   string    `json:"gate"`
	Qubits []int     `json:"qubits"`
	Params []float64 `json:"params,omitempty"`
}

// Simulator runs a circuit and returns the outcome probability distribution,
// keyed by bitstring label (qubit 0 is the least significant bit). It must be
// pure and deterministic for a fixed operation sequence.
type Simulator interface {
	Run(numQubits int, operations []Operation) (map[string]float64, error)
}

// StatevectorSimulator is an exact in-process simulator. Exact amplitudes
// rather than sampled shots, so resolve results are reproducible.
type StatevectorSimulator struct{}

func NewStatevectorSimulator() *StatevectorSimulator {
	return &StatevectorSimulator{}
}

const maxQubits = 12

var (
	invSqrt2 = complex(1/math.Sqrt2, 0)

	gateX = [2][2]complex128{{0, 1}, {1, 0}}
	gateY = [2][2]complex128{{0, complex(0, -1)}, {complex(0, 1), 0}}
	gateZ = [2][2]complex128{{1, 0}, {0, -1}}
	gateH = [2][2]complex128{{invSqrt2, invSqrt2}, {invSqrt2, -invSqrt2}}
	gateS = [2][2]complex128{{1, 0}, {0, complex(0, 1)}}
	gateT = [2][2]complex128{{1, 0}, {0, cmplx.Exp(complex(0, math.Pi/4))}}
)

func (s *StatevectorSimulator) Run(numQubits int, operations []Operation) (map[string]float64, error) {
	if numQubits <= 0 || numQubits > maxQubits {
		return nil, fmt.Errorf("unsupported qubit count %d", numQubits)
	}

	state := make([]complex128, 1<<numQubits)
	state[0] = 1

	for _, op := range operations {
		if err := validateQubits(numQubits, op); err != nil {
			return nil, err
		}
		gate := strings.ToUpper(op.Gate)
		switch gate {
		case "I":
		case "X":
			applySingle(state, op.Qubits[0], gateX)
		case "Y":
			applySingle(state, op.Qubits[0], gateY)
		case "Z":
			applySingle(state, op.Qubits[0], gateZ)
		case "H":
			applySingle(state, op.Qubits[0], gateH)
		case "S":
			applySingle(state, op.Qubits[0], gateS)
		case "T":
			applySingle(state, op.Qubits[0], gateT)
		case "RX", "RY", "RZ":
			if len(op.Params) < 1 {
				return nil, fmt.Errorf("gate %s requires an angle parameter", gate)
			}
			applySingle(state, op.Qubits[0], rotation(gate, op.Params[0]))
		case "CNOT", "CX":
			applyCNOT(state, op.Qubits[0], op.Qubits[1])
		case "CZ":
			applyCZ(state, op.Qubits[0], op.Qubits[1])
		case "SWAP":
			applyCNOT(state, op.Qubits[0], op.Qubits[1])
			applyCNOT(state, op.Qubits[1], op.Qubits[0])
			applyCNOT(state, op.Qubits[0], op.Qubits[1])
		default:
			return nil, fmt.Errorf("unknown gate: %s", op.Gate)
		}
	}

	return probabilities(state, numQubits), nil
}

func validateQubits(numQubits int, op Operation) error {
	arity := 1
	switch strings.ToUpper(op.Gate) {
	case "CNOT", "CX", "CZ", "SWAP":
		arity = 2
	}
	if len(op.Qubits) < arity {
		return fmt.Errorf("gate %s requires %d qubits", op.Gate, arity)
	}
	for _, q := range op.Qubits[:arity] {
		if q < 0 || q >= numQubits {
			return fmt.Errorf("qubit %d out of range", q)
		}
	}
	if arity == 2 && op.Qubits[0] == op.Qubits[1] {
		return fmt.Errorf("gate %s requires distinct qubits", op.Gate)
	}
	return nil
}

func rotation(gate string, theta float64) [2][2]complex128 {
	cos := complex(math.Cos(theta/2), 0)
	sin := math.Sin(theta / 2)
	switch gate {
	case "RX":
		return [2][2]complex128{{cos, complex(0, -sin)}, {complex(0, -sin), cos}}
	case "RY":
		return [2][2]complex128{{cos, complex(-sin, 0)}, {complex(sin, 0), cos}}
	default: // RZ
		return [2][2]complex128{
			{cmplx.Exp(complex(0, -theta/2)), 0},
			{0, cmplx.Exp(complex(0, theta/2))},
		}
	}
}

func applySingle(state []complex128, target int, m [2][2]complex128) {
	mask := 1 << target
	for i := range state {
		if i&mask != 0 {
			continue
		}
		j := i | mask
		a, b := state[i], state[j]
		state[i] = m[0][0]*a + m[0][1]*b
		state[j] = m[1][0]*a + m[1][1]*b
	}
}

func applyCNOT(state []complex128, control, target int) {
	cMask := 1 << control
	tMask := 1 << target
	for i := range state {
		if i&cMask != 0 && i&tMask == 0 {
			j := i | tMask
			state[i], state[j] = state[j], state[i]
		}
	}
}

func applyCZ(state []complex128, control, target int) {
	cMask := 1 << control
	tMask := 1 << target
	for i := range state {
		if i&cMask != 0 && i&tMask != 0 {
			state[i] = -state[i]
		}
	}
}

func probabilities(state []complex128, numQubits int) map[string]float64 {
	probs := make(map[string]float64)
	for i, amp := range state {
		p := real(amp)*real(amp) + imag(amp)*imag(amp)
		if p < 1e-9 {
			continue
		}
		probs[bitstring(i, numQubits)] = p
	}
	return probs
}

func bitstring(value, numQubits int) string {
	s := strconv.FormatInt(int64(value), 2)
	if pad := numQubits - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return s
}
