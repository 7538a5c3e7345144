package room

import (
	"encoding/json"
	"time"

	"qarena-service/internal/quantum"
)

type Mode string

const (
	ModeTurnBased    Mode = "turn_based"
	ModeSimultaneous Mode = "simultaneous"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

const (
	MoveKindGate    = "place_gate"
	MoveKindAction  = "action"
	MoveKindMeasure = "measure"
)

// Config is the immutable per-room configuration, derived from the game
// catalogue row at match time.
type Config struct {
	GameID          int64
	GameSlug        string
	Mode            Mode
	RequiredPlayers int
	NumQubits       int
	TurnSeconds     int
	GraceSeconds    int
	WinThreshold    int
	Target          map[string]float64
}

// Participant seeds a player slot when the matchmaking queue spawns a room.
type Participant struct {
	PlayerID    int64
	DisplayName string
	SkillRating int
}

// MovePayload carries the mode-dependent content of a move. Gate fields are
// used in circuit play, ActionType/Data in generic turn play.
type MovePayload struct {
	Gate       string          `json:"gate,omitempty"`
	Qubit      int             `json:"qubit,omitempty"`
	Target     *int            `json:"target,omitempty"`
	Params     []float64       `json:"params,omitempty"`
	ActionType string          `json:"actionType,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Move is immutable once appended to the log.
type Move struct {
	PlayerID    int64       `json:"playerId,string"`
	Kind        string      `json:"kind"`
	Payload     MovePayload `json:"payload"`
	SubmittedAt time.Time   `json:"submittedAt"`
}

type PlayerState struct {
	PlayerID          int64      `json:"playerId,string"`
	DisplayName       string     `json:"displayName"`
	Connected         bool       `json:"connected"`
	Ready             bool       `json:"ready"`
	Score             int        `json:"score"`
	ReconnectDeadline *time.Time `json:"reconnectDeadline,omitempty"`
}

// Snapshot is the full authoritative state serialized at broadcast points.
// Reconnecting clients receive exactly this, rebuilt from the move log and
// current state, never a cached delta.
type Snapshot struct {
	RoomID           string        `json:"roomId"`
	GameSlug         string        `json:"gameSlug"`
	Mode             Mode          `json:"mode"`
	Status           Status        `json:"status"`
	Players          []PlayerState `json:"players"`
	TurnOrder        []int64       `json:"turnOrder,omitempty"`
	CurrentTurnIndex int           `json:"currentTurnIndex"`
	CurrentPlayerID  int64         `json:"currentPlayerId,string,omitempty"`
	TurnRemaining    int           `json:"turnRemaining"`
	TurnCount        int           `json:"turnCount"`
	MoveCount        int           `json:"moveCount"`
	Moves            []Move        `json:"moves"`
	WinnerID         string        `json:"winnerId"`
}

type OutgoingMessage struct {
	Type string      `json:"type"`
	Seq  int64       `json:"seq"`
	Data interface{} `json:"data"`
}

// Event is a named broadcast produced by the state machine. To limits
// delivery to a single player; zero means every subscriber.
type Event struct {
	Type string
	To   int64
	Data interface{}
}

type h map[string]interface{}

func gateOperations(moves []Move, playerID int64) []quantum.Operation {
	ops := make([]quantum.Operation, 0, len(moves))
	for _, mv := range moves {
		if mv.Kind != MoveKindGate {
			continue
		}
		if playerID != 0 && mv.PlayerID != playerID {
			continue
		}
		qubits := []int{mv.Payload.Qubit}
		if mv.Payload.Target != nil {
			qubits = append(qubits, *mv.Payload.Target)
		}
		ops = append(ops, quantum.Operation{
			Gate:   mv.Payload.Gate,
			Qubits: qubits,
			Params: mv.Payload.Params,
		})
	}
	return ops
}
