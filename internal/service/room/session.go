package room

import (
	"strconv"
	"time"

	"qarena-service/internal/quantum"
	appErr "qarena-service/pkg/errors"
)

// session is the authoritative state machine of one room. It is driven
// exclusively by the owning actor, one message at a time, so it needs no
// locking. Every method returns the events to broadcast; a returned error is
// a rejection reported only to the originating player and never mutates
// state.
type session struct {
	roomID string
	cfg    Config

	status    Status
	players   map[int64]*PlayerState
	joinOrder []int64

	turnOrder        []int64
	currentTurnIndex int
	turnRemaining    int
	turnCount        int

	moveLog  []Move
	winnerID int64

	sim quantum.Simulator
	now func() time.Time
}

func newSession(roomID string, cfg Config, participants []Participant, sim quantum.Simulator) *session {
	s := &session{
		roomID:  roomID,
		cfg:     cfg,
		status:  StatusWaiting,
		players: make(map[int64]*PlayerState, len(participants)),
		sim:     sim,
		now:     time.Now,
	}
	for _, p := range participants {
		s.players[p.PlayerID] = &PlayerState{
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
		}
		s.joinOrder = append(s.joinOrder, p.PlayerID)
	}
	return s
}

func (s *session) member(playerID int64) (*PlayerState, error) {
	p, ok := s.players[playerID]
	if !ok {
		return nil, appErr.ErrRoomAccessDenied
	}
	return p, nil
}

// attach marks a player's transport as live and hands them a full
// resynchronization snapshot.
func (s *session) attach(playerID int64) ([]Event, error) {
	p, err := s.member(playerID)
	if err != nil {
		return nil, err
	}

	rejoining := p.ReconnectDeadline != nil
	p.Connected = true
	p.ReconnectDeadline = nil

	events := make([]Event, 0, 2)
	if rejoining {
		events = append(events, Event{Type: "reconnected", Data: h{
			"playerId": strconv.FormatInt(playerID, 10),
		}})
	} else {
		events = append(events, Event{Type: "player_joined", Data: h{
			"playerId":    strconv.FormatInt(playerID, 10),
			"displayName": p.DisplayName,
		}})
	}
	events = append(events, Event{Type: "state", To: playerID, Data: s.snapshot()})
	return events, nil
}

// detach records a transport loss. The player keeps their seat and a
// reconnection grace window opens; the seat is released only by an explicit
// leave or by grace expiry.
func (s *session) detach(playerID int64) []Event {
	p, ok := s.players[playerID]
	if !ok || !p.Connected {
		return nil
	}
	p.Connected = false

	if s.status == StatusFinished {
		return nil
	}
	deadline := s.now().Add(time.Duration(s.cfg.GraceSeconds) * time.Second)
	p.ReconnectDeadline = &deadline
	return []Event{{Type: "player_disconnected", Data: h{
		"playerId":          strconv.FormatInt(playerID, 10),
		"reconnectDeadline": deadline.UnixMilli(),
	}}}
}

func (s *session) ready(playerID int64) ([]Event, error) {
	p, err := s.member(playerID)
	if err != nil {
		return nil, err
	}
	if s.status != StatusWaiting {
		return nil, appErr.ErrInvalidStatus
	}
	if p.Ready {
		return nil, nil
	}
	p.Ready = true

	events := []Event{{Type: "player_ready", Data: h{
		"playerId": strconv.FormatInt(playerID, 10),
	}}}
	if s.allReady() && len(s.players) >= s.cfg.RequiredPlayers {
		events = append(events, s.start()...)
	}
	return events, nil
}

func (s *session) allReady() bool {
	if len(s.players) == 0 {
		return false
	}
	for _, p := range s.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// start fires the waiting -> playing transition. Turn order is join order and
// is fixed from here on.
func (s *session) start() []Event {
	s.status = StatusPlaying
	s.turnCount = 1
	s.currentTurnIndex = 0
	s.turnRemaining = s.cfg.TurnSeconds
	if s.cfg.Mode == ModeTurnBased {
		s.turnOrder = append([]int64(nil), s.joinOrder...)
	}

	// A seat lost before the game started gets its grace window measured from
	// the start, so a long lobby wait never eats into it.
	for _, p := range s.players {
		if !p.Connected {
			deadline := s.now().Add(time.Duration(s.cfg.GraceSeconds) * time.Second)
			p.ReconnectDeadline = &deadline
		}
	}

	data := h{
		"gameSlug":    s.cfg.GameSlug,
		"mode":        s.cfg.Mode,
		"numQubits":   s.cfg.NumQubits,
		"turnSeconds": s.cfg.TurnSeconds,
		"deadline":    s.now().Add(time.Duration(s.cfg.TurnSeconds) * time.Second).UnixMilli(),
	}
	if len(s.turnOrder) > 0 {
		data["currentPlayerId"] = strconv.FormatInt(s.currentPlayerID(), 10)
	}
	return []Event{{Type: "game_started", Data: data}}
}

func (s *session) currentPlayerID() int64 {
	if len(s.turnOrder) == 0 {
		return 0
	}
	return s.turnOrder[s.currentTurnIndex]
}

func (s *session) submitMove(playerID int64, kind string, payload MovePayload) ([]Event, error) {
	p, err := s.member(playerID)
	if err != nil {
		return nil, err
	}
	if s.status != StatusPlaying {
		return nil, appErr.ErrInvalidStatus
	}
	if !p.Connected {
		return nil, appErr.ErrRoomAccessDenied
	}
	if s.cfg.Mode == ModeTurnBased && s.currentPlayerID() != playerID {
		return nil, appErr.ErrNotYourTurn
	}

	switch kind {
	case MoveKindGate:
		if payload.Gate == "" {
			return nil, appErr.ErrInvalidMove
		}
		if payload.Qubit < 0 || payload.Qubit >= s.cfg.NumQubits {
			return nil, appErr.ErrInvalidQubit
		}
		if payload.Target != nil && (*payload.Target < 0 || *payload.Target >= s.cfg.NumQubits) {
			return nil, appErr.ErrInvalidQubit
		}
	case MoveKindAction:
		if payload.ActionType == "" {
			return nil, appErr.ErrInvalidMove
		}
	default:
		return nil, appErr.ErrInvalidMove
	}

	s.appendMove(playerID, kind, payload)

	if kind == MoveKindGate {
		return []Event{{Type: "gate_placed", Data: h{
			"playerId":  strconv.FormatInt(playerID, 10),
			"gate":      payload.Gate,
			"qubit":     payload.Qubit,
			"moveCount": len(s.moveLog),
		}}}, nil
	}
	return []Event{{Type: "action", Data: h{
		"playerId":   strconv.FormatInt(playerID, 10),
		"actionType": payload.ActionType,
		"moveCount":  len(s.moveLog),
	}}}, nil
}

func (s *session) appendMove(playerID int64, kind string, payload MovePayload) {
	s.moveLog = append(s.moveLog, Move{
		PlayerID:    playerID,
		Kind:        kind,
		Payload:     payload,
		SubmittedAt: s.now(),
	})
}

func (s *session) endTurn(playerID int64) ([]Event, error) {
	if _, err := s.member(playerID); err != nil {
		return nil, err
	}
	if s.status != StatusPlaying {
		return nil, appErr.ErrInvalidStatus
	}
	if s.cfg.Mode != ModeTurnBased {
		return nil, appErr.ErrInvalidMove
	}
	if s.currentPlayerID() != playerID {
		return nil, appErr.ErrNotYourTurn
	}
	return []Event{s.advanceTurn()}, nil
}

func (s *session) advanceTurn() Event {
	s.currentTurnIndex = (s.currentTurnIndex + 1) % len(s.turnOrder)
	s.turnCount++
	s.turnRemaining = s.cfg.TurnSeconds
	return Event{Type: "turn_changed", Data: h{
		"currentPlayerId": strconv.FormatInt(s.currentPlayerID(), 10),
		"turnIndex":       s.currentTurnIndex,
		"turnCount":       s.turnCount,
		"turnRemaining":   s.turnRemaining,
	}}
}

func (s *session) forfeit(playerID int64) ([]Event, error) {
	if _, err := s.member(playerID); err != nil {
		return nil, err
	}
	if s.status == StatusFinished {
		return nil, appErr.ErrInvalidStatus
	}

	events := []Event{{Type: "player_forfeit", Data: h{
		"playerId": strconv.FormatInt(playerID, 10),
		"reason":   "forfeit",
	}}}
	events = append(events, s.finish(s.opponentOf(playerID)))
	return events, nil
}

// leave is an intentional exit: the seat is released, and a live game ends in
// the remaining player's favor.
func (s *session) leave(playerID int64) ([]Event, error) {
	if _, err := s.member(playerID); err != nil {
		return nil, err
	}

	events := []Event{{Type: "player_forfeit", Data: h{
		"playerId": strconv.FormatInt(playerID, 10),
		"reason":   "leave",
	}}}
	if s.status == StatusPlaying {
		events = append(events, s.finish(s.opponentOf(playerID)))
	}
	delete(s.players, playerID)
	return events, nil
}

func (s *session) opponentOf(playerID int64) int64 {
	for _, id := range s.joinOrder {
		if id != playerID {
			if _, ok := s.players[id]; ok {
				return id
			}
		}
	}
	return 0
}

// tick runs once per second while the room is alive. It drives the turn
// countdown and the reconnection grace windows.
func (s *session) tick() []Event {
	if s.status != StatusPlaying {
		return nil
	}

	var events []Event

	if s.cfg.Mode == ModeTurnBased {
		s.turnRemaining--
		if s.turnRemaining <= 0 {
			skipped := s.currentPlayerID()
			events = append(events, Event{Type: "turn_timeout", Data: h{
				"playerId": strconv.FormatInt(skipped, 10),
			}})
			events = append(events, s.advanceTurn())
		}
	}

	now := s.now()
	for _, id := range s.joinOrder {
		p, ok := s.players[id]
		if !ok || p.Connected || p.ReconnectDeadline == nil {
			continue
		}
		if now.Before(*p.ReconnectDeadline) {
			continue
		}
		// Grace expired: treated as a forfeit, broadcast as a normal game end.
		p.ReconnectDeadline = nil
		winner := int64(0)
		if opp := s.opponentOf(id); opp != 0 && s.players[opp].Connected {
			winner = opp
		}
		events = append(events, Event{Type: "player_forfeit", Data: h{
			"playerId": strconv.FormatInt(id, 10),
			"reason":   "disconnect",
		}})
		events = append(events, s.finish(winner))
		break
	}

	return events
}

// finish is the single playing -> finished transition point. The move log is
// frozen from here: every mutating entry point checks status first.
func (s *session) finish(winnerID int64) Event {
	s.status = StatusFinished
	s.winnerID = winnerID

	scores := make(map[string]int, len(s.players))
	for id, p := range s.players {
		scores[strconv.FormatInt(id, 10)] = p.Score
	}
	return Event{Type: "game_ended", Data: h{
		"winnerId":   winnerString(winnerID),
		"scores":     scores,
		"totalTurns": s.turnCount,
	}}
}

func winnerString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func (s *session) snapshot() Snapshot {
	players := make([]PlayerState, 0, len(s.joinOrder))
	for _, id := range s.joinOrder {
		if p, ok := s.players[id]; ok {
			players = append(players, *p)
		}
	}
	snap := Snapshot{
		RoomID:           s.roomID,
		GameSlug:         s.cfg.GameSlug,
		Mode:             s.cfg.Mode,
		Status:           s.status,
		Players:          players,
		TurnOrder:        append([]int64(nil), s.turnOrder...),
		CurrentTurnIndex: s.currentTurnIndex,
		TurnRemaining:    s.turnRemaining,
		TurnCount:        s.turnCount,
		MoveCount:        len(s.moveLog),
		Moves:            append([]Move(nil), s.moveLog...),
		WinnerID:         winnerString(s.winnerID),
	}
	if s.status == StatusPlaying && s.cfg.Mode == ModeTurnBased {
		snap.CurrentPlayerID = s.currentPlayerID()
	}
	return snap
}
