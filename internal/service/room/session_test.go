package room

import (
	"testing"
	"time"

	"qarena-service/internal/quantum"
)

type stubSim struct {
	probs map[string]float64
	err   error
	calls int
}

func (s *stubSim) Run(numQubits int, ops []quantum.Operation) (map[string]float64, error) {
	s.calls++
	return s.probs, s.err
}

func testConfig(mode Mode) Config {
	return Config{
		GameID:          1,
		GameSlug:        "circuit-duel",
		Mode:            mode,
		RequiredPlayers: 2,
		NumQubits:       2,
		TurnSeconds:     60,
		GraceSeconds:    120,
		WinThreshold:    80,
		Target:          map[string]float64{"00": 0.5, "11": 0.5},
	}
}

func testParticipants() []Participant {
	return []Participant{
		{PlayerID: 1, DisplayName: "Alice", SkillRating: 1000},
		{PlayerID: 2, DisplayName: "Bob", SkillRating: 1050},
	}
}

// newTestSession wires a session with a controllable clock.
func newTestSession(t *testing.T, mode Mode, sim *stubSim) (*session, *time.Time) {
	t.Helper()
	sess := newSession("room-1", testConfig(mode), testParticipants(), sim)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess.now = func() time.Time { return current }
	return sess, &current
}

func startGame(t *testing.T, sess *session) {
	t.Helper()
	if _, err := sess.attach(1); err != nil {
		t.Fatalf("attach(1) failed: %v", err)
	}
	if _, err := sess.attach(2); err != nil {
		t.Fatalf("attach(2) failed: %v", err)
	}
	if _, err := sess.ready(1); err != nil {
		t.Fatalf("ready(1) failed: %v", err)
	}
	events, err := sess.ready(2)
	if err != nil {
		t.Fatalf("ready(2) failed: %v", err)
	}
	if sess.status != StatusPlaying {
		t.Fatalf("expected playing after both ready, got %s", sess.status)
	}
	if !hasEvent(events, "game_started") {
		t.Fatalf("expected game_started event, got %+v", events)
	}
}

func hasEvent(events []Event, kind string) bool {
	for _, ev := range events {
		if ev.Type == kind {
			return true
		}
	}
	return false
}

func TestReadyGatesStart(t *testing.T) {
	sess, _ := newTestSession(t, ModeTurnBased, &stubSim{})

	if _, err := sess.ready(1); err != nil {
		t.Fatalf("ready failed: %v", err)
	}
	if sess.status != StatusWaiting {
		t.Fatalf("game started with one ready player")
	}
	if _, err := sess.ready(2); err != nil {
		t.Fatalf("ready failed: %v", err)
	}
	if sess.status != StatusPlaying {
		t.Fatalf("expected playing, got %s", sess.status)
	}
	if len(sess.turnOrder) != 2 || sess.turnOrder[0] != 1 || sess.turnOrder[1] != 2 {
		t.Fatalf("turn order should follow join order, got %v", sess.turnOrder)
	}
}

func TestMoveRejectedBeforeStart(t *testing.T) {
	sess, _ := newTestSession(t, ModeTurnBased, &stubSim{})

	if _, err := sess.submitMove(1, MoveKindGate, MovePayload{Gate: "H", Qubit: 0}); err == nil {
		t.Fatal("expected rejection while waiting")
	}
	if len(sess.moveLog) != 0 {
		t.Fatalf("rejected move must not enter the log")
	}
}

func TestNotYourTurnRejection(t *testing.T) {
	sess, _ := newTestSession(t, ModeTurnBased, &stubSim{})
	startGame(t, sess)

	_, err := sess.submitMove(2, MoveKindGate, MovePayload{Gate: "H", Qubit: 0})
	if err == nil {
		t.Fatal("expected not-your-turn rejection")
	}
	if len(sess.moveLog) != 0 {
		t.Fatalf("rejected move must not enter the log")
	}
}

func TestInvalidQubitRejection(t *testing.T) {
	sess, _ := newTestSession(t, ModeTurnBased, &stubSim{})
	startGame(t, sess)

	if _, err := sess.submitMove(1, MoveKindGate, MovePayload{Gate: "H", Qubit: 5}); err == nil {
		t.Fatal("expected invalid-qubit rejection")
	}
}

func TestEndTurnAdvances(t *testing.T) {
	sess, _ := newTestSession(t, ModeTurnBased, &stubSim{})
	startGame(t, sess)

	events, err := sess.endTurn(1)
	if err != nil {
		t.Fatalf("end turn failed: %v", err)
	}
	if !hasEvent(events, "turn_changed") {
		t.Fatalf("expected turn_changed, got %+v", events)
	}
	if sess.currentPlayerID() != 2 {
		t.Fatalf("expected player 2's turn, got %d", sess.currentPlayerID())
	}
	if sess.turnCount != 2 {
		t.Fatalf("expected turn count 2, got %d", sess.turnCount)
	}
}

func TestTurnTimeoutAutoSkips(t *testing.T) {
	sess, _ := newTestSession(t, ModeTurnBased, &stubSim{})
	startGame(t, sess)

	var events []Event
	for i := 0; i < 60; i++ {
		events = sess.tick()
	}
	if !hasEvent(events, "turn_timeout") {
		t.Fatalf("expected turn_timeout on the 60th tick, got %+v", events)
	}
	if sess.currentPlayerID() != 2 {
		t.Fatalf("expected control to pass to player 2, got %d", sess.currentPlayerID())
	}
	if sess.turnCount != 2 {
		t.Fatalf("timeout must advance the turn count by exactly 1, got %d", sess.turnCount)
	}
	if sess.status != StatusPlaying {
		t.Fatalf("timeout is a skip, not a loss; got status %s", sess.status)
	}
}

func TestReconnectWithinGrace(t *testing.T) {
	sess, clock := newTestSession(t, ModeTurnBased, &stubSim{})
	startGame(t, sess)

	if _, err := sess.attach(1); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if _, err := sess.attach(2); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if _, err := sess.submitMove(1, MoveKindGate, MovePayload{Gate: "H", Qubit: 0}); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	movesBefore := len(sess.moveLog)
	turnBefore := sess.currentTurnIndex

	sess.detach(2)
	if sess.players[2].Connected {
		t.Fatal("detach must clear connected")
	}
	if sess.players[2].ReconnectDeadline == nil {
		t.Fatal("expected grace deadline")
	}

	*clock = clock.Add(30 * time.Second)
	events, err := sess.attach(2)
	if err != nil {
		t.Fatalf("reattach failed: %v", err)
	}
	if !hasEvent(events, "reconnected") {
		t.Fatalf("expected reconnected event, got %+v", events)
	}
	if !sess.players[2].Connected || sess.players[2].ReconnectDeadline != nil {
		t.Fatal("reattach must restore connected and clear the deadline")
	}
	if len(sess.moveLog) != movesBefore || sess.currentTurnIndex != turnBefore {
		t.Fatal("reconnection must not alter the move log or turn state")
	}

	// The resync snapshot carries the full move log.
	var snap Snapshot
	for _, ev := range events {
		if ev.Type == "state" {
			snap = ev.Data.(Snapshot)
		}
	}
	if snap.MoveCount != movesBefore || len(snap.Moves) != movesBefore {
		t.Fatalf("resync snapshot incomplete: %+v", snap)
	}
}

func TestGraceExpiryForfeits(t *testing.T) {
	sess, clock := newTestSession(t, ModeTurnBased, &stubSim{})
	startGame(t, sess)
	if _, err := sess.attach(1); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if _, err := sess.attach(2); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	sess.detach(2)
	*clock = clock.Add(121 * time.Second)

	events := sess.tick()
	if !hasEvent(events, "game_ended") {
		t.Fatalf("expected game_ended after grace expiry, got %+v", events)
	}
	if sess.status != StatusFinished {
		t.Fatalf("expected finished, got %s", sess.status)
	}
	if sess.winnerID != 1 {
		t.Fatalf("remaining player must win, got %d", sess.winnerID)
	}
}

func TestDisconnectBeforeStartForfeitsAfterGrace(t *testing.T) {
	sess, clock := newTestSession(t, ModeTurnBased, &stubSim{})

	if _, err := sess.attach(1); err != nil {
		t.Fatalf("attach(1) failed: %v", err)
	}
	if _, err := sess.attach(2); err != nil {
		t.Fatalf("attach(2) failed: %v", err)
	}
	if _, err := sess.ready(2); err != nil {
		t.Fatalf("ready(2) failed: %v", err)
	}
	sess.detach(2)

	// The remaining ready starts the game with player 2 still disconnected.
	if _, err := sess.ready(1); err != nil {
		t.Fatalf("ready(1) failed: %v", err)
	}
	if sess.status != StatusPlaying {
		t.Fatalf("expected playing, got %s", sess.status)
	}
	if sess.players[2].ReconnectDeadline == nil {
		t.Fatal("disconnected seat must carry a grace deadline once the game starts")
	}

	*clock = clock.Add(121 * time.Second)
	events := sess.tick()
	if !hasEvent(events, "game_ended") {
		t.Fatalf("expected grace expiry to end the game, got %+v", events)
	}
	if sess.status != StatusFinished || sess.winnerID != 1 {
		t.Fatalf("remaining player must win; status=%s winner=%d", sess.status, sess.winnerID)
	}
}

func TestDisconnectBeforeStartCanReconnect(t *testing.T) {
	sess, clock := newTestSession(t, ModeTurnBased, &stubSim{})

	if _, err := sess.attach(1); err != nil {
		t.Fatalf("attach(1) failed: %v", err)
	}
	if _, err := sess.attach(2); err != nil {
		t.Fatalf("attach(2) failed: %v", err)
	}
	if _, err := sess.ready(2); err != nil {
		t.Fatalf("ready(2) failed: %v", err)
	}
	sess.detach(2)
	if _, err := sess.ready(1); err != nil {
		t.Fatalf("ready(1) failed: %v", err)
	}

	*clock = clock.Add(30 * time.Second)
	events, err := sess.attach(2)
	if err != nil {
		t.Fatalf("reattach failed: %v", err)
	}
	if !hasEvent(events, "reconnected") {
		t.Fatalf("expected reconnected event, got %+v", events)
	}
	if !sess.players[2].Connected || sess.players[2].ReconnectDeadline != nil {
		t.Fatal("reattach must restore connected and clear the deadline")
	}
	if sess.status != StatusPlaying {
		t.Fatalf("reconnection must not disturb the game, got %s", sess.status)
	}
}

func TestForfeitEndsGame(t *testing.T) {
	sess, _ := newTestSession(t, ModeTurnBased, &stubSim{})
	startGame(t, sess)

	events, err := sess.forfeit(2)
	if err != nil {
		t.Fatalf("forfeit failed: %v", err)
	}
	if !hasEvent(events, "player_forfeit") || !hasEvent(events, "game_ended") {
		t.Fatalf("expected forfeit + game end, got %+v", events)
	}
	if sess.winnerID != 1 {
		t.Fatalf("opponent must win on forfeit, got %d", sess.winnerID)
	}
	if _, err := sess.submitMove(1, MoveKindGate, MovePayload{Gate: "H", Qubit: 0}); err == nil {
		t.Fatal("finished room must reject moves")
	}
}

func TestLeaveDuringPlayEndsGame(t *testing.T) {
	sess, _ := newTestSession(t, ModeTurnBased, &stubSim{})
	startGame(t, sess)

	if _, err := sess.leave(1); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if sess.status != StatusFinished || sess.winnerID != 2 {
		t.Fatalf("remaining player must win; status=%s winner=%d", sess.status, sess.winnerID)
	}
	if _, ok := sess.players[1]; ok {
		t.Fatal("leaving player must release the seat")
	}
}

func TestStatusNeverRegresses(t *testing.T) {
	sess, _ := newTestSession(t, ModeSimultaneous, &stubSim{probs: map[string]float64{"00": 0.5, "11": 0.5}})
	startGame(t, sess)
	if _, err := sess.attach(1); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if _, err := sess.attach(2); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	if _, err := sess.measure(1); err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if _, err := sess.measure(2); err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if sess.status != StatusFinished {
		t.Fatalf("expected finished, got %s", sess.status)
	}
	if _, err := sess.ready(1); err == nil {
		t.Fatal("finished room must reject ready")
	}
}
