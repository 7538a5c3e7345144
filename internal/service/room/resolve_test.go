package room

import (
	"errors"
	"testing"
)

func TestScorePerfectMatch(t *testing.T) {
	target := map[string]float64{"00": 0.5, "11": 0.5}
	probs := map[string]float64{"00": 0.5, "11": 0.5}

	if got := scoreDistribution(probs, target); got != 100 {
		t.Fatalf("expected score 100, got %d", got)
	}
}

func TestScoreHalfMiss(t *testing.T) {
	target := map[string]float64{"00": 0.5, "11": 0.5}
	probs := map[string]float64{"00": 1.0}

	// avg diff over {00,11} = (0.5+0.5)/2 = 0.5 -> score 50
	if got := scoreDistribution(probs, target); got != 50 {
		t.Fatalf("expected score 50, got %d", got)
	}
}

func TestScoreIsSymmetricAndBounded(t *testing.T) {
	a := map[string]float64{"00": 0.7, "01": 0.3}
	b := map[string]float64{"10": 0.9, "11": 0.1}

	ab := scoreDistribution(a, b)
	ba := scoreDistribution(b, a)
	if ab != ba {
		t.Fatalf("score not symmetric: %d vs %d", ab, ba)
	}
	if ab < 0 || ab > 100 {
		t.Fatalf("score out of bounds: %d", ab)
	}
}

func TestScoreDeterministicForFixedLog(t *testing.T) {
	sim := &stubSim{probs: map[string]float64{"00": 0.5, "11": 0.5}}
	sess, _ := newTestSession(t, ModeSimultaneous, sim)
	startGame(t, sess)

	if _, err := sess.submitMove(1, MoveKindGate, MovePayload{Gate: "H", Qubit: 0}); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if _, err := sess.measure(1); err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	first := sess.players[1].Score

	if _, err := sess.measure(1); err != nil {
		t.Fatalf("second measure failed: %v", err)
	}
	if sess.players[1].Score != first {
		t.Fatalf("identical log must give identical score: %d vs %d", first, sess.players[1].Score)
	}
}

func TestSimulationFailurePreservesLog(t *testing.T) {
	sim := &stubSim{err: errors.New("backend down")}
	sess, _ := newTestSession(t, ModeSimultaneous, sim)
	startGame(t, sess)

	if _, err := sess.submitMove(1, MoveKindGate, MovePayload{Gate: "H", Qubit: 0}); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	logBefore := len(sess.moveLog)

	events, err := sess.measure(1)
	if err != nil {
		t.Fatalf("resolve failure is not a rejection: %v", err)
	}
	if !hasEvent(events, "error") {
		t.Fatalf("expected resolve failure broadcast, got %+v", events)
	}
	if sess.status != StatusPlaying {
		t.Fatalf("room must stay in playing after a resolve failure, got %s", sess.status)
	}
	// The measurement request itself stays in the log.
	if len(sess.moveLog) != logBefore+1 {
		t.Fatalf("move log must be preserved, had %d now %d", logBefore, len(sess.moveLog))
	}

	// Next resolve retries and succeeds.
	sim.err = nil
	sim.probs = map[string]float64{"00": 0.5, "11": 0.5}
	if _, err := sess.measure(1); err != nil {
		t.Fatalf("retry measure failed: %v", err)
	}
	if sess.players[1].Score != 100 {
		t.Fatalf("expected score 100 after retry, got %d", sess.players[1].Score)
	}
}

func TestSimultaneousHighestScoreWins(t *testing.T) {
	sim := &stubSim{probs: map[string]float64{"00": 0.5, "11": 0.5}}
	sess, _ := newTestSession(t, ModeSimultaneous, sim)
	startGame(t, sess)

	if _, err := sess.measure(1); err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if sess.status != StatusFinished {
		// Only one player has scored so far.
		t.Logf("status after first score: %s", sess.status)
	}

	sim.probs = map[string]float64{"00": 1.0}
	events, err := sess.measure(2)
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if !hasEvent(events, "game_ended") {
		t.Fatalf("expected game_ended once everyone scored, got %+v", events)
	}
	if sess.winnerID != 1 {
		t.Fatalf("expected player 1 (score 100 vs 50) to win, got %d", sess.winnerID)
	}
}

func TestSimultaneousTieLeavesWinnerEmpty(t *testing.T) {
	sim := &stubSim{probs: map[string]float64{"00": 0.5, "11": 0.5}}
	sess, _ := newTestSession(t, ModeSimultaneous, sim)
	startGame(t, sess)

	if _, err := sess.measure(1); err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if _, err := sess.measure(2); err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if sess.status != StatusFinished {
		t.Fatalf("expected finished, got %s", sess.status)
	}
	if sess.winnerID != 0 {
		t.Fatalf("tied scores must leave winner unset, got %d", sess.winnerID)
	}
	if winnerString(sess.winnerID) != "" {
		t.Fatalf("tie must serialize as empty winner id")
	}
}

func TestTurnBasedMeasureWinsAtThreshold(t *testing.T) {
	sim := &stubSim{probs: map[string]float64{"00": 0.5, "11": 0.5}}
	sess, _ := newTestSession(t, ModeTurnBased, sim)
	startGame(t, sess)

	if _, err := sess.submitMove(1, MoveKindGate, MovePayload{Gate: "H", Qubit: 0}); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	events, err := sess.measure(1)
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if !hasEvent(events, "game_ended") {
		t.Fatalf("expected winning measurement to end the game, got %+v", events)
	}
	if sess.winnerID != 1 {
		t.Fatalf("measuring player must win at threshold, got %d", sess.winnerID)
	}
}

func TestTurnBasedMeasureBelowThresholdPassesTurn(t *testing.T) {
	sim := &stubSim{probs: map[string]float64{"00": 1.0}} // score 50 < threshold 80
	sess, _ := newTestSession(t, ModeTurnBased, sim)
	startGame(t, sess)

	events, err := sess.measure(1)
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if !hasEvent(events, "measurement_result") || !hasEvent(events, "turn_changed") {
		t.Fatalf("expected result + turn change, got %+v", events)
	}
	if sess.status != StatusPlaying {
		t.Fatalf("below-threshold measure must not end the game")
	}
	if sess.currentPlayerID() != 2 {
		t.Fatalf("turn must pass after a measurement, got %d", sess.currentPlayerID())
	}
}
