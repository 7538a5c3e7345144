package room

import (
	"math"
	"strconv"

	appErr "qarena-service/pkg/errors"
)

// measure resolves the accumulated move log against the simulator. The
// client never reports an outcome; the server reconstructs the circuit from
// the log and derives the score itself.
func (s *session) measure(playerID int64) ([]Event, error) {
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

	// The measurement request joins the log before the simulation runs, and
	// stays there even if the simulation fails.
	s.appendMove(playerID, MoveKindMeasure, MovePayload{})

	circuitOwner := playerID
	if s.cfg.Mode == ModeTurnBased {
		circuitOwner = 0 // shared circuit
	}
	probs, simErr := s.sim.Run(s.cfg.NumQubits, gateOperations(s.moveLog, circuitOwner))
	if simErr != nil {
		// Resolve failure is reported to the whole room; state stays in
		// playing and the next measure request retries.
		return []Event{{Type: "error", Data: h{
			"reason":   appErr.ErrSimulationFailed.Error(),
			"playerId": strconv.FormatInt(playerID, 10),
		}}}, nil
	}

	score := scoreDistribution(probs, s.cfg.Target)
	p.Score = score

	events := []Event{{Type: "measurement_result", Data: h{
		"playerId":      strconv.FormatInt(playerID, 10),
		"probabilities": probs,
		"score":         score,
	}}}

	switch s.cfg.Mode {
	case ModeSimultaneous:
		if s.allConnectedScored() {
			events = append(events, s.finish(s.highestScorer()))
		}
	case ModeTurnBased:
		if score >= s.cfg.WinThreshold {
			events = append(events, s.finish(playerID))
		} else {
			events = append(events, s.advanceTurn())
		}
	}
	return events, nil
}

// scoreDistribution compares an outcome distribution against the target over
// the union of both label sets. Symmetric, bounded to [0,100], and a pure
// function of its inputs.
func scoreDistribution(probs, target map[string]float64) int {
	labels := make(map[string]struct{}, len(probs)+len(target))
	for label := range probs {
		labels[label] = struct{}{}
	}
	for label := range target {
		labels[label] = struct{}{}
	}
	if len(labels) == 0 {
		return 0
	}

	totalDiff := 0.0
	for label := range labels {
		totalDiff += math.Abs(probs[label] - target[label])
	}
	avgDiff := totalDiff / float64(len(labels))

	score := math.Round(math.Max(0, 100-100*avgDiff))
	return int(score)
}

func (s *session) allConnectedScored() bool {
	any := false
	for _, p := range s.players {
		if !p.Connected {
			continue
		}
		any = true
		if p.Score == 0 {
			return false
		}
	}
	return any
}

// highestScorer returns the player with the strictly highest score, or zero
// when the top score is shared.
func (s *session) highestScorer() int64 {
	best := int64(0)
	bestScore := -1
	tied := false
	for _, id := range s.joinOrder {
		p, ok := s.players[id]
		if !ok {
			continue
		}
		if p.Score > bestScore {
			best, bestScore, tied = id, p.Score, false
		} else if p.Score == bestScore {
			tied = true
		}
	}
	if tied {
		return 0
	}
	return best
}
