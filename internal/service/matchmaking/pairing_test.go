package matchmaking

import (
	"testing"
	"time"
)

func pairingConfig() Config {
	return Config{
		BaseWindow:   200,
		WindowGrowth: 50,
		WindowStep:   10 * time.Second,
		MaxWait:      30 * time.Second,
	}
}

func queuedEntry(id int64, level string, rating int, waited time.Duration, now time.Time) *entry {
	return &entry{
		PlayerID:       id,
		EducationLevel: level,
		SkillRating:    rating,
		EnqueuedAt:     now.Add(-waited),
	}
}

func TestPairWithinBaseWindow(t *testing.T) {
	now := time.Now()
	entries := []*entry{
		queuedEntry(1, "secondary", 1000, 2*time.Second, now),
		queuedEntry(2, "secondary", 1150, time.Second, now),
	}

	pairs := pairEntries(entries, now, pairingConfig())
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0][0].PlayerID != 1 || pairs[0][1].PlayerID != 2 {
		t.Fatalf("unexpected pairing: %d vs %d", pairs[0][0].PlayerID, pairs[0][1].PlayerID)
	}
}

func TestNoPairAcrossEducationLevels(t *testing.T) {
	now := time.Now()
	entries := []*entry{
		queuedEntry(1, "primary", 1000, 5*time.Second, now),
		queuedEntry(2, "university", 1000, 5*time.Second, now),
	}

	pairs := pairEntries(entries, now, pairingConfig())
	if len(pairs) != 0 {
		t.Fatalf("expected no pairs across education levels, got %d", len(pairs))
	}
}

func TestNoPairOutsideRatingWindow(t *testing.T) {
	now := time.Now()
	entries := []*entry{
		queuedEntry(1, "secondary", 1000, time.Second, now),
		queuedEntry(2, "secondary", 1300, time.Second, now),
	}

	pairs := pairEntries(entries, now, pairingConfig())
	if len(pairs) != 0 {
		t.Fatalf("expected no pairs for rating diff 300 at base window, got %d", len(pairs))
	}
}

func TestWindowWidensWithWaitTime(t *testing.T) {
	now := time.Now()
	// Waited 20s: window = 200 + 2*50 = 300, so a 300-point gap matches.
	entries := []*entry{
		queuedEntry(1, "secondary", 1000, 20*time.Second, now),
		queuedEntry(2, "secondary", 1300, time.Second, now),
	}

	pairs := pairEntries(entries, now, pairingConfig())
	if len(pairs) != 1 {
		t.Fatalf("expected widened window to produce a pair, got %d", len(pairs))
	}
}

func TestMaxWaitFallbackIgnoresLevelAndRating(t *testing.T) {
	now := time.Now()
	entries := []*entry{
		queuedEntry(1, "primary", 800, 31*time.Second, now),
		queuedEntry(2, "university", 2000, time.Second, now),
	}

	pairs := pairEntries(entries, now, pairingConfig())
	if len(pairs) != 1 {
		t.Fatalf("expected fallback pair after max wait, got %d", len(pairs))
	}
	if pairs[0][0].PlayerID != 1 {
		t.Fatalf("expected longest-waiting player to anchor the fallback, got %d", pairs[0][0].PlayerID)
	}
}

func TestEarliestEntryAnchorsPairing(t *testing.T) {
	now := time.Now()
	// Three compatible entries: the two oldest pair, the newest waits.
	entries := []*entry{
		queuedEntry(1, "secondary", 1000, 10*time.Second, now),
		queuedEntry(2, "secondary", 1050, 8*time.Second, now),
		queuedEntry(3, "secondary", 1020, time.Second, now),
	}

	pairs := pairEntries(entries, now, pairingConfig())
	if len(pairs) != 1 {
		t.Fatalf("expected exactly 1 pair, got %d", len(pairs))
	}
	if pairs[0][0].PlayerID != 1 || pairs[0][1].PlayerID != 2 {
		t.Fatalf("expected oldest two entries paired, got %d vs %d", pairs[0][0].PlayerID, pairs[0][1].PlayerID)
	}
}

func TestMatchedEntriesLeaveThePass(t *testing.T) {
	now := time.Now()
	entries := []*entry{
		queuedEntry(1, "secondary", 1000, 10*time.Second, now),
		queuedEntry(2, "secondary", 1010, 9*time.Second, now),
		queuedEntry(3, "secondary", 1020, 8*time.Second, now),
		queuedEntry(4, "secondary", 1030, 7*time.Second, now),
	}

	pairs := pairEntries(entries, now, pairingConfig())
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	seen := map[int64]int{}
	for _, pair := range pairs {
		seen[pair[0].PlayerID]++
		seen[pair[1].PlayerID]++
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("player %d appears in %d pairs", id, count)
		}
	}
}

func TestRatingWindowGrowth(t *testing.T) {
	cfg := pairingConfig()
	cases := []struct {
		waited time.Duration
		want   int
	}{
		{0, 200},
		{9 * time.Second, 200},
		{10 * time.Second, 250},
		{25 * time.Second, 300},
	}
	for _, tc := range cases {
		if got := ratingWindow(tc.waited, cfg); got != tc.want {
			t.Fatalf("window for %v: expected %d, got %d", tc.waited, tc.want, got)
		}
	}
}
