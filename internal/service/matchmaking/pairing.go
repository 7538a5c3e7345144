package matchmaking

import "time"

// pairEntries runs one pairing pass over a single game's partition. Entries
// must be sorted by EnqueuedAt ascending; the earliest-enqueued entry is
// always the anchor of a scan, so nobody is skipped indefinitely.
func pairEntries(entries []*entry, now time.Time, cfg Config) [][2]*entry {
	matched := make(map[int64]bool, len(entries))
	var pairs [][2]*entry

	for i, a := range entries {
		if matched[a.PlayerID] {
			continue
		}

		window := ratingWindow(now.Sub(a.EnqueuedAt), cfg)
		for _, b := range entries[i+1:] {
			if matched[b.PlayerID] {
				continue
			}
			if b.EducationLevel != a.EducationLevel {
				continue
			}
			if absInt(a.SkillRating-b.SkillRating) > window {
				continue
			}
			matched[a.PlayerID] = true
			matched[b.PlayerID] = true
			pairs = append(pairs, [2]*entry{a, b})
			break
		}
		if matched[a.PlayerID] {
			continue
		}

		// Waited past the ceiling: take the next available entry regardless
		// of rating or education level. Fairness yields to the latency bound.
		if now.Sub(a.EnqueuedAt) >= cfg.MaxWait {
			for _, b := range entries[i+1:] {
				if matched[b.PlayerID] {
					continue
				}
				matched[a.PlayerID] = true
				matched[b.PlayerID] = true
				pairs = append(pairs, [2]*entry{a, b})
				break
			}
		}
	}

	return pairs
}

func ratingWindow(waited time.Duration, cfg Config) int {
	steps := int(waited / cfg.WindowStep)
	if steps < 0 {
		steps = 0
	}
	return cfg.BaseWindow + steps*cfg.WindowGrowth
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
