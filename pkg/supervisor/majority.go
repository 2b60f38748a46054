package supervisor

import "github.com/beranalpa/cortensor-watcher-bot/pkg/watchtypes"

// computeMajority returns the most common (session_id, state) pair
// among samples that parsed one, iterating order in container-list
// order so ties resolve to whichever pair was first encountered. The
// second return value is false when fewer than two containers parsed
// a pair: majority is undefined in that case.
func computeMajority(order []string, samples map[string]watchtypes.TickSample) (*watchtypes.SessionPair, bool) {
	type count struct {
		pair watchtypes.SessionPair
		n    int
	}

	var seenOrder []watchtypes.SessionPair
	counts := make(map[watchtypes.SessionPair]*count)
	parsed := 0

	for _, name := range order {
		sample := samples[name]
		if sample.Pair == nil {
			continue
		}
		parsed++

		pair := *sample.Pair
		c, ok := counts[pair]
		if !ok {
			c = &count{pair: pair}
			counts[pair] = c
			seenOrder = append(seenOrder, pair)
		}
		c.n++
	}

	if parsed < 2 {
		return nil, false
	}

	var best *count
	for _, pair := range seenOrder {
		c := counts[pair]
		if best == nil || c.n > best.n {
			best = c
		}
	}

	winner := best.pair
	return &winner, true
}
