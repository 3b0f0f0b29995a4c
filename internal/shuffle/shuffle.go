// Package shuffle reorders a question's choice list without losing track of
// the correct answer.
package shuffle

import (
	"math/rand"
	"time"
)

// Choices returns a uniformly shuffled copy of choices (Fisher-Yates) together
// with the index the correct choice moved to. The input slice is never
// mutated; lists of 0 or 1 elements come back unchanged. A nil rng falls back
// to a time-seeded source.
func Choices(choices []string, correct int, rng *rand.Rand) ([]string, int) {
	out := make([]string, len(choices))
	copy(out, choices)
	if len(out) <= 1 {
		return out, correct
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	idx := correct
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
		switch idx {
		case i:
			idx = j
		case j:
			idx = i
		}
	}
	return out, idx
}
