package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beranalpa/cortensor-watcher-bot/pkg/watchtypes"
)

func pair(id, state int) *watchtypes.SessionPair {
	return &watchtypes.SessionPair{SessionID: id, State: state}
}

func TestComputeMajority_UndefinedBelowTwo(t *testing.T) {
	samples := map[string]watchtypes.TickSample{
		"a": {Pair: pair(10, 3)},
		"b": {Pair: nil},
	}
	_, ok := computeMajority([]string{"a", "b"}, samples)
	assert.False(t, ok)
}

func TestComputeMajority_PicksMode(t *testing.T) {
	samples := map[string]watchtypes.TickSample{
		"a": {Pair: pair(10, 3)},
		"b": {Pair: pair(10, 3)},
		"c": {Pair: pair(10, 5)},
	}
	got, ok := computeMajority([]string{"a", "b", "c"}, samples)
	require.True(t, ok)
	assert.Equal(t, 10, got.SessionID)
	assert.Equal(t, 3, got.State)
}

func TestComputeMajority_TieBreaksFirstEncountered(t *testing.T) {
	samples := map[string]watchtypes.TickSample{
		"a": {Pair: pair(10, 3)},
		"b": {Pair: pair(10, 5)},
	}
	got, ok := computeMajority([]string{"a", "b"}, samples)
	require.True(t, ok)
	assert.Equal(t, 3, got.State, "first-encountered pair should win a tie")

	// Reversing iteration order flips which pair is "first encountered".
	got2, ok2 := computeMajority([]string{"b", "a"}, samples)
	require.True(t, ok2)
	assert.Equal(t, 5, got2.State)
}
