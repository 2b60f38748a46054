package watchtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionPair_Equal(t *testing.T) {
	a := SessionPair{SessionID: 10, State: 3}
	b := SessionPair{SessionID: 10, State: 3}
	c := SessionPair{SessionID: 10, State: 4}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestSessionPair_String(t *testing.T) {
	p := SessionPair{SessionID: -5, State: 0}
	assert.Equal(t, "(-5, 0)", p.String())
}
