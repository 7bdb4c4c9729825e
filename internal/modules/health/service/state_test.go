package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadyNeedsStore(t *testing.T) {
	s := NewState()
	assert.False(t, s.Ready())

	s.SetReady(true)
	assert.True(t, s.Ready())

	s.SetStoreOK(false)
	assert.False(t, s.Ready())
}

func TestLastTick(t *testing.T) {
	s := NewState()
	assert.True(t, s.LastTick().IsZero())

	at := time.Unix(1_700_000_000, 0)
	s.TouchTick(at)
	assert.Equal(t, at, s.LastTick())
}
