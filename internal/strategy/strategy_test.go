package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingWindowNotReadyUntilFull(t *testing.T) {
	w := NewRollingWindow(3)
	w.Push(1)
	w.Push(2)
	assert.False(t, w.Ready())
	w.Push(3)
	assert.True(t, w.Ready())
}

func TestRollingWindowMeanOverWindow(t *testing.T) {
	w := NewRollingWindow(3)
	w.Push(10)
	w.Push(20)
	w.Push(30)
	assert.InDelta(t, 20, w.Mean(), 0.0001)

	w.Push(40) // evicts the 10
	assert.InDelta(t, 30, w.Mean(), 0.0001)
}

func TestRollingWindowZScoreZeroOnFlatWindow(t *testing.T) {
	w := NewRollingWindow(3)
	w.Push(100)
	w.Push(100)
	w.Push(100)
	assert.Equal(t, float64(0), w.ZScore(100), "zero stddev must not divide by zero")
}
