package clock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockAdvance(t *testing.T) {
	c := New(0)
	assert.Equal(t, 0.0, c.Time())

	require.NoError(t, c.Advance(1))
	require.NoError(t, c.Advance(0.5))
	assert.Equal(t, 1.5, c.Time())
}

func TestClockAdvanceRejectsNonPositive(t *testing.T) {
	c := New(10)

	assert.Error(t, c.Advance(0))
	assert.Error(t, c.Advance(-1))
	assert.Equal(t, 10.0, c.Time())
}

func TestClockReset(t *testing.T) {
	c := New(0)
	require.NoError(t, c.Advance(100))

	require.NoError(t, c.Reset(5))
	assert.Equal(t, 5.0, c.Time())

	assert.Error(t, c.Reset(-1))
}

func TestClockNegativeStartClampsToZero(t *testing.T) {
	c := New(-3)
	assert.Equal(t, 0.0, c.Time())
}

func TestClockConcurrentReads(t *testing.T) {
	c := New(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = c.Time()
			}
		}()
	}
	for i := 0; i < 100; i++ {
		require.NoError(t, c.Advance(1))
	}
	wg.Wait()

	assert.Equal(t, 100.0, c.Time())
}
