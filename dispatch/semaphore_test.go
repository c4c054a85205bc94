package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/fsdispatch/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreSignalWait(t *testing.T) {
	s, err := NewSemaphore(0)
	require.NoError(t, err)
	defer s.Release()

	assert.False(t, s.WaitTimeout(10*time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Signal()
	}()
	assert.True(t, s.WaitTimeout(5*time.Second))
}

func TestSemaphoreBoundsConcurrency(t *testing.T) {
	s, err := NewSemaphore(2)
	require.NoError(t, err)
	defer s.Release()

	q := newQueue(t, "com.grovetools.test.semaphore", Concurrent)
	var active, peak atomic.Int32
	q.Apply(16, func(int) {
		s.Wait()
		defer s.Signal()
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
	})

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSemaphoreRejectsNegative(t *testing.T) {
	_, err := NewSemaphore(-1)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestOnceRunsOnce(t *testing.T) {
	var once Once
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			once.Do(func() { calls.Add(1) })
		}()
	}
	wg.Wait()
	once.Do(func() { calls.Add(1) })

	assert.Equal(t, int32(1), calls.Load())
}
