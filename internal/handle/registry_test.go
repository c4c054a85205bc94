package handle

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPutLoad(t *testing.T) {
	r := NewRegistry[string]()

	a := r.Put("a")
	b := r.Put("b")
	require.NotZero(t, a)
	require.NotEqual(t, a, b)

	v, ok := r.Load(a)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 2, r.Len())

	r.Delete(a)
	_, ok = r.Load(a)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	// Deleting twice is harmless.
	r.Delete(a)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryLoadAndDeleteIsExclusive(t *testing.T) {
	r := NewRegistry[int]()
	h := r.Put(42)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.LoadAndDelete(h); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Zero(t, r.Len())
}
