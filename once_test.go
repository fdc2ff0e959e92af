package batis

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type onceTestService struct {
	id int
}

func TestOnceValue_Get(t *testing.T) {
	cell := newOnceValue[*onceTestService]("test")

	calls := 0
	build := func() (*onceTestService, error) {
		calls++
		return &onceTestService{id: calls}, nil
	}

	svc, err := cell.get(build)
	require.NoError(t, err)

	// Calling get again returns the same instance
	svc2, err := cell.get(build)
	require.NoError(t, err)
	assert.Same(t, svc, svc2)
	assert.Equal(t, 1, calls)
}

func TestOnceValue_ErrorIsCached(t *testing.T) {
	cell := newOnceValue[*onceTestService]("test")
	expectedErr := errors.New("boom")

	calls := 0
	build := func() (*onceTestService, error) {
		calls++
		return nil, expectedErr
	}

	_, err := cell.get(build)
	assert.ErrorIs(t, err, expectedErr)

	_, err = cell.get(build)
	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, 1, calls, "failed build is not retried")
}

func TestOnceValue_Panic(t *testing.T) {
	cell := newOnceValue[*onceTestService]("panicky")

	svc, err := cell.get(func() (*onceTestService, error) {
		panic("kaboom")
	})
	assert.Nil(t, svc)
	assert.ErrorIs(t, err, ErrConstructionFailure)
	assert.Contains(t, err.Error(), "panicky")
}

func TestOnceValue_Concurrent(t *testing.T) {
	cell := newOnceValue[*onceTestService]("test")

	var calls atomic.Int32

	const goroutines = 50

	results := make([]*onceTestService, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			svc, err := cell.get(func() (*onceTestService, error) {
				calls.Add(1)
				return &onceTestService{id: 1}, nil
			})
			assert.NoError(t, err)
			results[i] = svc
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, svc := range results {
		assert.Same(t, results[0], svc)
	}
}
