package batis

import (
	"fmt"
	"sync"
)

// onceValue builds a value on first access and caches the outcome.
// A failed or panicking build is cached too and never retried, so every
// caller observes the same instance or the same error.
type onceValue[T any] struct {
	service string
	once    sync.Once
	value   T
	err     error
}

// newOnceValue creates a cell for the named service.
func newOnceValue[T any](service string) *onceValue[T] {
	return &onceValue[T]{service: service}
}

// get returns the cached outcome, running build the first time.
func (o *onceValue[T]) get(build func() (T, error)) (T, error) {
	o.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T

				o.value = zero
				o.err = NewConstructionError(o.service, fmt.Errorf("panic: %v", r))
			}
		}()

		o.value, o.err = build()
	})

	return o.value, o.err
}
