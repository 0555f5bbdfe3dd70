// Package task provides a single-result asynchronous task used for picker
// loads, inference runs and library saves.
package task

import (
	"context"
	"fmt"
	"sync"
)

// Task is the eventual result of a function running on its own goroutine.
// It resolves exactly once.
type Task[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// Go starts fn on a new goroutine and returns its task. A panic in fn
// resolves the task with an error.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				t.resolve(zero, fmt.Errorf("task panicked: %v", r))
			}
		}()
		v, err := fn(ctx)
		t.resolve(v, err)
	}()
	return t
}

// Resolved returns a task that is already complete.
func Resolved[T any](v T, err error) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	t.resolve(v, err)
	return t
}

func (t *Task[T]) resolve(v T, err error) {
	t.once.Do(func() {
		t.value, t.err = v, err
		close(t.done)
	})
}

// Done is closed once the task has resolved.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task resolves or ctx is done. Cancelling ctx does not
// cancel the task itself.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Ready reports whether the task has resolved.
func (t *Task[T]) Ready() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
