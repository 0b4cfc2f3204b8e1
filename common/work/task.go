package work

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type task[T any] struct {
	id           string
	execute      func(ctx context.Context) (T, error)
	errorHandler func(error)
	timeout      time.Duration
}

// TaskOption configures a task
type TaskOption[T any] func(*task[T])

// WithID replaces the generated task id
func WithID[T any](id string) TaskOption[T] {
	return func(t *task[T]) {
		t.id = id
	}
}

// WithErrorHandler is called with the error of a failed execution
func WithErrorHandler[T any](handler func(error)) TaskOption[T] {
	return func(t *task[T]) {
		t.errorHandler = handler
	}
}

// WithTimeout overrides the pool task timeout
func WithTimeout[T any](timeout time.Duration) TaskOption[T] {
	return func(t *task[T]) {
		t.timeout = timeout
	}
}

// NewTask wraps execute as an Executor with a time-ordered id
func NewTask[T any](execute func(ctx context.Context) (T, error), options ...TaskOption[T]) (Executor[T], error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	t := &task[T]{
		id:      id.String(),
		execute: execute,
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// SimpleTask wraps a function without a result
func SimpleTask(execute func(ctx context.Context) error, options ...TaskOption[struct{}]) (Executor[struct{}], error) {
	return NewTask(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, execute(ctx)
	}, options...)
}

func (t *task[T]) ExecutorID() string {
	return t.id
}

func (t *task[T]) Execute(ctx context.Context) (T, error) {
	return t.execute(ctx)
}

func (t *task[T]) OnError(err error) {
	if t.errorHandler != nil {
		t.errorHandler(err)
	}
}

func (t *task[T]) Timeout() time.Duration {
	return t.timeout
}
