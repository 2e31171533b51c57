package commands

import (
	"context"
	"errors"
)

// Command is a write intent. Key selects the registered handler.
type Command interface {
	Key() string
}

// Idempotent commands are replayed from the stored result when the same key
// arrives again. ResultPrototype returns a pointer to decode the result into.
type Idempotent interface {
	Command
	IdempotencyKey() string
	ResultPrototype() any
}

type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

var (
	ErrHandlerNotFound = errors.New("commands: handler not found")
	ErrInvalidCommand  = errors.New("commands: invalid command for handler")
	ErrResultType      = errors.New("commands: result type mismatch")
)

// Dispatch is the typed entry point used by transports. A nil bus reports
// ErrHandlerNotFound so an unwired route fails like an unknown command.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrHandlerNotFound
	}
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil || res == nil {
		return zero, err
	}
	value, ok := res.(R)
	if !ok {
		return zero, ErrResultType
	}
	return value, nil
}
