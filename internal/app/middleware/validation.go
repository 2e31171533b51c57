package middleware

import (
	"context"

	"tinyhouse/internal/app/commands"
	"tinyhouse/internal/app/queries"
)

// SelfValidating messages check their own shape before reaching a handler.
type SelfValidating interface {
	Validate() error
}

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, message any) error

func (f ValidatorFunc) Validate(ctx context.Context, message any) error {
	return f(ctx, message)
}

// SelfValidation is the default validator: it defers to SelfValidating messages.
var SelfValidation Validator = ValidatorFunc(func(_ context.Context, message any) error {
	if v, ok := message.(SelfValidating); ok {
		return v.Validate()
	}
	return nil
})

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := v.Validate(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := v.Validate(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
