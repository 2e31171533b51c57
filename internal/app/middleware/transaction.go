package middleware

import (
	"context"

	"tinyhouse/internal/app/commands"
	"tinyhouse/internal/app/uow"
)

// TransactionalCommand marks commands whose whole handler runs in one unit.
// Commands that talk to external services between writes must not opt in.
type TransactionalCommand interface {
	commands.Command
	Transactional() bool
}

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			tc, ok := cmd.(TransactionalCommand)
			if !ok || !tc.Transactional() {
				return nextFn(ctx, cmd)
			}
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			var res any
			err := uow.Run(ctx, factory, opts, func(ctx context.Context, _ uow.UnitOfWork) error {
				var err error
				res, err = nextFn(ctx, cmd)
				return err
			})
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
