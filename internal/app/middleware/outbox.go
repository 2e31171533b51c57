package middleware

import (
	"context"
	"log/slog"

	"tinyhouse/internal/app/commands"
	"tinyhouse/internal/app/outbox"
)

// OutboxFlush flushes buffered outbox records after a successful command.
// Flush failures are logged: records stay stored for the worker.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
