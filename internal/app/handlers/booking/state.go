package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainbooking "tinyhouse/internal/domain/booking"
)

// State is a step of one booking transaction.
type State string

const (
	StateValidating     State = "VALIDATING"
	StateComputingIndex State = "COMPUTING_INDEX"
	StateCharging       State = "CHARGING"
	StatePersisting     State = "PERSISTING"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

var ErrIllegalTransition = errors.New("booking: illegal transaction state transition")

var transitions = map[State]State{
	StateValidating:     StateComputingIndex,
	StateComputingIndex: StateCharging,
	StateCharging:       StatePersisting,
	StatePersisting:     StateDone,
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition allows the forward chain and a failure from any live state.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return transitions[s] == next
}

// transaction tracks the state of one CreateBooking call. It is owned by a
// single request and is not safe for concurrent use.
type transaction struct {
	state  State
	reason error
	logger *slog.Logger
	span   trace.Span
}

func newTransaction(ctx context.Context, logger *slog.Logger, span trace.Span) *transaction {
	tx := &transaction{state: StateValidating, logger: logger, span: span}
	tx.logger.DebugContext(ctx, "booking transaction started", "state", tx.state)
	return tx
}

func (tx *transaction) State() State { return tx.state }

func (tx *transaction) advance(ctx context.Context, next State) error {
	if !tx.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, tx.state, next)
	}
	tx.logger.DebugContext(ctx, "booking transaction state", "from", tx.state, "to", next)
	tx.span.AddEvent(string(next))
	tx.state = next
	return nil
}

// fail moves the transaction to FAILED and returns err for chaining.
func (tx *transaction) fail(ctx context.Context, err error) error {
	if tx.state.Terminal() {
		return err
	}
	from := tx.state
	tx.state = StateFailed
	tx.reason = err
	kind := domainbooking.KindOf(err)
	level := slog.LevelWarn
	if kind == domainbooking.KindStoreUnavailable || kind == "" {
		level = slog.LevelError
	}
	tx.logger.Log(ctx, level, "booking transaction failed", "from", from, "kind", kind, "error", err)
	tx.span.SetAttributes(attribute.String("booking.failed_in", string(from)), attribute.String("booking.error_kind", string(kind)))
	tx.span.RecordError(err)
	tx.span.SetStatus(codes.Error, string(kind))
	return err
}
