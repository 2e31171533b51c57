package policies

import (
	"context"
	"errors"

	"tinyhouse/internal/domain/shared/money"
)

var (
	ErrChargeDeclined = errors.New("payments: charge declined")
	ErrConnectFailed  = errors.New("payments: failed to connect wallet")
)

type ChargeRequest struct {
	Amount money.Money
	// Source is the tenant's payment token.
	Source string
	// Destination is the host's connected wallet id.
	Destination    string
	IdempotencyKey string
}

type ChargeReceipt struct {
	ChargeID string
	Amount   money.Money
	Fee      money.Money
}

type PaymentsPort interface {
	// Charge moves Amount from Source to Destination minus the platform fee.
	// Callers must treat every error, including ctx expiry, as a failed charge.
	Charge(ctx context.Context, req ChargeRequest) (ChargeReceipt, error)
	// Connect exchanges an authorization code for a wallet id.
	Connect(ctx context.Context, code string) (string, error)
}
