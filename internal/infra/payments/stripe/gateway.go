package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/domain/booking"
)

// Gateway charges tenants directly on the host's connected account and
// keeps the platform fee as an application fee.
type Gateway struct {
	api *client.API
}

// New builds a gateway. Backends may be nil to use the live API.
func New(secretKey string, backends *stripeapi.Backends) (*Gateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Gateway{api: api}, nil
}

func (g *Gateway) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeReceipt, error) {
	if !req.Amount.IsPositive() || strings.TrimSpace(req.Source) == "" {
		return policies.ChargeReceipt{}, policies.ErrChargeDeclined
	}
	if strings.TrimSpace(req.Destination) == "" {
		return policies.ChargeReceipt{}, fmt.Errorf("%w: missing destination", policies.ErrChargeDeclined)
	}
	fee := booking.PlatformFee(req.Amount)
	params := &stripeapi.ChargeParams{
		Amount:               stripeapi.Int64(req.Amount.Amount),
		Currency:             stripeapi.String(strings.ToLower(req.Amount.Currency)),
		ApplicationFeeAmount: stripeapi.Int64(fee.Amount),
	}
	params.Context = ctx
	params.SetStripeAccount(req.Destination)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if err := params.SetSource(req.Source); err != nil {
		return policies.ChargeReceipt{}, fmt.Errorf("%w: %v", policies.ErrChargeDeclined, err)
	}

	ch, err := g.api.Charges.New(params)
	if err != nil {
		return policies.ChargeReceipt{}, translate(err)
	}
	if ch.Status != stripeapi.ChargeStatusSucceeded {
		return policies.ChargeReceipt{}, fmt.Errorf("%w: charge %s is %s", policies.ErrChargeDeclined, ch.ID, ch.Status)
	}
	return policies.ChargeReceipt{ChargeID: ch.ID, Amount: req.Amount, Fee: fee}, nil
}

// Connect finishes the OAuth flow and returns the connected account id.
func (g *Gateway) Connect(ctx context.Context, code string) (string, error) {
	params := &stripeapi.OAuthTokenParams{
		GrantType: stripeapi.String("authorization_code"),
		Code:      stripeapi.String(code),
	}
	params.Context = ctx
	token, err := g.api.OAuth.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", policies.ErrConnectFailed, err)
	}
	if token.StripeUserID == "" {
		return "", policies.ErrConnectFailed
	}
	return token.StripeUserID, nil
}

// translate maps card and request errors to a decline and keeps the rest as
// transport failures. Both fail the booking.
func translate(err error) error {
	var serr *stripeapi.Error
	if errors.As(err, &serr) {
		switch serr.Type {
		case stripeapi.ErrorTypeCard, stripeapi.ErrorTypeInvalidRequest:
			return fmt.Errorf("%w: %s", policies.ErrChargeDeclined, serr.Msg)
		}
	}
	return fmt.Errorf("stripe: charge: %w", err)
}

var _ policies.PaymentsPort = (*Gateway)(nil)
