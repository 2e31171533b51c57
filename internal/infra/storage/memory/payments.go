package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/domain/booking"
)

// Payments is a deterministic gateway fake. Charges replay by idempotency
// key like the real gateway does.
type Payments struct {
	mu       sync.Mutex
	charges  map[string]policies.ChargeReceipt
	requests []policies.ChargeRequest
	seq      int

	// Decline makes every charge fail.
	Decline bool
	// Block makes every charge wait for its context to end.
	Block bool
}

func NewPayments() *Payments {
	return &Payments{charges: make(map[string]policies.ChargeReceipt)}
}

func (p *Payments) Charge(ctx context.Context, req policies.ChargeRequest) (policies.ChargeReceipt, error) {
	p.mu.Lock()
	block, decline := p.Block, p.Decline
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return policies.ChargeReceipt{}, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return policies.ChargeReceipt{}, err
	}
	if decline || strings.TrimSpace(req.Source) == "" || !req.Amount.IsPositive() {
		return policies.ChargeReceipt{}, policies.ErrChargeDeclined
	}
	if strings.TrimSpace(req.Destination) == "" {
		return policies.ChargeReceipt{}, fmt.Errorf("%w: missing destination", policies.ErrChargeDeclined)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if req.IdempotencyKey != "" {
		if receipt, ok := p.charges[req.IdempotencyKey]; ok {
			return receipt, nil
		}
	}
	p.seq++
	receipt := policies.ChargeReceipt{
		ChargeID: fmt.Sprintf("ch_mem_%d", p.seq),
		Amount:   req.Amount,
		Fee:      booking.PlatformFee(req.Amount),
	}
	if req.IdempotencyKey != "" {
		p.charges[req.IdempotencyKey] = receipt
	}
	return receipt, nil
}

// Connect accepts any non-empty code and derives a wallet id from it.
func (p *Payments) Connect(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", policies.ErrConnectFailed
	}
	return "acct_mem_" + code, nil
}

// Requests returns every charge request seen so far.
func (p *Payments) Requests() []policies.ChargeRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]policies.ChargeRequest(nil), p.requests...)
}

// Charged counts distinct successful charges.
func (p *Payments) Charged() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

var _ policies.PaymentsPort = (*Payments)(nil)
