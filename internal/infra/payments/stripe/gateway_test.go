package stripe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/domain/shared/money"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &stripeapi.BackendConfig{
		URL:               stripeapi.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripeapi.Int64(0),
		LeveledLogger:     &stripeapi.LeveledLogger{Level: stripeapi.LevelNull},
	}
	backends := &stripeapi.Backends{
		API:     stripeapi.GetBackendWithConfig(stripeapi.APIBackend, cfg),
		Connect: stripeapi.GetBackendWithConfig(stripeapi.ConnectBackend, cfg),
		Uploads: stripeapi.GetBackendWithConfig(stripeapi.UploadsBackend, cfg),
	}
	g, err := New("sk_test_123", backends)
	require.NoError(t, err)
	return g
}

func Test_Charge_SendsDirectChargeWithFee(t *testing.T) {
	var form url.Values
	var account, idemKey string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		account = r.Header.Get("Stripe-Account")
		idemKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"ch_1","object":"charge","status":"succeeded","amount":300}`)
	})

	receipt, err := g.Charge(context.Background(), policies.ChargeRequest{
		Amount:         money.Cents(300),
		Source:         "tok_visa",
		Destination:    "acct_host",
		IdempotencyKey: "booking-b1",
	})

	require.NoError(t, err)
	assert.Equal(t, "ch_1", receipt.ChargeID)
	assert.Equal(t, int64(15), receipt.Fee.Amount)
	assert.Equal(t, "300", form.Get("amount"))
	assert.Equal(t, "usd", form.Get("currency"))
	assert.Equal(t, "15", form.Get("application_fee_amount"))
	assert.Equal(t, "tok_visa", form.Get("source"))
	assert.Equal(t, "acct_host", account)
	assert.Equal(t, "booking-b1", idemKey)
}

func Test_Charge_CardErrorIsDecline(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	})

	_, err := g.Charge(context.Background(), policies.ChargeRequest{Amount: money.Cents(300), Source: "tok", Destination: "acct"})

	assert.ErrorIs(t, err, policies.ErrChargeDeclined)
}

func Test_Charge_RejectsIncompleteRequests(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := g.Charge(context.Background(), policies.ChargeRequest{Amount: money.Cents(300), Destination: "acct"})
	assert.ErrorIs(t, err, policies.ErrChargeDeclined)
	_, err = g.Charge(context.Background(), policies.ChargeRequest{Amount: money.Cents(300), Source: "tok"})
	assert.ErrorIs(t, err, policies.ErrChargeDeclined)
}

func Test_Connect_ReturnsAccountID(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, "code_1", form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"stripe_user_id":"acct_new","token_type":"bearer"}`)
	})

	id, err := g.Connect(context.Background(), "code_1")

	require.NoError(t, err)
	assert.Equal(t, "acct_new", id)
}

func Test_New_RequiresKey(t *testing.T) {
	_, err := New(" ", nil)
	assert.Error(t, err)
}
