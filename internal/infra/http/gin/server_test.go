package ginserver_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	gin "github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyhouse/internal/app"
	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/app/services/auth"
	domainbooking "tinyhouse/internal/domain/booking"
	domainlistings "tinyhouse/internal/domain/listings"
	domainuser "tinyhouse/internal/domain/user"
	ginserver "tinyhouse/internal/infra/http/gin"
	"tinyhouse/internal/infra/obs"
	"tinyhouse/internal/infra/storage/memory"
)

type apiEnv struct {
	router   *gin.Engine
	factory  memory.Factory
	payments *memory.Payments
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := memory.NewFactory()

	host, err := domainuser.NewUser(domainuser.CreateParams{ID: "host", Token: "host-token", Name: "Host", WalletID: "acct_host"})
	require.NoError(t, err)
	tenant, err := domainuser.NewUser(domainuser.CreateParams{ID: "tenant", Token: "tenant-token", Name: "Tenant"})
	require.NoError(t, err)
	require.NoError(t, f.UsersRepo.Save(ctx, host))
	require.NoError(t, f.UsersRepo.Save(ctx, tenant))
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID: "listing", Host: "host", Title: "Cabin", Type: domainlistings.TypeHouse,
		Country: "Canada", Admin: "Ontario", City: "Toronto", NumOfGuests: 2, Price: 100,
	})
	require.NoError(t, err)
	require.NoError(t, f.ListingsRepo.Save(ctx, listing))

	payments := memory.NewPayments()
	var seq atomic.Int64
	application := app.New(app.Deps{
		UoWFactory:    f,
		Authenticator: &auth.Service{Users: f.UsersRepo, Logger: logger},
		Payments:      payments,
		Geocoder: memory.NewGeocoder(map[string]policies.Location{
			"toronto": {Country: "Canada", Admin: "Ontario", City: "Toronto"},
		}),
		Locker:      memory.NewListingLocker(),
		Outbox:      memory.NewOutbox(),
		Idempotency: memory.NewIdempotencyStore(0),
		Policy:      domainbooking.NewPolicy(0),
		Logger:      logger,
		NewID:       func() string { return fmt.Sprintf("b%d", seq.Add(1)) },
	})
	router := ginserver.NewRouter(obs.Middleware{Logger: logger}, obs.HealthHandlers{}, ginserver.Handlers{
		Booking: ginserver.BookingHandler{Commands: application.Commands},
		Listing: ginserver.ListingHandler{Queries: application.Queries},
		Viewer:  ginserver.ViewerHandler{Commands: application.Commands},
	})
	return &apiEnv{router: router, factory: f, payments: payments}
}

func (e *apiEnv) do(method, path, body string, viewer, token string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if viewer != "" {
		req.AddCookie(&http.Cookie{Name: "viewer", Value: viewer})
	}
	if token != "" {
		req.Header.Set("X-CSRF-TOKEN", token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type errorResponse struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const bookingBody = `{"id":"listing","source":"tok_visa","checkIn":"2023-06-01","checkOut":"2023-06-02"}`

func Test_CreateBooking_Created(t *testing.T) {
	env := newAPI(t)

	rec := env.do(http.MethodPost, "/api/v1/bookings", bookingBody, "tenant", "tenant-token")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Total  struct {
			Amount int64 `json:"amount"`
		} `json:"total"`
	}
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "b1", out.ID)
	assert.Equal(t, "CONFIRMED", out.Status)
	assert.Equal(t, int64(200), out.Total.Amount)
}

func Test_CreateBooking_ReplaysWithIdempotencyKey(t *testing.T) {
	env := newAPI(t)

	first := env.do(http.MethodPost, "/api/v1/bookings", bookingBody, "tenant", "tenant-token", "Idempotency-Key", "k1")
	second := env.do(http.MethodPost, "/api/v1/bookings", bookingBody, "tenant", "tenant-token", "Idempotency-Key", "k1")

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, env.payments.Charged())
}

func Test_CreateBooking_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		viewer string
		token  string
		status int
		kind   string
	}{
		{"no_cookie", bookingBody, "", "tenant-token", http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"token_mismatch", bookingBody, "tenant", "nope", http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"self_booking", bookingBody, "host", "host-token", http.StatusForbidden, "SELF_BOOKING_FORBIDDEN"},
		{"reversed_dates", `{"id":"listing","source":"tok","checkIn":"2023-06-02","checkOut":"2023-06-01"}`, "tenant", "tenant-token", http.StatusBadRequest, "INVALID_DATE_RANGE"},
		{"unknown_listing", `{"id":"nope","source":"tok","checkIn":"2023-06-01","checkOut":"2023-06-02"}`, "tenant", "tenant-token", http.StatusNotFound, "NOT_FOUND"},
		{"malformed_body", `{"id":`, "tenant", "tenant-token", http.StatusBadRequest, "INVALID_ARGUMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newAPI(t)

			rec := env.do(http.MethodPost, "/api/v1/bookings", tt.body, tt.viewer, tt.token)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, decodeError(t, rec).Error.Kind)
		})
	}
}

func Test_CreateBooking_ConflictAndChargeFailure(t *testing.T) {
	env := newAPI(t)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/bookings", bookingBody, "tenant", "tenant-token").Code)

	conflict := env.do(http.MethodPost, "/api/v1/bookings",
		`{"id":"listing","source":"tok","checkIn":"2023-06-02","checkOut":"2023-06-03"}`, "tenant", "tenant-token")
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, "dates can't overlap dates that have already been booked", decodeError(t, conflict).Error.Message)

	env.payments.Decline = true
	declined := env.do(http.MethodPost, "/api/v1/bookings",
		`{"id":"listing","source":"tok","checkIn":"2023-07-01","checkOut":"2023-07-01"}`, "tenant", "tenant-token")
	assert.Equal(t, http.StatusPaymentRequired, declined.Code)
	assert.Equal(t, "CHARGE_FAILED", decodeError(t, declined).Error.Kind)
}

func Test_Listings_GetSearchCalendar(t *testing.T) {
	env := newAPI(t)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/bookings", bookingBody, "tenant", "tenant-token").Code)

	owner := env.do(http.MethodGet, "/api/v1/listings/listing?bookingsLimit=5", "", "host", "host-token")
	require.Equal(t, http.StatusOK, owner.Code)
	assert.Contains(t, owner.Body.String(), `"authorized":true`)
	assert.Contains(t, owner.Body.String(), `"id":"b1"`)

	anon := env.do(http.MethodGet, "/api/v1/listings/listing", "", "", "")
	require.Equal(t, http.StatusOK, anon.Code)
	assert.Contains(t, anon.Body.String(), `"authorized":false`)
	assert.NotContains(t, anon.Body.String(), `"bookings"`)

	search := env.do(http.MethodGet, "/api/v1/listings?location=Toronto&filter=PRICE_LOW_TO_HIGH", "", "", "")
	require.Equal(t, http.StatusOK, search.Code)
	assert.Contains(t, search.Body.String(), `"region":"Toronto, Ontario, Canada"`)

	badFilter := env.do(http.MethodGet, "/api/v1/listings?filter=NEWEST", "", "", "")
	assert.Equal(t, http.StatusBadRequest, badFilter.Code)

	nowhere := env.do(http.MethodGet, "/api/v1/listings?location=Atlantis", "", "", "")
	assert.Equal(t, http.StatusNotFound, nowhere.Code)

	cal := env.do(http.MethodGet, "/api/v1/listings/listing/calendar?from=2023-05-31&to=2023-06-30", "", "", "")
	require.Equal(t, http.StatusOK, cal.Code)
	assert.Contains(t, cal.Body.String(), `"bookedDays":["2023-06-01","2023-06-02"]`)

	missing := env.do(http.MethodGet, "/api/v1/listings/nope", "", "", "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func Test_ViewerWallet(t *testing.T) {
	env := newAPI(t)

	connected := env.do(http.MethodPost, "/api/v1/viewer/wallet", `{"code":"abc"}`, "tenant", "tenant-token")
	require.Equal(t, http.StatusOK, connected.Code, connected.Body.String())
	assert.Contains(t, connected.Body.String(), `"hasWallet":true`)

	anon := env.do(http.MethodDelete, "/api/v1/viewer/wallet", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, anon.Code)

	noCode := env.do(http.MethodPost, "/api/v1/viewer/wallet", `{}`, "tenant", "tenant-token")
	assert.Equal(t, http.StatusBadRequest, noCode.Code)

	disconnected := env.do(http.MethodDelete, "/api/v1/viewer/wallet", "", "tenant", "tenant-token")
	require.Equal(t, http.StatusOK, disconnected.Code)
	assert.Contains(t, disconnected.Body.String(), `"hasWallet":false`)
}

func Test_Livez(t *testing.T) {
	env := newAPI(t)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/livez", "", "", "").Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz", "", "", "").Code)
}
