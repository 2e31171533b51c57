package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"tinyhouse/internal/app/commands"
	availabilityapp "tinyhouse/internal/app/handlers/availability"
	listingsapp "tinyhouse/internal/app/handlers/listings"
	viewerapp "tinyhouse/internal/app/handlers/viewer"
	"tinyhouse/internal/app/middleware"
	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/app/queries"
	domainbooking "tinyhouse/internal/domain/booking"
	domainlistings "tinyhouse/internal/domain/listings"
	"tinyhouse/internal/domain/shared/daterange"
	domainuser "tinyhouse/internal/domain/user"
)

const (
	kindInvalidArgument = "INVALID_ARGUMENT"
	kindPaymentsFailed  = "PAYMENTS_UNAVAILABLE"
	kindInternal        = "INTERNAL"
)

var kindStatus = map[domainbooking.Kind]int{
	domainbooking.KindUnauthenticated:      http.StatusUnauthorized,
	domainbooking.KindNotFound:             http.StatusNotFound,
	domainbooking.KindSelfBookingForbidden: http.StatusForbidden,
	domainbooking.KindInvalidDateRange:     http.StatusBadRequest,
	domainbooking.KindHostNotPayable:       http.StatusUnprocessableEntity,
	domainbooking.KindDateConflict:         http.StatusConflict,
	domainbooking.KindChargeFailed:         http.StatusPaymentRequired,
	domainbooking.KindStoreUnavailable:     http.StatusServiceUnavailable,
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeError maps application errors onto a status and a public message.
// Causes are attached to the gin context for the access log only.
func writeError(c *gin.Context, err error) {
	status, body := classify(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func classify(err error) (int, errorBody) {
	var bookingErr *domainbooking.Error
	if errors.As(err, &bookingErr) {
		status, ok := kindStatus[bookingErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		return status, errorBody{Kind: string(bookingErr.Kind), Message: bookingErr.Public()}
	}
	switch {
	case errors.Is(err, viewerapp.ErrViewerRequired):
		return http.StatusUnauthorized, errorBody{Kind: string(domainbooking.KindUnauthenticated), Message: "viewer cannot be found"}
	case errors.Is(err, domainlistings.ErrNotFound):
		return http.StatusNotFound, errorBody{Kind: string(domainbooking.KindNotFound), Message: "listing can't be found"}
	case errors.Is(err, domainuser.ErrNotFound):
		return http.StatusNotFound, errorBody{Kind: string(domainbooking.KindNotFound), Message: "viewer cannot be found"}
	case errors.Is(err, policies.ErrLocationNotFound):
		return http.StatusNotFound, errorBody{Kind: string(domainbooking.KindNotFound), Message: "failed to find location"}
	case errors.Is(err, daterange.ErrInvalidRange), errors.Is(err, daterange.ErrInvalidDate):
		return http.StatusBadRequest, errorBody{Kind: string(domainbooking.KindInvalidDateRange), Message: err.Error()}
	case errors.Is(err, listingsapp.ErrUnknownFilter),
		errors.Is(err, availabilityapp.ErrWindowTooLarge),
		errors.Is(err, viewerapp.ErrCodeRequired),
		errors.Is(err, domainlistings.ErrIDRequired),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, errorBody{Kind: kindInvalidArgument, Message: err.Error()}
	case errors.Is(err, policies.ErrConnectFailed):
		return http.StatusBadGateway, errorBody{Kind: kindPaymentsFailed, Message: "failed to connect with the payment provider"}
	case errors.Is(err, middleware.ErrViewerUnavailable):
		return http.StatusServiceUnavailable, errorBody{Kind: string(domainbooking.KindStoreUnavailable), Message: "store unavailable"}
	case errors.Is(err, commands.ErrHandlerNotFound), errors.Is(err, queries.ErrHandlerNotFound):
		return http.StatusNotImplemented, errorBody{Kind: kindInternal, Message: "operation unavailable"}
	}
	return http.StatusInternalServerError, errorBody{Kind: kindInternal, Message: "internal error"}
}

var errBadRequest = errors.New("malformed request")
