package ginserver

import (
	"fmt"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"tinyhouse/internal/app/commands"
	"tinyhouse/internal/app/dto"
	bookingapp "tinyhouse/internal/app/handlers/booking"
)

type BookingHandler struct {
	Commands commands.Bus
}

type createBookingRequest struct {
	ListingID string `json:"id"`
	Source    string `json:"source"`
	CheckIn   string `json:"checkIn"`
	CheckOut  string `json:"checkOut"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		Credentials:     credentials(c),
		ListingID:       req.ListingID,
		Source:          req.Source,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

var _ BookingHTTP = BookingHandler{}
