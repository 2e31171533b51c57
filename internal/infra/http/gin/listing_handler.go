package ginserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"tinyhouse/internal/app/dto"
	availabilityapp "tinyhouse/internal/app/handlers/availability"
	listingsapp "tinyhouse/internal/app/handlers/listings"
	"tinyhouse/internal/app/queries"
	"tinyhouse/internal/domain/shared/daterange"
)

type ListingHandler struct {
	Queries queries.Bus
}

func (h ListingHandler) Get(c *gin.Context) {
	limit, err := intQuery(c, "bookingsLimit")
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := intQuery(c, "bookingsPage")
	if err != nil {
		writeError(c, err)
		return
	}
	query := listingsapp.GetListingQuery{
		ID:            c.Param("id"),
		Credentials:   credentials(c),
		BookingsLimit: limit,
		BookingsPage:  page,
	}
	result, err := queries.Ask[listingsapp.GetListingQuery, dto.Listing](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Search(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := intQuery(c, "page")
	if err != nil {
		writeError(c, err)
		return
	}
	query := listingsapp.SearchListingsQuery{
		Location: c.Query("location"),
		Filter:   c.Query("filter"),
		Limit:    limit,
		Page:     page,
	}
	result, err := queries.Ask[listingsapp.SearchListingsQuery, dto.ListingsPage](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Calendar accepts from/to as YYYY-MM-DD or RFC3339.
func (h ListingHandler) Calendar(c *gin.Context) {
	from, err := dateQuery(c, "from")
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := dateQuery(c, "to")
	if err != nil {
		writeError(c, err)
		return
	}
	query := availabilityapp.GetCalendarQuery{ListingID: c.Param("id"), From: from, To: to}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return v, nil
}

func dateQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return daterange.ParseDate(raw)
}

var _ ListingHTTP = ListingHandler{}
