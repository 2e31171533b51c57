package dto

import (
	"time"

	domainbooking "tinyhouse/internal/domain/booking"
	"tinyhouse/internal/domain/shared/daterange"
	"tinyhouse/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Booking struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listingId"`
	TenantID  string    `json:"tenantId"`
	CheckIn   string    `json:"checkIn"`
	CheckOut  string    `json:"checkOut"`
	Total     MoneyDTO  `json:"total"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type BookingPage struct {
	Total  int       `json:"total"`
	Result []Booking `json:"result"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

func MapBooking(b *domainbooking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	return Booking{
		ID:        string(b.ID),
		ListingID: string(b.ListingID),
		TenantID:  string(b.TenantID),
		CheckIn:   b.Range.CheckIn.Format(daterange.DateLayout),
		CheckOut:  b.Range.CheckOut.Format(daterange.DateLayout),
		Total:     MapMoney(b.Total),
		Status:    string(b.State),
		CreatedAt: b.CreatedAt,
	}
}

func MapBookingPage(items []*domainbooking.Booking, total int) BookingPage {
	out := make([]Booking, 0, len(items))
	for _, b := range items {
		out = append(out, MapBooking(b))
	}
	return BookingPage{Total: total, Result: out}
}
