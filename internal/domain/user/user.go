package user

import (
	"context"
	"errors"
	"strings"

	"tinyhouse/internal/domain/shared/money"
)

var (
	ErrIDRequired    = errors.New("user: id is required")
	ErrNameRequired  = errors.New("user: name is required")
	ErrNotFound      = errors.New("user: not found")
	ErrBookingID     = errors.New("user: booking id is required")
	ErrInvalidIncome = errors.New("user: income amount must be non-negative")
)

type ID string

type User struct {
	ID       ID
	Token    string
	Name     string
	Avatar   string
	Contact  string
	WalletID string
	Income   int64
	Bookings []string
	Listings []string
	// CreditedBookings holds booking ids already counted in Income.
	CreditedBookings []string
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	// ByToken matches both id and the current session token.
	ByToken(ctx context.Context, id ID, token string) (*User, error)
	Save(ctx context.Context, user *User) error
	// ApplyIncome credits amount once per booking id and reports whether it did.
	ApplyIncome(ctx context.Context, id ID, bookingID string, amount int64) (bool, error)
	// AppendBooking adds the booking id unless already present.
	AppendBooking(ctx context.Context, id ID, bookingID string) error
	SetWallet(ctx context.Context, id ID, walletID string) (*User, error)
}

type CreateParams struct {
	ID       ID
	Token    string
	Name     string
	Avatar   string
	Contact  string
	WalletID string
}

func NewUser(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	return &User{
		ID:       ID(id),
		Token:    params.Token,
		Name:     name,
		Avatar:   strings.TrimSpace(params.Avatar),
		Contact:  strings.TrimSpace(params.Contact),
		WalletID: strings.TrimSpace(params.WalletID),
	}, nil
}

// Payable reports whether the user can receive payouts.
func (u *User) Payable() bool {
	return u != nil && strings.TrimSpace(u.WalletID) != ""
}

func (u *User) HasCredited(bookingID string) bool {
	return contains(u.CreditedBookings, bookingID)
}

func (u *User) HasBooking(bookingID string) bool {
	return contains(u.Bookings, bookingID)
}

// CreditIncome adds amount to Income once per booking. A sum past the int64
// range fails with money.ErrOverflow and leaves the user unchanged.
func (u *User) CreditIncome(bookingID string, amount int64) (bool, error) {
	if strings.TrimSpace(bookingID) == "" {
		return false, ErrBookingID
	}
	if amount < 0 {
		return false, ErrInvalidIncome
	}
	if u.HasCredited(bookingID) {
		return false, nil
	}
	income, err := money.Cents(u.Income).Add(money.Cents(amount))
	if err != nil {
		return false, err
	}
	u.Income = income.Amount
	u.CreditedBookings = append(u.CreditedBookings, bookingID)
	return true, nil
}

func (u *User) AddBooking(bookingID string) error {
	if strings.TrimSpace(bookingID) == "" {
		return ErrBookingID
	}
	if !u.HasBooking(bookingID) {
		u.Bookings = append(u.Bookings, bookingID)
	}
	return nil
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Bookings = append([]string(nil), u.Bookings...)
	out.Listings = append([]string(nil), u.Listings...)
	out.CreditedBookings = append([]string(nil), u.CreditedBookings...)
	return &out
}

func contains(values []string, v string) bool {
	for _, current := range values {
		if current == v {
			return true
		}
	}
	return false
}
