// Package fixtures seeds users, listings and geocoder entries from a JSON
// file so a fresh store has something to book.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	jsoniter "github.com/json-iterator/go"

	"tinyhouse/internal/app/policies"
	domainlistings "tinyhouse/internal/domain/listings"
	domainuser "tinyhouse/internal/domain/user"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type File struct {
	Users     []User                       `json:"users"`
	Listings  []Listing                    `json:"listings"`
	Locations map[string]policies.Location `json:"locations"`
}

type User struct {
	ID       string `json:"id"`
	Token    string `json:"token"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Contact  string `json:"contact"`
	WalletID string `json:"walletId"`
}

type Listing struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Type        string `json:"type"`
	Address     string `json:"address"`
	Country     string `json:"country"`
	Admin       string `json:"admin"`
	City        string `json:"city"`
	NumOfGuests int    `json:"numOfGuests"`
	Price       int64  `json:"price"`
}

// Target receives the seeded records. Locations is optional.
type Target struct {
	Users     domainuser.Repository
	Listings  domainlistings.ListingRepository
	Locations interface {
		Add(address string, loc policies.Location)
	}
}

type Result struct {
	Users     int
	Listings  int
	Locations int
}

// LoadFile reads path and seeds it. A missing file is not an error.
func LoadFile(ctx context.Context, path string, target Target, logger *slog.Logger) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("fixtures: read: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return Result{}, fmt.Errorf("fixtures: decode: %w", err)
	}
	return Seed(ctx, f, target, logger)
}

// Seed saves every valid record and skips invalid ones with a log line.
// Existing records with the same id are replaced.
func Seed(ctx context.Context, f File, target Target, logger *slog.Logger) (Result, error) {
	var res Result
	for _, fx := range f.Users {
		u, err := domainuser.NewUser(domainuser.CreateParams{
			ID:       domainuser.ID(fx.ID),
			Token:    fx.Token,
			Name:     fx.Name,
			Avatar:   fx.Avatar,
			Contact:  fx.Contact,
			WalletID: fx.WalletID,
		})
		if err != nil {
			logger.Error("fixture user invalid", "user_id", fx.ID, "error", err)
			continue
		}
		if err := target.Users.Save(ctx, u); err != nil {
			return res, fmt.Errorf("fixtures: save user %s: %w", fx.ID, err)
		}
		res.Users++
	}
	for _, fx := range f.Listings {
		l, err := domainlistings.NewListing(domainlistings.CreateListingParams{
			ID:          domainlistings.ListingID(fx.ID),
			Host:        domainlistings.HostID(fx.Host),
			Title:       fx.Title,
			Description: fx.Description,
			Image:       fx.Image,
			Type:        domainlistings.ListingType(fx.Type),
			Address:     fx.Address,
			Country:     fx.Country,
			Admin:       fx.Admin,
			City:        fx.City,
			NumOfGuests: fx.NumOfGuests,
			Price:       fx.Price,
		})
		if err != nil {
			logger.Error("fixture listing invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		if err := target.Listings.Save(ctx, l); err != nil {
			return res, fmt.Errorf("fixtures: save listing %s: %w", fx.ID, err)
		}
		res.Listings++
	}
	if target.Locations != nil {
		for address, loc := range f.Locations {
			target.Locations.Add(address, loc)
			res.Locations++
		}
	}
	return res, nil
}
