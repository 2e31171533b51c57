package fixtures_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/infra/fixtures"
	"tinyhouse/internal/infra/storage/memory"
)

const sample = `{
  "users": [
    {"id": "host", "token": "host-token", "name": "Host", "walletId": "acct_host"},
    {"id": "", "name": "nobody"}
  ],
  "listings": [
    {"id": "l1", "host": "host", "title": "Cabin", "type": "HOUSE", "country": "Canada", "admin": "Ontario", "city": "Toronto", "numOfGuests": 2, "price": 100},
    {"id": "l2", "host": "host", "title": "Broken", "type": "CASTLE", "price": 100}
  ],
  "locations": {"Toronto": {"Country": "Canada", "Admin": "Ontario", "City": "Toronto"}}
}`

func Test_LoadFile_SeedsValidRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	f := memory.NewFactory()
	geo := memory.NewGeocoder(nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	res, err := fixtures.LoadFile(context.Background(), path, fixtures.Target{
		Users: f.UsersRepo, Listings: f.ListingsRepo, Locations: geo,
	}, logger)

	require.NoError(t, err)
	assert.Equal(t, fixtures.Result{Users: 1, Listings: 1, Locations: 1}, res)
	host, err := f.UsersRepo.ByToken(context.Background(), "host", "host-token")
	require.NoError(t, err)
	assert.Equal(t, "acct_host", host.WalletID)
	_, err = f.ListingsRepo.ByID(context.Background(), "l1")
	assert.NoError(t, err)
	loc, err := geo.Geocode(context.Background(), "toronto")
	require.NoError(t, err)
	assert.Equal(t, policies.Location{Country: "Canada", Admin: "Ontario", City: "Toronto"}, loc)
}

func Test_LoadFile_MissingFileIsSkipped(t *testing.T) {
	f := memory.NewFactory()
	res, err := fixtures.LoadFile(context.Background(), filepath.Join(t.TempDir(), "none.json"), fixtures.Target{
		Users: f.UsersRepo, Listings: f.ListingsRepo,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, err)
	assert.Zero(t, res)
}
