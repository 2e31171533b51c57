package viewer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyhouse/internal/app/handlers/viewer"
	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/app/services/auth"
	domainuser "tinyhouse/internal/domain/user"
	"tinyhouse/internal/infra/storage/memory"
)

func newWalletHandler(t *testing.T) (*viewer.WalletHandler, memory.Factory) {
	t.Helper()
	f := memory.NewFactory()
	u, err := domainuser.NewUser(domainuser.CreateParams{ID: "host", Token: "host-token", Name: "Host"})
	require.NoError(t, err)
	require.NoError(t, f.UsersRepo.Save(context.Background(), u))
	return &viewer.WalletHandler{
		Repos:         f,
		Authenticator: &auth.Service{Users: f.UsersRepo},
		Payments:      memory.NewPayments(),
	}, f
}

func Test_Wallet_ConnectThenDisconnect(t *testing.T) {
	h, f := newWalletHandler(t)
	creds := policies.Credentials{ViewerID: "host", Token: "host-token"}

	connected, err := h.Connect(context.Background(), viewer.ConnectWalletCommand{Credentials: creds, Code: "abc"})
	require.NoError(t, err)
	assert.True(t, connected.HasWallet)
	stored, err := f.UsersRepo.ByID(context.Background(), "host")
	require.NoError(t, err)
	assert.Equal(t, "acct_mem_abc", stored.WalletID)

	disconnected, err := h.Disconnect(context.Background(), viewer.DisconnectWalletCommand{Credentials: creds})
	require.NoError(t, err)
	assert.False(t, disconnected.HasWallet)
}

func Test_Wallet_RequiresViewer(t *testing.T) {
	h, _ := newWalletHandler(t)

	_, err := h.Connect(context.Background(), viewer.ConnectWalletCommand{
		Credentials: policies.Credentials{ViewerID: "host", Token: "wrong"},
		Code:        "abc",
	})
	assert.ErrorIs(t, err, viewer.ErrViewerRequired)

	_, err = h.Disconnect(context.Background(), viewer.DisconnectWalletCommand{})
	assert.ErrorIs(t, err, viewer.ErrViewerRequired)

	assert.ErrorIs(t, viewer.ConnectWalletCommand{}.Validate(), viewer.ErrCodeRequired)
}
