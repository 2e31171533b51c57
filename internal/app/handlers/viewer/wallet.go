package viewer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tinyhouse/internal/app/commands"
	"tinyhouse/internal/app/dto"
	"tinyhouse/internal/app/middleware"
	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/app/services/auth"
	"tinyhouse/internal/app/uow"
)

const (
	connectWalletKey    = "viewer.connect_wallet"
	disconnectWalletKey = "viewer.disconnect_wallet"
)

var (
	ErrViewerRequired = errors.New("viewer: viewer cannot be found")
	ErrCodeRequired   = errors.New("viewer: authorization code is required")
)

// ConnectWalletCommand links the viewer's payout account from an OAuth code.
type ConnectWalletCommand struct {
	Credentials policies.Credentials
	Code        string
}

func (c ConnectWalletCommand) Key() string { return connectWalletKey }

func (c ConnectWalletCommand) ViewerCredentials() policies.Credentials { return c.Credentials }

func (c ConnectWalletCommand) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return ErrCodeRequired
	}
	return nil
}

type DisconnectWalletCommand struct {
	Credentials policies.Credentials
}

func (c DisconnectWalletCommand) Key() string { return disconnectWalletKey }

func (c DisconnectWalletCommand) ViewerCredentials() policies.Credentials { return c.Credentials }

type WalletHandler struct {
	Repos         uow.Repositories
	Authenticator policies.Authenticator
	Payments      policies.PaymentsPort
	Logger        *slog.Logger
}

func (h *WalletHandler) Connect(ctx context.Context, cmd ConnectWalletCommand) (*dto.Viewer, error) {
	viewer, err := auth.Resolve(ctx, h.Authenticator, cmd.Credentials)
	if err != nil {
		return nil, err
	}
	if viewer == nil {
		return nil, ErrViewerRequired
	}
	walletID, err := h.Payments.Connect(ctx, strings.TrimSpace(cmd.Code))
	if err != nil {
		return nil, err
	}
	updated, err := h.Repos.Users().SetWallet(ctx, viewer.ID, walletID)
	if err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "wallet connected", "viewer_id", viewer.ID)
	out := dto.MapViewer(updated)
	return &out, nil
}

func (h *WalletHandler) Disconnect(ctx context.Context, cmd DisconnectWalletCommand) (*dto.Viewer, error) {
	viewer, err := auth.Resolve(ctx, h.Authenticator, cmd.Credentials)
	if err != nil {
		return nil, err
	}
	if viewer == nil {
		return nil, ErrViewerRequired
	}
	updated, err := h.Repos.Users().SetWallet(ctx, viewer.ID, "")
	if err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "wallet disconnected", "viewer_id", viewer.ID)
	out := dto.MapViewer(updated)
	return &out, nil
}

func (h *WalletHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Register adds both wallet commands to bus.
func (h *WalletHandler) Register(bus *commands.InMemoryBus) {
	commands.RegisterHandler[ConnectWalletCommand, *dto.Viewer](bus, connectWalletKey, commands.HandlerFunc[ConnectWalletCommand, *dto.Viewer](h.Connect))
	commands.RegisterHandler[DisconnectWalletCommand, *dto.Viewer](bus, disconnectWalletKey, commands.HandlerFunc[DisconnectWalletCommand, *dto.Viewer](h.Disconnect))
}

var _ middleware.Credentialed = ConnectWalletCommand{}
var _ middleware.Credentialed = DisconnectWalletCommand{}
