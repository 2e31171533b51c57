package memory

import (
	"context"
	"strings"
	"sync"

	domainuser "tinyhouse/internal/domain/user"
)

// UserRepository stores users in memory. Not suitable for production.
type UserRepository struct {
	mu   sync.RWMutex
	byID map[domainuser.ID]*domainuser.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byID: make(map[domainuser.ID]*domainuser.User)}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, ok := r.byID[id]; ok {
		return user.Clone(), nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) ByToken(ctx context.Context, id domainuser.ID, token string) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok || token == "" || user.Token != token {
		return nil, domainuser.ErrNotFound
	}
	return user.Clone(), nil
}

func (r *UserRepository) Save(ctx context.Context, user *domainuser.User) error {
	if user == nil || strings.TrimSpace(string(user.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[user.ID] = user.Clone()
	return nil
}

func (r *UserRepository) ApplyIncome(ctx context.Context, id domainuser.ID, bookingID string, amount int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return false, domainuser.ErrNotFound
	}
	return user.CreditIncome(bookingID, amount)
}

func (r *UserRepository) AppendBooking(ctx context.Context, id domainuser.ID, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return domainuser.ErrNotFound
	}
	return user.AddBooking(bookingID)
}

func (r *UserRepository) SetWallet(ctx context.Context, id domainuser.ID, walletID string) (*domainuser.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	user.WalletID = strings.TrimSpace(walletID)
	return user.Clone(), nil
}

var _ domainuser.Repository = (*UserRepository)(nil)
