package dto

import domainuser "tinyhouse/internal/domain/user"

type Viewer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Contact   string `json:"contact"`
	HasWallet bool   `json:"hasWallet"`
	Income    int64  `json:"income"`
}

func MapViewer(u *domainuser.User) Viewer {
	if u == nil {
		return Viewer{}
	}
	return Viewer{
		ID:        string(u.ID),
		Name:      u.Name,
		Avatar:    u.Avatar,
		Contact:   u.Contact,
		HasWallet: u.Payable(),
		Income:    u.Income,
	}
}
