package item

import (
	"errors"
	"time"
)

var ErrItemNotFound = errors.New("linked item not found")

// LinkedItem is one authorized bank connection. Cursor is opaque and empty
// until the first successful sync.
type LinkedItem struct {
	ID                   string     `json:"id"`
	UserID               int64      `json:"userId"`
	RemoteItemID         string     `json:"remoteItemId"`
	EncryptedAccessToken string     `json:"-"`
	InstitutionID        *string    `json:"institutionId,omitempty"`
	InstitutionName      *string    `json:"institutionName,omitempty"`
	Cursor               *string    `json:"-"`
	LastSyncedAt         *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// CursorValue returns the cursor or "" when the item never synced.
func (i *LinkedItem) CursorValue() string {
	if i.Cursor == nil {
		return ""
	}
	return *i.Cursor
}

type CreateParams struct {
	UserID               int64
	RemoteItemID         string
	EncryptedAccessToken string
	InstitutionID        *string
	InstitutionName      *string
}

func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.RemoteItemID == "" {
		return errors.New("remote item ID is required")
	}
	if p.EncryptedAccessToken == "" {
		return errors.New("encrypted access token is required")
	}
	return nil
}

// DeleteResult counts rows removed by a cascading item delete.
type DeleteResult struct {
	Transactions int64
	Accounts     int64
}
