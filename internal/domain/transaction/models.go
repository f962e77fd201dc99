package transaction

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for transaction dates.
const DateLayout = "2006-01-02"

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidCategory     = errors.New("invalid category")
)

// Transaction is a local financial movement. Amount is signed with the
// provider convention: positive is money out.
type Transaction struct {
	ID                  string          `json:"id"`
	UserID              int64           `json:"userId"`
	AccountID           string          `json:"accountId"`
	RemoteTransactionID *string         `json:"remoteTransactionId,omitempty"`
	Date                time.Time       `json:"date"`
	Name                string          `json:"name"`
	MerchantName        *string         `json:"merchantName,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	Category            *Category       `json:"category,omitempty"`
	Pending             bool            `json:"pending"`
	Note                *string         `json:"note,omitempty"`
	IsManual            bool            `json:"isManual"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// RemoteUpsertParams is one provider "added" record already mapped to a
// local account. Note and manual flag are not part of it on purpose.
type RemoteUpsertParams struct {
	AccountID           string
	RemoteTransactionID string
	Date                time.Time
	Name                string
	MerchantName        *string
	Amount              decimal.Decimal
	Currency            string
	Category            Category
	Pending             bool
}

// RemoteUpdateParams carries the fields a provider "modified" record may change.
type RemoteUpdateParams struct {
	RemoteTransactionID string
	Date                time.Time
	Name                string
	MerchantName        *string
	Amount              decimal.Decimal
	Category            Category
	Pending             bool
}

// CreateParams creates a manual transaction.
type CreateParams struct {
	UserID       int64
	AccountID    string
	Date         time.Time
	Name         string
	MerchantName *string
	Amount       decimal.Decimal
	Currency     string
	Category     *Category
	Pending      bool
	Note         *string
}

func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.AccountID == "" {
		return errors.New("account ID is required")
	}
	if p.Date.IsZero() {
		return errors.New("date is required")
	}
	if err := validateName(p.Name); err != nil {
		return err
	}
	if utf8.RuneCountInString(p.Currency) != 3 {
		return errors.New("currency must be a 3 letter code")
	}
	if p.Category != nil && !IsValidCategory(string(*p.Category)) {
		return ErrInvalidCategory
	}
	return validateNote(p.Note)
}

// UpdateParams is a user edit. Nil fields are left unchanged.
type UpdateParams struct {
	Date         *time.Time
	Name         *string
	MerchantName *string
	Amount       *decimal.Decimal
	Category     *Category
	Pending      *bool
	Note         *string
}

func (p UpdateParams) Validate() error {
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Category != nil && !IsValidCategory(string(*p.Category)) {
		return ErrInvalidCategory
	}
	return validateNote(p.Note)
}

// ListFilter narrows a user's transaction list.
type ListFilter struct {
	UserID    int64
	AccountID string
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
	Limit     int
	Offset    int
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return errors.New("name is required")
	}
	if n > 255 {
		return errors.New("name must be at most 255 characters")
	}
	return nil
}

func validateNote(note *string) error {
	if note != nil && utf8.RuneCountInString(*note) > 1000 {
		return errors.New("note must be at most 1000 characters")
	}
	return nil
}
