package account

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var accountTypes = map[string]struct{}{
	"depository": {},
	"credit":     {},
	"loan":       {},
	"investment": {},
	"other":      {},
}

// Domain errors
var (
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrAccountNotFound    = errors.New("account not found")
	ErrLinkedAccount      = errors.New("linked accounts are removed by disconnecting their bank")
)

// Account mirrors one remote account, or a manual account when
// LinkedItemID is nil.
type Account struct {
	ID               string              `json:"id"`
	UserID           int64               `json:"userId"`
	LinkedItemID     *string             `json:"linkedItemId,omitempty"`
	RemoteAccountID  *string             `json:"remoteAccountId,omitempty"`
	Name             string              `json:"name"`
	OfficialName     *string             `json:"officialName,omitempty"`
	Mask             *string             `json:"mask,omitempty"`
	Type             string              `json:"type"`
	Subtype          *string             `json:"subtype,omitempty"`
	CurrentBalance   decimal.NullDecimal `json:"currentBalance"`
	AvailableBalance decimal.NullDecimal `json:"availableBalance"`
	Currency         string              `json:"currency"`
	InstitutionName  *string             `json:"institutionName,omitempty"`
	IsManual         bool                `json:"isManual"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// CreateParams creates one account. Linked accounts carry LinkedItemID
// and RemoteAccountID; manual ones leave both nil.
type CreateParams struct {
	UserID           int64
	LinkedItemID     *string
	RemoteAccountID  *string
	Name             string
	OfficialName     *string
	Mask             *string
	Type             string
	Subtype          *string
	CurrentBalance   decimal.NullDecimal
	AvailableBalance decimal.NullDecimal
	Currency         string
	InstitutionName  *string
	IsManual         bool
}

func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.Name == "" {
		return errors.New("account name is required")
	}
	if !IsValidAccountType(p.Type) {
		return ErrInvalidAccountType
	}
	if len(p.Currency) != 3 {
		return errors.New("currency must be a 3 letter code")
	}
	if p.IsManual && (p.LinkedItemID != nil || p.RemoteAccountID != nil) {
		return errors.New("manual accounts cannot reference a linked item")
	}
	if !p.IsManual && (p.LinkedItemID == nil || p.RemoteAccountID == nil) {
		return errors.New("linked accounts need an item and a remote account ID")
	}
	return nil
}

// BalanceUpdate overwrites the balances of the account with RemoteAccountID
// under one linked item.
type BalanceUpdate struct {
	RemoteAccountID  string
	CurrentBalance   decimal.NullDecimal
	AvailableBalance decimal.NullDecimal
}

// IsValidAccountType accepts the provider's account type names; unknown
// types are mapped to "other" by callers before validation.
func IsValidAccountType(t string) bool {
	_, ok := accountTypes[t]
	return ok
}

// NormalizeType maps a provider type to a known account type.
func NormalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if IsValidAccountType(t) {
		return t
	}
	return "other"
}
