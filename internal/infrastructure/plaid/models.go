package plaid

import (
	"github.com/shopspring/decimal"
)

// Account is one entry of /accounts/get converted from the SDK model.
// Optional fields stay pointers here and are normalized by the caller.
type Account struct {
	AccountID    string
	Name         string
	OfficialName *string
	Mask         *string
	Type         string
	Subtype      *string
	Balances     Balances
}

type Balances struct {
	Current                decimal.NullDecimal
	Available              decimal.NullDecimal
	Limit                  decimal.NullDecimal
	ISOCurrencyCode        *string
	UnofficialCurrencyCode *string
}

type Item struct {
	ItemID        string
	InstitutionID *string
}

type AccountsResponse struct {
	Accounts  []Account
	Item      Item
	RequestID string
}

type PersonalFinanceCategory struct {
	Primary  string
	Detailed string
}

// Transaction is a provider transaction record. Amount follows the
// provider convention: positive is money out.
type Transaction struct {
	TransactionID           string
	AccountID               string
	Date                    string
	Name                    string
	MerchantName            *string
	Amount                  decimal.Decimal
	ISOCurrencyCode         *string
	UnofficialCurrencyCode  *string
	PersonalFinanceCategory *PersonalFinanceCategory
	Category                []string
	Pending                 bool
}

type RemovedTransaction struct {
	TransactionID string
}

// SyncResponse is one page of /transactions/sync.
type SyncResponse struct {
	Added      []Transaction
	Modified   []Transaction
	Removed    []RemovedTransaction
	NextCursor string
	HasMore    bool
	RequestID  string
}

type TransactionsResponse struct {
	Transactions      []Transaction
	TotalTransactions int
	RequestID         string
}

type ExchangeResponse struct {
	AccessToken string
	ItemID      string
	RequestID   string
}

type LinkTokenResponse struct {
	LinkToken  string
	Expiration string
	RequestID  string
}
