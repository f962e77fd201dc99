package plaid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	sdk "github.com/plaid/plaid-go/v29/plaid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout = 30 * time.Second

	dateLayout = "2006-01-02"
)

var envURLs = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

// Config carries everything needed to build one shared Client.
type Config struct {
	Env          string
	BaseURL      string
	ClientID     string
	Secret       string
	ClientName   string
	CountryCodes []string
	Language     string
	Timeout      time.Duration
}

// Client wraps the Plaid SDK and converts its models into the package's
// own types. One instance is built at startup and shared by every request.
type Client struct {
	api          *sdk.PlaidApiService
	configured   bool
	clientName   string
	countryCodes []sdk.CountryCode
	language     string
}

// BaseURLForEnv returns the API host for a Plaid environment name, falling
// back to sandbox.
func BaseURLForEnv(env string) string {
	if u, ok := envURLs[env]; ok {
		return u
	}
	return envURLs["sandbox"]
}

// NewClient creates a client. Every request is bounded by cfg.Timeout.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseURLForEnv(cfg.Env)
	}
	codes := cfg.CountryCodes
	if len(codes) == 0 {
		codes = []string{"US"}
	}
	language := cfg.Language
	if language == "" {
		language = "en"
	}

	sdkCfg := sdk.NewConfiguration()
	sdkCfg.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	sdkCfg.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	sdkCfg.UseEnvironment(sdk.Environment(baseURL))
	sdkCfg.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	countryCodes := make([]sdk.CountryCode, 0, len(codes))
	for _, c := range codes {
		countryCodes = append(countryCodes, sdk.CountryCode(c))
	}

	return &Client{
		api:          sdk.NewAPIClient(sdkCfg).PlaidApi,
		configured:   cfg.ClientID != "" && cfg.Secret != "",
		clientName:   cfg.ClientName,
		countryCodes: countryCodes,
		language:     language,
	}
}

// Configured reports whether API credentials are present.
func (c *Client) Configured() bool {
	return c.configured
}

// ExchangePublicToken swaps a Link public token for a durable access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	req := sdk.NewItemPublicTokenExchangeRequest(publicToken)
	resp, httpResp, err := c.api.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*req).Execute()
	if err != nil {
		return nil, apiError("item/public_token/exchange", httpResp, err)
	}
	return &ExchangeResponse{
		AccessToken: resp.GetAccessToken(),
		ItemID:      resp.GetItemId(),
		RequestID:   resp.GetRequestId(),
	}, nil
}

// GetAccounts returns the item's accounts with their current balances.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) (*AccountsResponse, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	req := sdk.NewAccountsGetRequest(accessToken)
	resp, httpResp, err := c.api.AccountsGet(ctx).AccountsGetRequest(*req).Execute()
	if err != nil {
		return nil, apiError("accounts/get", httpResp, err)
	}

	out := &AccountsResponse{RequestID: resp.GetRequestId()}
	for _, a := range resp.GetAccounts() {
		out.Accounts = append(out.Accounts, convertAccount(a))
	}
	it := resp.GetItem()
	out.Item = Item{ItemID: it.GetItemId(), InstitutionID: it.InstitutionId.Get()}
	return out, nil
}

// SyncTransactions fetches one page of the delta feed. An empty cursor
// starts from the beginning of the item's history.
func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string, count int) (*SyncResponse, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	req := sdk.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		req.SetCursor(cursor)
	}
	req.SetCount(int32(count))

	resp, httpResp, err := c.api.TransactionsSync(ctx).TransactionsSyncRequest(*req).Execute()
	if err != nil {
		return nil, apiError("transactions/sync", httpResp, err)
	}

	page := &SyncResponse{
		Added:      convertTransactions(resp.GetAdded()),
		Modified:   convertTransactions(resp.GetModified()),
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
		RequestID:  resp.GetRequestId(),
	}
	for _, r := range resp.GetRemoved() {
		page.Removed = append(page.Removed, RemovedTransaction{TransactionID: r.GetTransactionId()})
	}
	return page, nil
}

// GetTransactions fetches one bounded window of transactions, used for the
// first fill right after linking.
func (c *Client) GetTransactions(ctx context.Context, accessToken string, start, end time.Time, count int) (*TransactionsResponse, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	opts := sdk.NewTransactionsGetRequestOptions()
	opts.SetCount(int32(count))
	opts.SetOffset(0)
	req := sdk.NewTransactionsGetRequest(accessToken, start.Format(dateLayout), end.Format(dateLayout))
	req.SetOptions(*opts)

	resp, httpResp, err := c.api.TransactionsGet(ctx).TransactionsGetRequest(*req).Execute()
	if err != nil {
		return nil, apiError("transactions/get", httpResp, err)
	}
	return &TransactionsResponse{
		Transactions:      convertTransactions(resp.GetTransactions()),
		TotalTransactions: int(resp.GetTotalTransactions()),
		RequestID:         resp.GetRequestId(),
	}, nil
}

// RemoveItem revokes the access token on the provider side.
func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	if !c.configured {
		return ErrNotConfigured
	}
	req := sdk.NewItemRemoveRequest(accessToken)
	_, httpResp, err := c.api.ItemRemove(ctx).ItemRemoveRequest(*req).Execute()
	if err != nil {
		return apiError("item/remove", httpResp, err)
	}
	return nil
}

// CreateLinkToken creates a short-lived token the front end uses to open Link.
func (c *Client) CreateLinkToken(ctx context.Context, userID int64) (*LinkTokenResponse, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	user := sdk.LinkTokenCreateRequestUser{ClientUserId: strconv.FormatInt(userID, 10)}
	req := sdk.NewLinkTokenCreateRequest(c.clientName, c.language, c.countryCodes, user)
	req.SetProducts([]sdk.Products{sdk.PRODUCTS_TRANSACTIONS})

	resp, httpResp, err := c.api.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
	if err != nil {
		return nil, apiError("link/token/create", httpResp, err)
	}
	return &LinkTokenResponse{
		LinkToken:  resp.GetLinkToken(),
		Expiration: resp.GetExpiration().Format(time.RFC3339),
		RequestID:  resp.GetRequestId(),
	}, nil
}

// apiError turns an SDK failure into *Error when the provider answered with
// a status, and wraps transport failures as they are.
func apiError(op string, resp *http.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	if pe, decodeErr := sdk.ToPlaidError(err); decodeErr == nil && (pe.GetErrorCode() != "" || pe.GetErrorMessage() != "") {
		return &Error{
			StatusCode:     status,
			ErrorType:      string(pe.GetErrorType()),
			ErrorCode:      pe.GetErrorCode(),
			ErrorMessage:   pe.GetErrorMessage(),
			DisplayMessage: pe.DisplayMessage.Get(),
			RequestID:      pe.GetRequestId(),
		}
	}

	var openAPIErr sdk.GenericOpenAPIError
	if status >= http.StatusMultipleChoices && errors.As(err, &openAPIErr) {
		msg := string(openAPIErr.Body())
		if msg == "" {
			msg = openAPIErr.Error()
		}
		return &Error{StatusCode: status, ErrorMessage: msg}
	}

	return fmt.Errorf("failed to execute request %s: %w", op, err)
}

func convertAccount(a sdk.AccountBase) Account {
	b := a.GetBalances()
	acct := Account{
		AccountID:    a.GetAccountId(),
		Name:         a.GetName(),
		OfficialName: a.OfficialName.Get(),
		Mask:         a.Mask.Get(),
		Type:         string(a.GetType()),
		Balances: Balances{
			Current:                nullDecimal(b.Current.Get()),
			Available:              nullDecimal(b.Available.Get()),
			Limit:                  nullDecimal(b.Limit.Get()),
			ISOCurrencyCode:        b.IsoCurrencyCode.Get(),
			UnofficialCurrencyCode: b.UnofficialCurrencyCode.Get(),
		},
	}
	if st := a.Subtype.Get(); st != nil {
		s := string(*st)
		acct.Subtype = &s
	}
	return acct
}

func convertTransactions(in []sdk.Transaction) []Transaction {
	out := make([]Transaction, 0, len(in))
	for _, t := range in {
		tx := Transaction{
			TransactionID:          t.GetTransactionId(),
			AccountID:              t.GetAccountId(),
			Date:                   t.GetDate(),
			Name:                   t.GetName(),
			MerchantName:           t.MerchantName.Get(),
			Amount:                 decimal.NewFromFloat(t.GetAmount()),
			ISOCurrencyCode:        t.IsoCurrencyCode.Get(),
			UnofficialCurrencyCode: t.UnofficialCurrencyCode.Get(),
			Category:               t.GetCategory(),
			Pending:                t.GetPending(),
		}
		if pfc := t.PersonalFinanceCategory.Get(); pfc != nil {
			tx.PersonalFinanceCategory = &PersonalFinanceCategory{
				Primary:  pfc.GetPrimary(),
				Detailed: pfc.GetDetailed(),
			}
		}
		out = append(out, tx)
	}
	return out
}

func nullDecimal(f *float64) decimal.NullDecimal {
	if f == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*f))
}
