package banksync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finsync/internal/domain/account"
	"finsync/internal/domain/item"
	"finsync/internal/domain/transaction"
	"finsync/internal/infrastructure/plaid"
)

// memStore is an in-memory stand-in for the three repositories the sync
// code touches. It enforces the same (user, remote id) uniqueness as the
// database.
type memStore struct {
	mu           sync.Mutex
	items        map[string]*item.LinkedItem
	accounts     map[string]*account.Account
	transactions map[string]*transaction.Transaction

	upsertErr   error
	saveCursors int
}

func newMemStore() *memStore {
	return &memStore{
		items:        make(map[string]*item.LinkedItem),
		accounts:     make(map[string]*account.Account),
		transactions: make(map[string]*transaction.Transaction),
	}
}

// item.Repository

type memItems struct{ *memStore }

func (s memItems) Create(ctx context.Context, p item.CreateParams) (*item.LinkedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := &item.LinkedItem{
		ID:                   uuid.NewString(),
		UserID:               p.UserID,
		RemoteItemID:         p.RemoteItemID,
		EncryptedAccessToken: p.EncryptedAccessToken,
		InstitutionID:        p.InstitutionID,
		InstitutionName:      p.InstitutionName,
		CreatedAt:            time.Now(),
	}
	s.items[it.ID] = it
	return it, nil
}

func (s memItems) GetByID(ctx context.Context, userID int64, id string) (*item.LinkedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.UserID != userID {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}

func (s memItems) ListByUserID(ctx context.Context, userID int64) ([]*item.LinkedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*item.LinkedItem
	for _, it := range s.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s memItems) ListAll(ctx context.Context) ([]*item.LinkedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*item.LinkedItem
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memItems) SaveCursor(ctx context.Context, userID int64, id string, cursor string, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.UserID != userID {
		return item.ErrItemNotFound
	}
	c := cursor
	it.Cursor = &c
	it.LastSyncedAt = &syncedAt
	s.saveCursors++
	return nil
}

func (s memItems) DeleteWithDependents(ctx context.Context, userID int64, id string) (*item.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := &item.DeleteResult{}
	accountIDs := map[string]bool{}
	for aid, a := range s.accounts {
		if a.UserID == userID && a.LinkedItemID != nil && *a.LinkedItemID == id {
			accountIDs[aid] = true
		}
	}
	for tid, tx := range s.transactions {
		if tx.UserID == userID && accountIDs[tx.AccountID] {
			delete(s.transactions, tid)
			res.Transactions++
		}
	}
	for aid := range accountIDs {
		delete(s.accounts, aid)
		res.Accounts++
	}
	if it, ok := s.items[id]; ok && it.UserID == userID {
		delete(s.items, id)
	}
	return res, nil
}

// account.Repository

type memAccounts struct{ *memStore }

func (s memAccounts) Create(ctx context.Context, p account.CreateParams) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &account.Account{
		ID:               uuid.NewString(),
		UserID:           p.UserID,
		LinkedItemID:     p.LinkedItemID,
		RemoteAccountID:  p.RemoteAccountID,
		Name:             p.Name,
		OfficialName:     p.OfficialName,
		Mask:             p.Mask,
		Type:             p.Type,
		Subtype:          p.Subtype,
		CurrentBalance:   p.CurrentBalance,
		AvailableBalance: p.AvailableBalance,
		Currency:         p.Currency,
		InstitutionName:  p.InstitutionName,
		IsManual:         p.IsManual,
	}
	s.accounts[a.ID] = a
	return a, nil
}

func (s memAccounts) GetByID(ctx context.Context, userID int64, id string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return nil, nil
	}
	return a, nil
}

func (s memAccounts) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*account.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s memAccounts) ListByItemID(ctx context.Context, userID int64, itemID string) ([]*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*account.Account
	for _, a := range s.accounts {
		if a.UserID == userID && a.LinkedItemID != nil && *a.LinkedItemID == itemID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s memAccounts) UpdateBalances(ctx context.Context, userID int64, itemID string, u account.BalanceUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.UserID == userID && a.LinkedItemID != nil && *a.LinkedItemID == itemID &&
			a.RemoteAccountID != nil && *a.RemoteAccountID == u.RemoteAccountID {
			a.CurrentBalance = u.CurrentBalance
			a.AvailableBalance = u.AvailableBalance
			return true, nil
		}
	}
	return false, nil
}

func (s memAccounts) Delete(ctx context.Context, userID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
	return nil
}

// transaction.Repository

type memTransactions struct{ *memStore }

func (s memTransactions) findRemote(userID int64, remoteID string) *transaction.Transaction {
	for _, tx := range s.transactions {
		if tx.UserID == userID && tx.RemoteTransactionID != nil && *tx.RemoteTransactionID == remoteID {
			return tx
		}
	}
	return nil
}

func (s memTransactions) UpsertRemote(ctx context.Context, userID int64, records []transaction.RemoteUpsertParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	seen := map[string]bool{}
	for _, r := range records {
		if seen[r.RemoteTransactionID] {
			return 0, errors.New("ON CONFLICT DO UPDATE command cannot affect row a second time")
		}
		seen[r.RemoteTransactionID] = true

		category := r.Category
		tx := s.findRemote(userID, r.RemoteTransactionID)
		if tx == nil {
			remoteID := r.RemoteTransactionID
			tx = &transaction.Transaction{ID: uuid.NewString(), UserID: userID, RemoteTransactionID: &remoteID}
			s.transactions[tx.ID] = tx
		}
		tx.AccountID = r.AccountID
		tx.Date = r.Date
		tx.Name = r.Name
		tx.MerchantName = r.MerchantName
		tx.Amount = r.Amount
		tx.Currency = r.Currency
		tx.Category = &category
		tx.Pending = r.Pending
	}
	return int64(len(records)), nil
}

func (s memTransactions) UpdateRemote(ctx context.Context, userID int64, p transaction.RemoteUpdateParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.findRemote(userID, p.RemoteTransactionID)
	if tx == nil {
		return false, nil
	}
	category := p.Category
	tx.Date = p.Date
	tx.Name = p.Name
	tx.MerchantName = p.MerchantName
	tx.Amount = p.Amount
	tx.Category = &category
	tx.Pending = p.Pending
	return true, nil
}

func (s memTransactions) DeleteByRemoteIDs(ctx context.Context, userID int64, remoteIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range remoteIDs {
		if tx := s.findRemote(userID, id); tx != nil {
			delete(s.transactions, tx.ID)
			n++
		}
	}
	return n, nil
}

func (s memTransactions) Create(ctx context.Context, p transaction.CreateParams) (*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &transaction.Transaction{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		AccountID: p.AccountID,
		Date:      p.Date,
		Name:      p.Name,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Category:  p.Category,
		Note:      p.Note,
		IsManual:  true,
	}
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s memTransactions) GetByID(ctx context.Context, userID int64, id string) (*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID {
		return nil, nil
	}
	return tx, nil
}

func (s memTransactions) List(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*transaction.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == f.UserID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s memTransactions) Update(ctx context.Context, userID int64, id string, p transaction.UpdateParams) (*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID {
		return nil, nil
	}
	if p.Note != nil {
		tx.Note = p.Note
	}
	if p.Name != nil {
		tx.Name = *p.Name
	}
	return tx, nil
}

func (s memTransactions) Delete(ctx context.Context, userID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, id)
	return nil
}

func (s memTransactions) SpendingByCategory(ctx context.Context, userID int64, from, to time.Time) (map[transaction.Category]decimal.Decimal, error) {
	return map[transaction.Category]decimal.Decimal{}, nil
}

func (s *memStore) countTransactions(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			n++
		}
	}
	return n
}

func (s *memStore) transactionByRemoteID(userID int64, remoteID string) *transaction.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTransactions{s}.findRemote(userID, remoteID)
}

// fakeProvider replays scripted sync pages keyed by the cursor they answer.
type fakeProvider struct {
	mu sync.Mutex

	pages        map[string]*plaid.SyncResponse
	pageErrs     map[string]error
	accounts     []plaid.Account
	accountsErr  error
	transactions []plaid.Transaction
	txErr        error
	removeErr    error
	exchange     *plaid.ExchangeResponse

	syncCalls     []string
	removeCalls   int
	removedTokens []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		pages:    make(map[string]*plaid.SyncResponse),
		pageErrs: make(map[string]error),
		exchange: &plaid.ExchangeResponse{AccessToken: "access-sandbox-1", ItemID: "remote-item-1"},
	}
}

func (p *fakeProvider) ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
	if publicToken == "" {
		return nil, &plaid.Error{StatusCode: 400, ErrorCode: "INVALID_PUBLIC_TOKEN", ErrorMessage: "bad token"}
	}
	return p.exchange, nil
}

func (p *fakeProvider) GetAccounts(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error) {
	if p.accountsErr != nil {
		return nil, p.accountsErr
	}
	return &plaid.AccountsResponse{Accounts: p.accounts}, nil
}

func (p *fakeProvider) SyncTransactions(ctx context.Context, accessToken, cursor string, count int) (*plaid.SyncResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncCalls = append(p.syncCalls, cursor)
	if err := p.pageErrs[cursor]; err != nil {
		return nil, err
	}
	page, ok := p.pages[cursor]
	if !ok {
		return nil, fmt.Errorf("no page scripted for cursor %q", cursor)
	}
	return page, nil
}

func (p *fakeProvider) GetTransactions(ctx context.Context, accessToken string, start, end time.Time, count int) (*plaid.TransactionsResponse, error) {
	if p.txErr != nil {
		return nil, p.txErr
	}
	return &plaid.TransactionsResponse{Transactions: p.transactions, TotalTransactions: len(p.transactions)}, nil
}

func (p *fakeProvider) RemoveItem(ctx context.Context, accessToken string) error {
	p.removeCalls++
	p.removedTokens = append(p.removedTokens, accessToken)
	return p.removeErr
}

func (p *fakeProvider) CreateLinkToken(ctx context.Context, userID int64) (*plaid.LinkTokenResponse, error) {
	return &plaid.LinkTokenResponse{LinkToken: "link-sandbox-1"}, nil
}

// memLocker is a process-local Locker.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true, nil
}

type recordingNotifier struct {
	summaries []*SyncSummary
}

func (n *recordingNotifier) NotifySyncComplete(ctx context.Context, summary *SyncSummary) {
	n.summaries = append(n.summaries, summary)
}

func strPtr(s string) *string { return &s }

func remoteTx(id, accountID, amount, name string) plaid.Transaction {
	return plaid.Transaction{
		TransactionID: id,
		AccountID:     accountID,
		Date:          "2024-01-05",
		Name:          name,
		Amount:        decimal.RequireFromString(amount),
	}
}
