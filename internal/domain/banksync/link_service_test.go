package banksync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/infrastructure/plaid"
)

func TestLinkNewItem(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.exchange = &plaid.ExchangeResponse{AccessToken: "access-sandbox-2", ItemID: "remote-item-2"}
	f.provider.accounts = []plaid.Account{
		{AccountID: "b1", Name: "Checking", Type: "depository"},
		{AccountID: "b2", Name: "Visa", Type: "credit"},
	}
	f.provider.transactions = []plaid.Transaction{
		remoteTx("bt1", "b1", "3.00", "Bus"),
		remoteTx("bt2", "b2", "60.00", "Dinner"),
		remoteTx("bt3", "unknown", "1.00", "Dropped"),
	}

	res, err := f.link.LinkNewItem(context.Background(), testUser, "public-sandbox-2", InstitutionMeta{ID: "ins_1", Name: "First Bank"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.AccountsAdded)
	assert.Equal(t, 2, res.TransactionsAdded)
	assert.Empty(t, res.InitialSyncError)

	it, err := memItems{f.store}.GetByID(context.Background(), testUser, res.ItemID)
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, "remote-item-2", it.RemoteItemID)
	assert.NotContains(t, it.EncryptedAccessToken, "access-sandbox-2")
	require.NotNil(t, it.InstitutionName)
	assert.Equal(t, "First Bank", *it.InstitutionName)
	assert.Nil(t, it.Cursor)

	token, err := f.vault.Decrypt(it.EncryptedAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-sandbox-2", token)
}

func TestLinkNewItem_InitialFetchFailureIsNotFatal(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.accounts = []plaid.Account{{AccountID: "b1", Name: "Checking", Type: "depository"}}
	f.provider.txErr = &plaid.Error{StatusCode: 400, ErrorCode: "PRODUCT_NOT_READY"}

	res, err := f.link.LinkNewItem(context.Background(), testUser, "public-sandbox-2", InstitutionMeta{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.AccountsAdded)
	assert.Equal(t, 0, res.TransactionsAdded)
	assert.Contains(t, res.InitialSyncError, "PRODUCT_NOT_READY")

	it, err := memItems{f.store}.GetByID(context.Background(), testUser, res.ItemID)
	require.NoError(t, err)
	assert.NotNil(t, it)
}

func TestLinkNewItem_AccountFetchFailureDiscardsItem(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.accountsErr = errors.New("boom")

	_, err := f.link.LinkNewItem(context.Background(), testUser, "public-sandbox-2", InstitutionMeta{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteProvider)

	items, err := memItems{f.store}.ListByUserID(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, f.item.ID, items[0].ID)
	assert.Equal(t, []string{"access-sandbox-1"}, f.provider.removedTokens)
}

func TestLinkNewItem_RevokeFailureKeepsOriginalError(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.accountsErr = errors.New("boom")
	f.provider.removeErr = &plaid.Error{StatusCode: 500, ErrorCode: "INTERNAL_SERVER_ERROR"}

	_, err := f.link.LinkNewItem(context.Background(), testUser, "public-sandbox-2", InstitutionMeta{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteProvider)
	assert.Equal(t, 1, f.provider.removeCalls)

	items, err := memItems{f.store}.ListByUserID(context.Background(), testUser)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestLinkNewItem_SuccessKeepsProviderItem(t *testing.T) {
	f := newSyncFixture(t)
	f.provider.accounts = []plaid.Account{{AccountID: "b1", Name: "Checking", Type: "depository"}}

	_, err := f.link.LinkNewItem(context.Background(), testUser, "public-sandbox-2", InstitutionMeta{})
	require.NoError(t, err)
	assert.Zero(t, f.provider.removeCalls)
}

func TestLinkNewItem_BadPublicToken(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.link.LinkNewItem(context.Background(), testUser, "", InstitutionMeta{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteProvider)

	var perr *plaid.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "INVALID_PUBLIC_TOKEN", perr.ErrorCode)
}

func TestUnlinkItem(t *testing.T) {
	tests := []struct {
		name      string
		removeErr error
	}{
		{name: "remote removal succeeds"},
		{name: "remote removal fails", removeErr: &plaid.Error{StatusCode: 400, ErrorCode: "ITEM_NOT_FOUND"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSyncFixture(t)
			f.provider.removeErr = tt.removeErr
			f.provider.pages[""] = &plaid.SyncResponse{
				Added:      []plaid.Transaction{remoteTx("t1", "a1", "1.00", "x"), remoteTx("t2", "a1", "2.00", "y")},
				NextCursor: "c1",
			}
			_, err := f.sync.RunSync(context.Background(), testUser, f.item.ID)
			require.NoError(t, err)
			require.Equal(t, 2, f.store.countTransactions(testUser))

			err = f.link.UnlinkItem(context.Background(), testUser, f.item.ID)
			require.NoError(t, err)

			assert.Equal(t, 1, f.provider.removeCalls)
			assert.Equal(t, 0, f.store.countTransactions(testUser))
			accts, err := memAccounts{f.store}.ListByUserID(context.Background(), testUser)
			require.NoError(t, err)
			assert.Empty(t, accts)

			it, err := memItems{f.store}.GetByID(context.Background(), testUser, f.item.ID)
			require.NoError(t, err)
			assert.Nil(t, it)
		})
	}
}

func TestUnlinkItem_UnknownItem(t *testing.T) {
	f := newSyncFixture(t)

	err := f.link.UnlinkItem(context.Background(), testUser, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Equal(t, 0, f.provider.removeCalls)
}

func TestCreateLinkToken(t *testing.T) {
	f := newSyncFixture(t)

	resp, err := f.link.CreateLinkToken(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-1", resp.LinkToken)
}
