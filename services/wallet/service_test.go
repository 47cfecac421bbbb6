package wallet

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"communityhub-engine/pkg/errutil"
	"communityhub-engine/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type codeStub struct {
	n   int
	err error
}

func (c *codeStub) NextTransactionCode(ctx context.Context) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.n++
	return fmt.Sprintf("TXN-TEST-%04d", c.n), nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db := testutil.NewTestDB(t, &Wallet{}, &Transaction{})
	node, err := snowflake.NewNode(6)
	require.NoError(t, err)

	svc := NewService(ServiceParams{DB: db, Node: node, Codes: &codeStub{}})
	return svc, db, node
}

func seedWallet(t *testing.T, db *gorm.DB, node *snowflake.Node, communityID *snowflake.ID) *Wallet {
	t.Helper()
	w := &Wallet{
		ID:          node.Generate(),
		OwnerID:     node.Generate(),
		CommunityID: communityID,
		Token:       "POINTS",
	}
	require.NoError(t, db.Create(w).Error)
	return w
}

func TestApplyCredit(t *testing.T) {
	svc, db, node := newTestService(t)
	w := seedWallet(t, db, node, nil)

	txn, err := svc.ApplyCredit(context.Background(), db, CreditParams{
		WalletID:   w.ID,
		ReceiverID: w.OwnerID,
		Amount:     250,
		Type:       TransactionReward,
		Subtype:    SubtypePoints,
	})
	require.NoError(t, err)
	require.NotEmpty(t, txn.Code)
	require.Equal(t, w.ID, txn.ReceiverWalletID)

	var got Wallet
	require.NoError(t, db.First(&got, "id = ?", w.ID).Error)
	require.Equal(t, int64(250), got.Balance)

	var n int64
	require.NoError(t, db.Model(&Transaction{}).
		Where("receiver_wallet_id = ?", w.ID).Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestApplyCreditAccumulates(t *testing.T) {
	svc, db, node := newTestService(t)
	w := seedWallet(t, db, node, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.ApplyCredit(context.Background(), db, CreditParams{
			WalletID:   w.ID,
			ReceiverID: w.OwnerID,
			Amount:     100,
			Type:       TransactionReward,
			Subtype:    SubtypePoints,
		})
		require.NoError(t, err)
	}

	var got Wallet
	require.NoError(t, db.First(&got, "id = ?", w.ID).Error)
	require.Equal(t, int64(300), got.Balance)
}

func TestApplyCreditRejectsNonPositiveAmount(t *testing.T) {
	svc, db, node := newTestService(t)
	w := seedWallet(t, db, node, nil)

	for _, amount := range []int64{0, -10} {
		_, err := svc.ApplyCredit(context.Background(), db, CreditParams{
			WalletID:   w.ID,
			ReceiverID: w.OwnerID,
			Amount:     amount,
			Type:       TransactionReward,
			Subtype:    SubtypePoints,
		})
		var be errutil.BaseError
		require.ErrorAs(t, err, &be)
		require.Equal(t, errutil.StatusBadRequest, be.Code)
	}
}

func TestApplyCreditUnknownWallet(t *testing.T) {
	svc, db, node := newTestService(t)

	_, err := svc.ApplyCredit(context.Background(), db, CreditParams{
		WalletID:   node.Generate(),
		ReceiverID: node.Generate(),
		Amount:     10,
		Type:       TransactionReward,
		Subtype:    SubtypePoints,
	})
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)
}

func TestGrantCommunityPoints(t *testing.T) {
	svc, db, node := newTestService(t)
	communityID := node.Generate()
	w := seedWallet(t, db, node, &communityID)

	txn, err := svc.GrantCommunityPoints(context.Background(), GrantParams{
		WalletID:    w.ID,
		CommunityID: communityID,
		Amount:      500,
		Description: "monthly community grant",
	})
	require.NoError(t, err)
	require.Equal(t, TransactionGrant, txn.Type)
	require.Equal(t, w.OwnerID, txn.ReceiverID)

	var got Wallet
	require.NoError(t, db.First(&got, "id = ?", w.ID).Error)
	require.Equal(t, int64(500), got.Balance)
}

func TestGrantCommunityPointsWrongCommunity(t *testing.T) {
	svc, db, node := newTestService(t)
	communityID := node.Generate()
	w := seedWallet(t, db, node, &communityID)

	_, err := svc.GrantCommunityPoints(context.Background(), GrantParams{
		WalletID:    w.ID,
		CommunityID: node.Generate(),
		Amount:      500,
	})
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusUnprocessableEntity, be.Code)

	var got Wallet
	require.NoError(t, db.First(&got, "id = ?", w.ID).Error)
	require.Zero(t, got.Balance)
}

func TestListTransactionsCoversBothSides(t *testing.T) {
	svc, db, node := newTestService(t)
	w := seedWallet(t, db, node, nil)
	other := seedWallet(t, db, node, nil)

	_, err := svc.ApplyCredit(context.Background(), db, CreditParams{
		WalletID:   w.ID,
		ReceiverID: w.OwnerID,
		Amount:     100,
		Type:       TransactionReward,
		Subtype:    SubtypePoints,
	})
	require.NoError(t, err)

	_, err = svc.ApplyCredit(context.Background(), db, CreditParams{
		WalletID:       other.ID,
		SenderWalletID: &w.ID,
		SenderID:       &w.OwnerID,
		ReceiverID:     other.OwnerID,
		Amount:         40,
		Type:           TransactionTransfer,
		Subtype:        SubtypePoints,
	})
	require.NoError(t, err)

	txns, err := svc.ListTransactions(context.Background(), w.ID)
	require.NoError(t, err)
	require.Len(t, txns, 2)

	txns, err = svc.ListTransactions(context.Background(), other.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
}

func TestGetWalletNotFound(t *testing.T) {
	svc, _, node := newTestService(t)

	_, err := svc.GetWallet(context.Background(), node.Generate())
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)
}
