package wallet

import (
	"context"
	"errors"

	"communityhub-engine/pkg/errutil"
	"communityhub-engine/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	codes sequence.Generator
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Codes sequence.Generator
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		codes: p.Codes,
	}
}

type CreditParams struct {
	WalletID       snowflake.ID
	SenderID       *snowflake.ID
	SenderWalletID *snowflake.ID
	ReceiverID     snowflake.ID
	Amount         int64
	Type           TransactionType
	Subtype        TransactionSubtype
	Description    string
	Metadata       datatypes.JSON
}

// ApplyCredit increments a wallet balance and inserts the matching ledger
// row inside the caller-supplied transaction. The increment is a relative
// UPDATE so concurrent credits to the same wallet serialize at the store.
// Every balance-affecting call path in the engine goes through here.
func (s *Service) ApplyCredit(ctx context.Context, tx *gorm.DB, p CreditParams) (*Transaction, error) {
	if p.Amount <= 0 {
		return nil, errutil.BadRequest("credit amount must be > 0")
	}

	res := tx.WithContext(ctx).Model(&Wallet{}).
		Where("id = ?", p.WalletID).
		Update("balance", gorm.Expr("balance + ?", p.Amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errutil.NotFound("wallet not found")
	}

	code, err := s.codes.NextTransactionCode(ctx)
	if err != nil {
		zap.L().Error("failed to generate transaction code", zap.Error(err))
		return nil, err
	}

	txn := &Transaction{
		ID:               s.node.Generate(),
		Code:             code,
		SenderID:         p.SenderID,
		SenderWalletID:   p.SenderWalletID,
		ReceiverID:       p.ReceiverID,
		ReceiverWalletID: p.WalletID,
		Amount:           p.Amount,
		Type:             p.Type,
		Subtype:          p.Subtype,
		Description:      p.Description,
		Metadata:         p.Metadata,
	}

	if err := tx.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}

	return txn, nil
}

type GrantParams struct {
	WalletID    snowflake.ID
	CommunityID snowflake.ID
	SenderID    *snowflake.ID
	Amount      int64
	Description string
}

// GrantCommunityPoints is the admin-issued grant path. It validates the
// wallet belongs to the expected community and applies the shared credit in
// one atomic unit.
func (s *Service) GrantCommunityPoints(ctx context.Context, p GrantParams) (*Transaction, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("wallet_id", p.WalletID.String()),
		zap.String("community_id", p.CommunityID.String()),
	)

	var txn *Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var w Wallet
		if err := tx.First(&w, "id = ?", p.WalletID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("wallet not found")
			}
			return err
		}

		if w.CommunityID == nil || *w.CommunityID != p.CommunityID {
			return errutil.UnprocessableEntity("wallet does not belong to the expected community")
		}

		created, err := s.ApplyCredit(ctx, tx, CreditParams{
			WalletID:    w.ID,
			SenderID:    p.SenderID,
			ReceiverID:  w.OwnerID,
			Amount:      p.Amount,
			Type:        TransactionGrant,
			Subtype:     SubtypePoints,
			Description: p.Description,
		})
		if err != nil {
			return err
		}

		txn = created
		return nil
	})
	if err != nil {
		zapLog.Warn("community point grant rejected", zap.Error(err))
		return nil, err
	}

	zapLog.Info("community points granted",
		zap.Int64("amount", p.Amount),
		zap.String("transaction_id", txn.ID.String()),
	)

	return txn, nil
}

func (s *Service) GetWallet(ctx context.Context, id snowflake.ID) (*Wallet, error) {
	var w Wallet
	if err := s.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("wallet not found")
		}
		return nil, err
	}
	return &w, nil
}

func (s *Service) ListTransactions(ctx context.Context, walletID snowflake.ID) ([]Transaction, error) {
	var txns []Transaction
	if err := s.db.WithContext(ctx).
		Where("receiver_wallet_id = ? OR sender_wallet_id = ?", walletID, walletID).
		Order("created_at DESC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
