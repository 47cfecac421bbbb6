package wallet

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type TransactionType string

const (
	TransactionReward   TransactionType = "REWARD"
	TransactionGrant    TransactionType = "GRANT"
	TransactionTransfer TransactionType = "TRANSFER"
)

type TransactionSubtype string

const (
	SubtypePoints TransactionSubtype = "POINTS"
)

// Wallet is a per-user, optionally per-community, mutable balance. It is
// written only through Service.ApplyCredit so every change has a ledger row.
type Wallet struct {
	ID          snowflake.ID  `gorm:"column:id;primaryKey;autoIncrement:false"`
	OwnerID     snowflake.ID  `gorm:"column:owner_id;index;not null"`
	CommunityID *snowflake.ID `gorm:"column:community_id;index"`
	Token       string        `gorm:"column:token;type:varchar(20);default:'POINTS'"`
	Balance     int64         `gorm:"column:balance;not null;default:0"`
	CreatedAt   time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallets" }

// Transaction is an append-only ledger row. Exactly one row exists for every
// balance change the engine applies.
type Transaction struct {
	ID               snowflake.ID       `gorm:"column:id;primaryKey;autoIncrement:false"`
	Code             string             `gorm:"column:code;uniqueIndex"`
	SenderID         *snowflake.ID      `gorm:"column:sender_id;index"`
	ReceiverID       snowflake.ID       `gorm:"column:receiver_id;index;not null"`
	SenderWalletID   *snowflake.ID      `gorm:"column:sender_wallet_id;index"`
	ReceiverWalletID snowflake.ID       `gorm:"column:receiver_wallet_id;index;not null"`
	Amount           int64              `gorm:"column:amount;not null"`
	Type             TransactionType    `gorm:"column:type;type:varchar(20);not null"`
	Subtype          TransactionSubtype `gorm:"column:subtype;type:varchar(20);not null"`
	Description      string             `gorm:"column:description;type:text"`
	Metadata         datatypes.JSON     `gorm:"column:metadata;type:jsonb"`
	CreatedAt        time.Time          `gorm:"column:created_at;index;autoCreateTime"`
}

func (Transaction) TableName() string { return "transactions" }
