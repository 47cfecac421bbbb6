package achievement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"communityhub-engine/pkg/db"
	"communityhub-engine/pkg/errutil"
	"communityhub-engine/services/wallet"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	wallets *wallet.Service
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Wallets *wallet.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		wallets: p.Wallets,
	}
}

type IssueParams struct {
	UserID      snowflake.ID
	Achievement *Achievement
	WalletID    *snowflake.ID
	EventLogID  *snowflake.ID
}

// Issue grants an achievement to a user. Inside one transaction it
// re-validates the frequency limit, resolves a payout wallet, creates the
// reward row and, for POINTS rewards with a resolvable wallet, applies the
// balance credit and its ledger row. When no wallet can be resolved the
// reward is created unclaimed and payout is deferred to Claim.
func (s *Service) Issue(ctx context.Context, p IssueParams) (*AchievementReward, error) {
	a := p.Achievement

	var reward *AchievementReward
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The worker's frequency pre-check is read-then-act; a duplicate job
		// can race past it, so the limit is checked again here, in the same
		// transaction as the insert.
		if a.FrequencyLimit > 0 {
			// A plain COUNT under READ COMMITTED does not serialize two
			// issuances for distinct occurrences: both would read N-1 and
			// both would insert. Locking the achievement row first makes
			// concurrent issuances of the same achievement queue up here.
			var locked Achievement
			if err := tx.Scopes(db.LockForUpdate).
				Select("id").
				First(&locked, "id = ?", a.ID).Error; err != nil {
				return err
			}

			var granted int64
			if err := tx.Model(&AchievementReward{}).
				Where("user_id = ? AND achievement_id = ?", p.UserID, a.ID).
				Count(&granted).Error; err != nil {
				return err
			}
			if granted >= int64(a.FrequencyLimit) {
				return errutil.Conflict("achievement frequency limit reached")
			}
		}

		w, err := s.resolveWallet(ctx, tx, a, p)
		if err != nil {
			return err
		}

		reward = &AchievementReward{
			ID:            s.node.Generate(),
			UserID:        p.UserID,
			AchievementID: a.ID,
			EventLogID:    p.EventLogID,
		}

		// Zero-amount POINTS rewards are still granted, just with nothing to
		// pay out; the reward row always exists for a successful issuance.
		paying := w != nil && a.RewardType == RewardPoints && a.RewardAmount > 0
		if paying {
			now := time.Now()
			reward.WalletID = &w.ID
			reward.ClaimedAt = &now
		}

		if err := tx.Create(reward).Error; err != nil {
			if isUniqueViolation(err) {
				return errutil.Conflict("reward already granted for this occurrence", errutil.WithErr(err))
			}
			return err
		}

		if paying {
			if _, err := s.wallets.ApplyCredit(ctx, tx, wallet.CreditParams{
				WalletID:    w.ID,
				ReceiverID:  p.UserID,
				Amount:      a.RewardAmount,
				Type:        wallet.TransactionReward,
				Subtype:     wallet.SubtypePoints,
				Description: fmt.Sprintf("Achievement reward: %s", a.Name),
			}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("achievement reward issued",
		zap.String("user_id", p.UserID.String()),
		zap.String("achievement_id", a.ID.String()),
		zap.String("reward_id", reward.ID.String()),
		zap.Bool("paid", reward.ClaimedAt != nil),
	)

	return reward, nil
}

// IssueByID is the manual issuance path reachable by authorized operators.
func (s *Service) IssueByID(ctx context.Context, userID, achievementID snowflake.ID, walletID *snowflake.ID) (*AchievementReward, error) {
	var a Achievement
	if err := s.db.WithContext(ctx).First(&a, "id = ?", achievementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("achievement not found")
		}
		return nil, err
	}

	return s.Issue(ctx, IssueParams{
		UserID:      userID,
		Achievement: &a,
		WalletID:    walletID,
	})
}

type ClaimParams struct {
	UserID   snowflake.ID
	RewardID snowflake.ID
	WalletID snowflake.ID
}

// Claim pays out a previously granted, unclaimed reward into a wallet. The
// claimed_at flip is guarded by claimed_at IS NULL so a concurrent double
// claim fails inside the transaction and rolls back its balance credit.
func (s *Service) Claim(ctx context.Context, p ClaimParams) (*AchievementReward, error) {
	var reward AchievementReward

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(db.LockForUpdate).
			Where("id = ? AND user_id = ?", p.RewardID, p.UserID).
			First(&reward).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("reward not found")
			}
			return err
		}

		if reward.ClaimedAt != nil {
			return errutil.Conflict("reward already claimed")
		}

		var a Achievement
		if err := tx.First(&a, "id = ?", reward.AchievementID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("achievement no longer exists")
			}
			return err
		}

		now := time.Now()
		updates := map[string]any{"claimed_at": now}

		if a.RewardType == RewardPoints {
			var w wallet.Wallet
			if err := tx.First(&w, "id = ?", p.WalletID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errutil.NotFound("wallet not found")
				}
				return err
			}
			if w.OwnerID != p.UserID {
				return errutil.Forbidden("wallet does not belong to the claiming user")
			}
			if a.CommunityID != nil && (w.CommunityID == nil || *w.CommunityID != *a.CommunityID) {
				return errutil.UnprocessableEntity("wallet does not belong to the achievement community")
			}

			// Zero-amount grants have nothing to pay; the claim only flips
			// claimed_at.
			if a.RewardAmount > 0 {
				if _, err := s.wallets.ApplyCredit(ctx, tx, wallet.CreditParams{
					WalletID:    w.ID,
					ReceiverID:  p.UserID,
					Amount:      a.RewardAmount,
					Type:        wallet.TransactionReward,
					Subtype:     wallet.SubtypePoints,
					Description: fmt.Sprintf("Achievement reward: %s", a.Name),
				}); err != nil {
					return err
				}
			}

			updates["wallet_id"] = p.WalletID
			reward.WalletID = &p.WalletID
		} else {
			zap.L().Warn("unhandled reward payout type, acknowledging claim without balance mutation",
				zap.String("reward_id", reward.ID.String()),
				zap.String("reward_type", string(a.RewardType)),
			)
		}

		res := tx.Model(&AchievementReward{}).
			Where("id = ? AND claimed_at IS NULL", reward.ID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("reward already claimed")
		}

		reward.ClaimedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &reward, nil
}

func (s *Service) ListUserRewards(ctx context.Context, userID snowflake.ID) ([]AchievementReward, error) {
	var rewards []AchievementReward
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

// resolveWallet picks the payout target: the explicit wallet when given
// (validated against user and community), otherwise the user's wallet scoped
// to the achievement's community. A nil result with nil error means payout
// is deferred.
func (s *Service) resolveWallet(ctx context.Context, tx *gorm.DB, a *Achievement, p IssueParams) (*wallet.Wallet, error) {
	if p.WalletID != nil {
		var w wallet.Wallet
		if err := tx.WithContext(ctx).First(&w, "id = ?", *p.WalletID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errutil.NotFound("wallet not found")
			}
			return nil, err
		}
		if w.OwnerID != p.UserID {
			return nil, errutil.Forbidden("wallet does not belong to the rewarded user")
		}
		if a.CommunityID != nil && (w.CommunityID == nil || *w.CommunityID != *a.CommunityID) {
			return nil, errutil.UnprocessableEntity("wallet does not belong to the achievement community")
		}
		return &w, nil
	}

	if a.RewardType != RewardPoints {
		return nil, nil
	}

	q := tx.WithContext(ctx).Where("owner_id = ?", p.UserID)
	if a.CommunityID != nil {
		q = q.Where("community_id = ?", *a.CommunityID)
	} else {
		q = q.Where("community_id IS NULL")
	}

	var w wallet.Wallet
	if err := q.First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint failed")
}
