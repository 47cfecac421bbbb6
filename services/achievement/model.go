package achievement

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// AggregateType selects which scalar of the event-log aggregate feeds the
// comparison. CUSTOM is reserved for external evaluation and is rejected by
// the built-in evaluator.
type AggregateType string

const (
	AggregateCount  AggregateType = "COUNT"
	AggregateSum    AggregateType = "SUM"
	AggregateAvg    AggregateType = "AVG"
	AggregateMin    AggregateType = "MIN"
	AggregateMax    AggregateType = "MAX"
	AggregateCustom AggregateType = "CUSTOM"
)

type ComparisonType string

const (
	CompareEqual              ComparisonType = "EQUAL"
	CompareGreaterThan        ComparisonType = "GREATER_THAN"
	CompareGreaterThanOrEqual ComparisonType = "GREATER_THAN_OR_EQUAL"
	CompareLessThan           ComparisonType = "LESS_THAN"
	CompareLessThanOrEqual    ComparisonType = "LESS_THAN_OR_EQUAL"
)

type RewardType string

const (
	RewardPoints       RewardType = "POINTS"
	RewardBadge        RewardType = "BADGE"
	RewardCoupon       RewardType = "COUPON"
	RewardPointsCustom RewardType = "POINTS_CUSTOM"
)

// Achievement is a reward rule bound to an event. The condition window
// (ConditionDateFrom/To) selects which past logs feed the aggregate and is
// independent of the achievement's own validity window (DateFrom/To).
type Achievement struct {
	ID          snowflake.ID  `gorm:"column:id;primaryKey;autoIncrement:false"`
	CommunityID *snowflake.ID `gorm:"column:community_id;index"` // nil means global achievement
	EventID     snowflake.ID  `gorm:"column:event_id;index;not null"`
	Name        string        `gorm:"column:name;not null"`
	Description string        `gorm:"column:description;type:text"`
	Status      Status        `gorm:"column:status;type:varchar(20);default:'ACTIVE'"`
	DateFrom    *time.Time    `gorm:"column:date_from"`
	DateTo      *time.Time    `gorm:"column:date_to"`

	// FrequencyLimit caps how many times one user may earn this achievement.
	// Zero means unlimited.
	FrequencyLimit int `gorm:"column:frequency_limit;not null;default:0"`

	ConditionDateFrom        *time.Time     `gorm:"column:condition_date_from"`
	ConditionDateTo          *time.Time     `gorm:"column:condition_date_to"`
	ConditionEventCountLimit int            `gorm:"column:condition_event_count_limit;not null;default:0"` // 0 means all logs
	ConditionAggregateType   AggregateType  `gorm:"column:condition_aggregate_type;type:varchar(20);not null"`
	ConditionComparisonType  ComparisonType `gorm:"column:condition_comparison_type;type:varchar(30);not null"`
	ConditionValue           float64        `gorm:"column:condition_value;not null"`

	RewardType   RewardType `gorm:"column:reward_type;type:varchar(20);not null"`
	RewardAmount int64      `gorm:"column:reward_amount;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Achievement) TableName() string { return "achievements" }

// ActiveAt reports whether the achievement may be evaluated at the given
// instant: status is ACTIVE and now falls inside the validity window.
func (a *Achievement) ActiveAt(now time.Time) bool {
	if a.Status != StatusActive {
		return false
	}
	if a.DateFrom != nil && now.Before(*a.DateFrom) {
		return false
	}
	if a.DateTo != nil && now.After(*a.DateTo) {
		return false
	}
	return true
}

// AchievementReward is one grant of an achievement to a user. The unique
// index over (user_id, achievement_id, event_log_id) is the idempotency key
// for duplicate job delivery: a second insert for the same occurrence fails
// inside the same transaction as the balance mutation, so nothing is paid
// twice. NULL event_log_id rows (manual issues) do not collide.
type AchievementReward struct {
	ID            snowflake.ID  `gorm:"column:id;primaryKey;autoIncrement:false"`
	UserID        snowflake.ID  `gorm:"column:user_id;index;not null;uniqueIndex:idx_reward_occurrence"`
	AchievementID snowflake.ID  `gorm:"column:achievement_id;index;not null;uniqueIndex:idx_reward_occurrence"`
	EventLogID    *snowflake.ID `gorm:"column:event_log_id;uniqueIndex:idx_reward_occurrence"`
	WalletID      *snowflake.ID `gorm:"column:wallet_id"`
	ClaimedAt     *time.Time    `gorm:"column:claimed_at"`
	CreatedAt     time.Time     `gorm:"column:created_at;autoCreateTime"`
}

func (AchievementReward) TableName() string { return "achievement_rewards" }
