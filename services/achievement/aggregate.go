package achievement

import (
	"context"

	"communityhub-engine/services/event"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// LoadAggregate computes count/sum/avg/min/max over the user's event logs
// inside the achievement's condition window, newest first, capped at
// ConditionEventCountLimit rows when set. Zero-row windows aggregate to 0.
func LoadAggregate(ctx context.Context, tx *gorm.DB, a *Achievement, userID, eventID snowflake.ID) (Aggregate, error) {
	sub := tx.WithContext(ctx).Model(&event.EventLog{}).
		Select("value").
		Where("user_id = ? AND event_id = ?", userID, eventID).
		Order("created_at DESC")

	if a.ConditionDateFrom != nil {
		sub = sub.Where("created_at >= ?", *a.ConditionDateFrom)
	}
	if a.ConditionDateTo != nil {
		sub = sub.Where("created_at <= ?", *a.ConditionDateTo)
	}
	if a.ConditionEventCountLimit > 0 {
		sub = sub.Limit(a.ConditionEventCountLimit)
	}

	var agg Aggregate
	err := tx.WithContext(ctx).
		Table("(?) AS logs", sub).
		Select("COUNT(*) AS count, COALESCE(SUM(value), 0) AS sum, COALESCE(AVG(value), 0) AS avg, COALESCE(MIN(value), 0) AS min, COALESCE(MAX(value), 0) AS max").
		Scan(&agg).Error
	return agg, err
}
