package event

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Event is a named, community-scoped category of user action that can be
// logged and evaluated against achievements.
type Event struct {
	ID          snowflake.ID `gorm:"column:id;primaryKey;autoIncrement:false"`
	Tag         string       `gorm:"column:tag;index;not null"`
	CommunityID snowflake.ID `gorm:"column:community_id;index;not null"`
	CreatedByID snowflake.ID `gorm:"column:created_by_id"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (Event) TableName() string { return "events" }

// EventLog is one occurrence of an Event for one user. Rows are append-only;
// nothing in the engine updates or deletes them.
type EventLog struct {
	ID        snowflake.ID   `gorm:"column:id;primaryKey;autoIncrement:false"`
	EventID   snowflake.ID   `gorm:"column:event_id;index;not null"`
	UserID    snowflake.ID   `gorm:"column:user_id;index;not null"`
	Value     float64        `gorm:"column:value;not null"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at;index;autoCreateTime"`
}

func (EventLog) TableName() string { return "event_logs" }
