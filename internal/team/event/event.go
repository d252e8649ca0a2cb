// Package event persists domain events to a transactional outbox so
// downstream delivery can never roll back the write that produced them.
package event

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TeamCreatedTopic        = "team.created"
	TeamDeletedTopic        = "team.deleted"
	InvitationCreatedTopic  = "invitation.created"
	InvitationAcceptedTopic = "invitation.accepted"
)

// TeamEvent is one outbox row. Rows are marked published by whatever
// relay drains the table.
type TeamEvent struct {
	ID        snowflake.ID      `gorm:"primaryKey"`
	TeamID    snowflake.ID      `gorm:"column:team_id;not null"`
	EventType string            `gorm:"column:event_type;type:text;not null"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	Published bool              `gorm:"column:published;not null"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TeamEvent) TableName() string { return "team_events" }

type Publisher interface {
	WithTx(tx *gorm.DB) Publisher
	Publish(ctx context.Context, teamID snowflake.ID, topic string, payload map[string]any) error
}

type outboxPublisher struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutboxPublisher(db *gorm.DB, genID *snowflake.Node) Publisher {
	return &outboxPublisher{
		db:    db,
		genID: genID,
	}
}

func (p *outboxPublisher) WithTx(tx *gorm.DB) Publisher {
	return &outboxPublisher{db: tx, genID: p.genID}
}

func (p *outboxPublisher) Publish(ctx context.Context, teamID snowflake.ID, topic string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}

	event := &TeamEvent{
		ID:        p.genID.Generate(),
		TeamID:    teamID,
		EventType: topic,
		Payload:   datatypes.JSONMap(payload),
		CreatedAt: time.Now().UTC(),
	}
	return p.db.WithContext(ctx).Create(event).Error
}
