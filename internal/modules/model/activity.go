package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Activity log action labels.
const (
	ActionProjectCreated = "project.created"
	ActionProjectUpdated = "project.updated"
	ActionProjectDeleted = "project.deleted"
	ActionMemberAdded    = "project.member_added"
	ActionMemberRemoved  = "project.member_removed"
	ActionTaskCreated    = "task.created"
	ActionTaskUpdated    = "task.updated"
	ActionTaskDeleted    = "task.deleted"
	ActionTaskReordered  = "task.reordered"
)

// ActivityLog is append-only: rows are written by the service layer and
// never updated, removed only by cascading project/task deletion.
type ActivityLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"actor_id"`
	ProjectID uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	TaskID    *uuid.UUID `gorm:"type:uuid;index" json:"task_id"`

	Action  string            `gorm:"type:varchar(64);not null" json:"action"`
	Changes datatypes.JSONMap `gorm:"type:jsonb" swaggertype:"object" json:"changes"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// ActivityLog <-> Project
	Project *Project `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// ActivityLog <-> Task
	Task *Task `gorm:"foreignKey:TaskID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (ActivityLog) TableName() string { return "activity_logs" }
