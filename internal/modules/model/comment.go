package model

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a flat row; threads are resolved at read time through
// ParentID. Comments are immutable once posted.
type Comment struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TaskID uuid.UUID `gorm:"type:uuid;not null;index" json:"task_id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	// ParentID must reference a comment on the same task.
	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"`

	Content  string `gorm:"type:text;not null" json:"content"`
	IsEdited bool   `gorm:"not null;default:false" json:"is_edited"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Comment <-> Task
	Task *Task `gorm:"foreignKey:TaskID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// Comment <-> User (author)
	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"user,omitempty"`

	// Comment <-> Comment (thread parent)
	Parent *Comment `gorm:"foreignKey:ParentID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Comment) TableName() string { return "comments" }
