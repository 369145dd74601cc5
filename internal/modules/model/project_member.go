package model

import (
	"time"

	"github.com/google/uuid"
)

// ProjectMember links a user to a project with a per-project role,
// independent of the user's system role.
type ProjectMember struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uq_project_user,priority:1" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uq_project_user,priority:2" json:"user_id"`
	Role      Role      `gorm:"type:varchar(16);not null;default:'MEMBER'" json:"role"`

	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	// ProjectMember <-> Project
	Project *Project `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// ProjectMember <-> User
	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"user,omitempty"`
}

func (ProjectMember) TableName() string { return "project_members" }
