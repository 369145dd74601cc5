package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is used both as a user's system-wide role and as a per-project
// membership role. Hierarchy: ADMIN > MANAGER > MEMBER > VIEWER.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
	RoleViewer  Role = "VIEWER"
)

var roleRank = map[Role]int{
	RoleViewer:  1,
	RoleMember:  2,
	RoleManager: 3,
	RoleAdmin:   4,
}

func (r Role) Valid() bool { return roleRank[r] != 0 }

// AtLeast reports whether r sits at or above required in the hierarchy.
func (r Role) AtLeast(required Role) bool { return roleRank[r] >= roleRank[required] }

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	FullName     string    `gorm:"type:varchar(255);not null" json:"full_name"`
	AvatarURL    *string   `gorm:"type:varchar(500)" json:"avatar_url"`
	Role         Role      `gorm:"type:varchar(16);not null;default:'MEMBER';index" json:"role"`

	IsActive      bool `gorm:"not null;default:true" json:"is_active"`
	EmailVerified bool `gorm:"not null;default:false" json:"email_verified"`

	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	LastLogin *time.Time `json:"last_login"`

	// User <-> Project (ownership)
	OwnedProjects []Project `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// User <-> ProjectMember
	Memberships []ProjectMember `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (User) TableName() string { return "users" }
