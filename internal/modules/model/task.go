package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TaskStatus maps to Kanban board columns. Transitions are unconstrained;
// the TODO -> IN_PROGRESS -> IN_REVIEW -> DONE pipeline is a UI convention,
// not an enforced state machine.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskInReview   TaskStatus = "IN_REVIEW"
	TaskDone       TaskStatus = "DONE"
	TaskArchived   TaskStatus = "ARCHIVED"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskInReview, TaskDone, TaskArchived:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	ID          uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title       string       `gorm:"type:varchar(500);not null" json:"title"`
	Description *string      `gorm:"type:text" json:"description"`
	Status      TaskStatus   `gorm:"type:varchar(16);not null;default:'TODO';index:ix_task_project_status_position,priority:2" json:"status"`
	Priority    TaskPriority `gorm:"type:varchar(16);not null;default:'MEDIUM';index" json:"priority"`

	ProjectID uuid.UUID `gorm:"type:uuid;not null;index:ix_task_project_status_position,priority:1" json:"project_id"`

	// AssigneeID may be null or reassigned; ReporterID is set at creation
	// and never changes.
	AssigneeID *uuid.UUID `gorm:"type:uuid;index" json:"assignee_id"`
	ReporterID uuid.UUID  `gorm:"type:uuid;not null;index" json:"reporter_id"`

	// Board ordering within a status column. Re-sequenced on reorder;
	// concurrent reorders are last-write-wins.
	Position int `gorm:"not null;default:0;index:ix_task_project_status_position,priority:3" json:"position"`

	DueDate     *time.Time `gorm:"index" json:"due_date"`
	CompletedAt *time.Time `json:"completed_at"`

	EstimatedHours *float64 `gorm:"type:numeric(5,2)" json:"estimated_hours"`
	ActualHours    *float64 `gorm:"type:numeric(5,2)" json:"actual_hours"`

	Tags datatypes.JSONSlice[string] `gorm:"type:jsonb" swaggertype:"array,string" json:"tags"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Task <-> Project
	Project *Project `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// Task <-> User
	Assignee *User `gorm:"foreignKey:AssigneeID;references:ID;constraint:OnDelete:SET NULL,OnUpdate:CASCADE;" json:"assignee,omitempty"`
	Reporter *User `gorm:"foreignKey:ReporterID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"reporter,omitempty"`

	// Task <-> Comment
	Comments []Comment `gorm:"constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"comments,omitempty"`

	// Task <-> Attachment
	Attachments []Attachment `gorm:"constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"attachments,omitempty"`
}

func (Task) TableName() string { return "tasks" }
