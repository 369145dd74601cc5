package model

import (
	"time"

	"github.com/google/uuid"
)

// Attachment is metadata only; the bytes live in object storage under
// S3Key and move through presigned URLs.
type Attachment struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TaskID     uuid.UUID `gorm:"type:uuid;not null;index" json:"task_id"`
	UploadedBy uuid.UUID `gorm:"type:uuid;not null;index" json:"uploaded_by"`

	FileName string `gorm:"type:varchar(500);not null" json:"file_name"`
	FileSize int64  `gorm:"not null" json:"file_size"`
	MimeType string `gorm:"type:varchar(255);not null" json:"mime_type"`
	S3Key    string `gorm:"type:varchar(1000);not null" json:"s3_key"`

	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`

	// Attachment <-> Task
	Task *Task `gorm:"foreignKey:TaskID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// Attachment <-> User (uploader)
	Uploader *User `gorm:"foreignKey:UploadedBy;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"uploader,omitempty"`
}

func (Attachment) TableName() string { return "attachments" }
