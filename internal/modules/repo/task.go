package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"gorm.io/gorm"
)

type TaskFilter struct {
	// ProjectID scopes the list to one project; ProjectIDs restricts a
	// cross-project list to the caller's member projects. Both nil/empty
	// means no project restriction (system admin listing).
	ProjectID  *uuid.UUID
	ProjectIDs []uuid.UUID

	Status     *model.TaskStatus
	Priority   *model.TaskPriority
	AssigneeID *uuid.UUID
	ReporterID *uuid.UUID
	Search     string
	DueBefore  *time.Time
	DueAfter   *time.Time

	Page    int
	PerPage int
}

type TaskRepo interface {
	// Create appends the task at the end of its board column and writes
	// the activity row in the same transaction.
	Create(ctx context.Context, t *model.Task, act *model.ActivityLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*model.Task, error)
	List(ctx context.Context, f TaskFilter) ([]model.Task, int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, act *model.ActivityLog) error
	Delete(ctx context.Context, t *model.Task, act *model.ActivityLog) error
	Reorder(ctx context.Context, t *model.Task, status model.TaskStatus, position int, act *model.ActivityLog) error
	CreateComment(ctx context.Context, c *model.Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (*model.Comment, error)
	CreateAttachment(ctx context.Context, a *model.Attachment) error
	GetAttachment(ctx context.Context, taskID, attachmentID uuid.UUID) (*model.Attachment, error)
	Attachments(ctx context.Context, taskID uuid.UUID) ([]model.Attachment, error)
}

type taskRepo struct{ db *gorm.DB }

func NewTaskRepo(db *gorm.DB) TaskRepo {
	return &taskRepo{db: db}
}

func (r *taskRepo) Create(ctx context.Context, t *model.Task, act *model.ActivityLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// New tasks land at the bottom of their status column.
		var next int
		err := tx.Model(&model.Task{}).
			Where("project_id = ? AND status = ?", t.ProjectID, t.Status).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&next).Error
		if err != nil {
			return err
		}
		t.Position = next

		if err := tx.Create(t).Error; err != nil {
			return err
		}
		if act != nil {
			act.TaskID = &t.ID
			if err := tx.Create(act).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *taskRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var t model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepo) GetDetail(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var t model.Task
	err := r.db.WithContext(ctx).
		Preload("Assignee").
		Preload("Reporter").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC")
		}).
		Preload("Comments.User").
		Preload("Attachments").
		Where("id = ?", id).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepo) List(ctx context.Context, f TaskFilter) ([]model.Task, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{})

	if f.ProjectID != nil {
		q = q.Where("project_id = ?", *f.ProjectID)
	} else if len(f.ProjectIDs) > 0 {
		q = q.Where("project_id IN ?", f.ProjectIDs)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Priority != nil {
		q = q.Where("priority = ?", *f.Priority)
	}
	if f.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *f.AssigneeID)
	}
	if f.ReporterID != nil {
		q = q.Where("reporter_id = ?", *f.ReporterID)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if f.DueBefore != nil {
		q = q.Where("due_date <= ?", *f.DueBefore)
	}
	if f.DueAfter != nil {
		q = q.Where("due_date >= ?", *f.DueAfter)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []model.Task
	err := q.Order("created_at DESC").
		Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).
		Find(&tasks).Error
	return tasks, total, err
}

func (r *taskRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, act *model.ActivityLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Task{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}
		if act != nil {
			if err := tx.Create(act).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *taskRepo) Delete(ctx context.Context, t *model.Task, act *model.ActivityLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Comments and attachments cascade with the task.
		if err := tx.Delete(t).Error; err != nil {
			return err
		}
		if act != nil {
			// The activity row outlives the task: keep the project link,
			// drop the task reference the cascade would invalidate.
			act.TaskID = nil
			if err := tx.Create(act).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Reorder moves t to position within the given status column and
// re-sequences the column 0..n. Concurrent reorders of the same column are
// last-write-wins; there is no version check.
func (r *taskRepo) Reorder(ctx context.Context, t *model.Task, status model.TaskStatus, position int, act *model.ActivityLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var siblings []model.Task
		err := tx.Select("id").
			Where("project_id = ? AND status = ? AND id <> ?", t.ProjectID, status, t.ID).
			Order("position ASC").
			Find(&siblings).Error
		if err != nil {
			return err
		}

		if position < 0 {
			position = 0
		}
		if position > len(siblings) {
			position = len(siblings)
		}

		order := make([]uuid.UUID, 0, len(siblings)+1)
		for _, s := range siblings {
			order = append(order, s.ID)
		}
		order = append(order[:position], append([]uuid.UUID{t.ID}, order[position:]...)...)

		for i, id := range order {
			fields := map[string]interface{}{"position": i}
			if id == t.ID {
				fields["status"] = status
			}
			if err := tx.Model(&model.Task{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return err
			}
		}

		if act != nil {
			if err := tx.Create(act).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *taskRepo) CreateComment(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *taskRepo) GetComment(ctx context.Context, id uuid.UUID) (*model.Comment, error) {
	var c model.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *taskRepo) CreateAttachment(ctx context.Context, a *model.Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *taskRepo) Attachments(ctx context.Context, taskID uuid.UUID) ([]model.Attachment, error) {
	var list []model.Attachment
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Find(&list).Error
	return list, err
}

func (r *taskRepo) GetAttachment(ctx context.Context, taskID, attachmentID uuid.UUID) (*model.Attachment, error) {
	var a model.Attachment
	err := r.db.WithContext(ctx).
		Where("id = ? AND task_id = ?", attachmentID, taskID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}
