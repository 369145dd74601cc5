package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"gorm.io/gorm"
)

type ListProjectsFilter struct {
	UserID  uuid.UUID
	Status  *model.ProjectStatus
	Role    *model.Role
	Page    int
	PerPage int
}

// ProjectListItem is a project row joined with the requesting user's
// membership role and cheap counts for list rendering.
type ProjectListItem struct {
	model.Project `gorm:"embedded"`
	UserRole      model.Role `json:"user_role"`
	MemberCount   int64      `json:"member_count"`
	TaskCount     int64      `json:"task_count"`
}

type ProjectRepo interface {
	// CreateWithOwner inserts the project, the owner's membership and the
	// creation activity row in one transaction.
	CreateWithOwner(ctx context.Context, p *model.Project, owner *model.ProjectMember, act *model.ActivityLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	GetWithMembers(ctx context.Context, id uuid.UUID) (*model.Project, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, act *model.ActivityLog) error
	Delete(ctx context.Context, p *model.Project) error
	List(ctx context.Context, f ListProjectsFilter) ([]ProjectListItem, int64, error)
	GetMember(ctx context.Context, projectID, userID uuid.UUID) (*model.ProjectMember, error)
	MemberProjectIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	AddMember(ctx context.Context, m *model.ProjectMember, act *model.ActivityLog) error
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID, act *model.ActivityLog) error
}

type projectRepo struct{ db *gorm.DB }

func NewProjectRepo(db *gorm.DB) ProjectRepo {
	return &projectRepo{db: db}
}

func (r *projectRepo) CreateWithOwner(ctx context.Context, p *model.Project, owner *model.ProjectMember, act *model.ActivityLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		owner.ProjectID = p.ID
		if err := tx.Create(owner).Error; err != nil {
			return err
		}
		if act != nil {
			act.ProjectID = p.ID
			if err := tx.Create(act).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *projectRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var p model.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) GetWithMembers(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var p model.Project
	err := r.db.WithContext(ctx).
		Preload("Members").Preload("Members.User").
		Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, act *model.ActivityLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Project{}).Where("id = ?", id).Updates(fields).Error; err != nil {
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

// Delete removes the project; tasks, memberships, comments, attachments
// and activity rows go with it via FK cascades.
func (r *projectRepo) Delete(ctx context.Context, p *model.Project) error {
	return r.db.WithContext(ctx).Delete(p).Error
}

func (r *projectRepo) List(ctx context.Context, f ListProjectsFilter) ([]ProjectListItem, int64, error) {
	base := r.db.WithContext(ctx).Model(&model.Project{}).
		Joins("JOIN project_members pm ON pm.project_id = projects.id AND pm.user_id = ?", f.UserID)
	if f.Status != nil {
		base = base.Where("projects.status = ?", *f.Status)
	}
	if f.Role != nil {
		base = base.Where("pm.role = ?", *f.Role)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []ProjectListItem
	err := base.
		Select("projects.*, pm.role AS user_role, " +
			"(SELECT COUNT(*) FROM project_members m WHERE m.project_id = projects.id) AS member_count, " +
			"(SELECT COUNT(*) FROM tasks t WHERE t.project_id = projects.id) AS task_count").
		Order("projects.created_at DESC").
		Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).
		Find(&items).Error
	return items, total, err
}

func (r *projectRepo) GetMember(ctx context.Context, projectID, userID uuid.UUID) (*model.ProjectMember, error) {
	var m model.ProjectMember
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *projectRepo) MemberProjectIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.ProjectMember{}).
		Where("user_id = ?", userID).
		Pluck("project_id", &ids).Error
	return ids, err
}

func (r *projectRepo) AddMember(ctx context.Context, m *model.ProjectMember, act *model.ActivityLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
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

func (r *projectRepo) RemoveMember(ctx context.Context, projectID, userID uuid.UUID, act *model.ActivityLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("project_id = ? AND user_id = ?", projectID, userID).
			Delete(&model.ProjectMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if act != nil {
			if err := tx.Create(act).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
