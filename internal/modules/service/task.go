package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/taskboard-dev/taskboard/internal/infra/blob"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/repo"
	"github.com/taskboard-dev/taskboard/internal/pkg/apperr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateTaskInput struct {
	ProjectID      uuid.UUID
	Title          string
	Description    *string
	Status         *model.TaskStatus
	Priority       *model.TaskPriority
	AssigneeID     *uuid.UUID
	DueDate        *time.Time
	EstimatedHours *float64
	Tags           []string
}

type UpdateTaskInput struct {
	Title          *string
	Description    *string
	Status         *model.TaskStatus
	Priority       *model.TaskPriority
	AssigneeID     *uuid.UUID
	ClearAssignee  bool
	DueDate        *time.Time
	ClearDueDate   bool
	EstimatedHours *float64
	ActualHours    *float64
	Tags           []string
	TagsSet        bool
}

type ListTasksInput struct {
	ProjectID  *uuid.UUID
	Status     *model.TaskStatus
	Priority   *model.TaskPriority
	AssigneeID *uuid.UUID
	ReporterID *uuid.UUID
	Search     string
	DueBefore  *time.Time
	DueAfter   *time.Time
	Page       int
	PerPage    int
}

type ListTasksOutput struct {
	Items   []model.Task
	Page    int
	PerPage int
	Total   int64
}

type ReorderTaskInput struct {
	Status   model.TaskStatus
	Position int
}

type AddCommentInput struct {
	Content  string
	ParentID *uuid.UUID
}

type AddAttachmentInput struct {
	FileName string
	MimeType string
	FileSize int64
}

// AttachmentOutput pairs the metadata record with the presigned URL the
// client uses to move the bytes.
type AttachmentOutput struct {
	Attachment  *model.Attachment `json:"attachment"`
	UploadURL   string            `json:"upload_url,omitempty"`
	DownloadURL string            `json:"download_url,omitempty"`
}

// BlobStore is the object-storage surface the task service needs.
// *blob.S3Deps implements it.
type BlobStore interface {
	PresignPut(ctx context.Context, key, contentType string, expire time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, expire time.Duration) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

type TaskService interface {
	Create(ctx context.Context, actor Actor, in CreateTaskInput) (*model.Task, error)
	List(ctx context.Context, actor Actor, in ListTasksInput) (*ListTasksOutput, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.Task, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdateTaskInput) (*model.Task, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
	Reorder(ctx context.Context, actor Actor, id uuid.UUID, in ReorderTaskInput) (*model.Task, error)
	AddComment(ctx context.Context, actor Actor, taskID uuid.UUID, in AddCommentInput) (*model.Comment, error)
	AddAttachment(ctx context.Context, actor Actor, taskID uuid.UUID, in AddAttachmentInput) (*AttachmentOutput, error)
	GetAttachment(ctx context.Context, actor Actor, taskID, attachmentID uuid.UUID) (*AttachmentOutput, error)
}

type taskService struct {
	tasks         repo.TaskRepo
	projects      repo.ProjectRepo
	users         repo.UserRepo
	authz         Authorizer
	blob          BlobStore
	presignExpire time.Duration
	notifier      *activityNotifier
	log           *zap.Logger
}

func NewTaskService(tasks repo.TaskRepo, projects repo.ProjectRepo, users repo.UserRepo, authz Authorizer, s3 BlobStore, presignExpire time.Duration, mq *amqp.Connection, activityQueue string, log *zap.Logger) TaskService {
	return &taskService{
		tasks:         tasks,
		projects:      projects,
		users:         users,
		authz:         authz,
		blob:          s3,
		presignExpire: presignExpire,
		notifier:      newActivityNotifier(mq, activityQueue, log),
		log:           log,
	}
}

func (s *taskService) projectFor(ctx context.Context, projectID uuid.UUID) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("project not found")
		}
		return nil, apperr.Internal(err)
	}
	return p, nil
}

func (s *taskService) authorize(ctx context.Context, actor Actor, action Action, res Resource, denied string) error {
	ok, err := s.authz.CanPerform(ctx, actor, action, res)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.Authorization(denied)
	}
	return nil
}

// checkAssignee verifies the assignee exists and belongs to the project.
func (s *taskService) checkAssignee(ctx context.Context, projectID, assigneeID uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, assigneeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("assigned user not found")
		}
		return apperr.Internal(err)
	}
	if _, err := s.projects.GetMember(ctx, projectID, assigneeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Validation("assigned user is not a project member")
		}
		return apperr.Internal(err)
	}
	return nil
}

func (s *taskService) Create(ctx context.Context, actor Actor, in CreateTaskInput) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if len(title) < 3 {
		return nil, apperr.Validation("task title must be at least 3 characters")
	}

	p, err := s.projectFor(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, ActionTaskCreate, Resource{Project: p}, "you do not have access to this project"); err != nil {
		return nil, err
	}

	t := &model.Task{
		ProjectID:      p.ID,
		Title:          title,
		Description:    in.Description,
		Status:         model.TaskTodo,
		Priority:       model.PriorityMedium,
		ReporterID:     actor.ID,
		DueDate:        in.DueDate,
		EstimatedHours: in.EstimatedHours,
		Tags:           datatypes.NewJSONSlice(in.Tags),
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation("invalid task status")
		}
		t.Status = *in.Status
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, apperr.Validation("invalid task priority")
		}
		t.Priority = *in.Priority
	}
	if in.AssigneeID != nil {
		if err := s.checkAssignee(ctx, p.ID, *in.AssigneeID); err != nil {
			return nil, err
		}
		t.AssigneeID = in.AssigneeID
	}
	if t.Status == model.TaskDone {
		now := time.Now()
		t.CompletedAt = &now
	}

	act := newActivity(actor, p.ID, nil, model.ActionTaskCreated, map[string]interface{}{
		"title": t.Title,
	})
	if err := s.tasks.Create(ctx, t, act); err != nil {
		return nil, apperr.Internal(err)
	}
	s.notifier.notify(ctx, act)
	return t, nil
}

func (s *taskService) List(ctx context.Context, actor Actor, in ListTasksInput) (*ListTasksOutput, error) {
	f := repo.TaskFilter{
		Status:     in.Status,
		Priority:   in.Priority,
		AssigneeID: in.AssigneeID,
		ReporterID: in.ReporterID,
		Search:     in.Search,
		DueBefore:  in.DueBefore,
		DueAfter:   in.DueAfter,
		Page:       in.Page,
		PerPage:    in.PerPage,
	}

	if in.ProjectID != nil {
		p, err := s.projectFor(ctx, *in.ProjectID)
		if err != nil {
			return nil, err
		}
		if err := s.authorize(ctx, actor, ActionTaskRead, Resource{Project: p}, "you do not have access to this project"); err != nil {
			return nil, err
		}
		f.ProjectID = in.ProjectID
	} else if !actor.IsAdmin() {
		// Without an explicit project, members see tasks across the
		// projects they belong to. Admins see everything.
		ids, err := s.projects.MemberProjectIDs(ctx, actor.ID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if len(ids) == 0 {
			return &ListTasksOutput{Items: []model.Task{}, Page: in.Page, PerPage: in.PerPage, Total: 0}, nil
		}
		f.ProjectIDs = ids
	}

	tasks, total, err := s.tasks.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &ListTasksOutput{Items: tasks, Page: in.Page, PerPage: in.PerPage, Total: total}, nil
}

func (s *taskService) taskWithProject(ctx context.Context, id uuid.UUID) (*model.Task, *model.Project, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("task not found")
		}
		return nil, nil, apperr.Internal(err)
	}
	p, err := s.projectFor(ctx, t.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

func (s *taskService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.Task, error) {
	t, p, err := s.taskWithProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, ActionTaskRead, Resource{Project: p, Task: t}, "you do not have access to this task"); err != nil {
		return nil, err
	}
	detail, err := s.tasks.GetDetail(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return detail, nil
}

func (s *taskService) Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdateTaskInput) (*model.Task, error) {
	t, p, err := s.taskWithProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, ActionTaskUpdate, Resource{Project: p, Task: t}, "you do not have permission to update this task"); err != nil {
		return nil, err
	}

	// reporter_id never appears here: the reporter is immutable.
	fields := map[string]interface{}{}
	changes := map[string]interface{}{}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if len(title) < 3 {
			return nil, apperr.Validation("task title must be at least 3 characters")
		}
		fields["title"] = title
		changes["title"] = map[string]interface{}{"from": t.Title, "to": title}
	}
	if in.Description != nil {
		fields["description"] = *in.Description
		changes["description"] = true
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation("invalid task status")
		}
		// Any status may move to any other; DONE stamps completion and
		// leaving DONE clears it.
		fields["status"] = *in.Status
		changes["status"] = map[string]interface{}{"from": t.Status, "to": *in.Status}
		if *in.Status == model.TaskDone && t.Status != model.TaskDone {
			fields["completed_at"] = time.Now()
		} else if *in.Status != model.TaskDone && t.Status == model.TaskDone {
			fields["completed_at"] = nil
		}
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, apperr.Validation("invalid task priority")
		}
		fields["priority"] = *in.Priority
		changes["priority"] = map[string]interface{}{"from": t.Priority, "to": *in.Priority}
	}
	if in.ClearAssignee {
		fields["assignee_id"] = nil
		changes["assignee_id"] = nil
	} else if in.AssigneeID != nil {
		if err := s.checkAssignee(ctx, p.ID, *in.AssigneeID); err != nil {
			return nil, err
		}
		fields["assignee_id"] = *in.AssigneeID
		changes["assignee_id"] = *in.AssigneeID
	}
	if in.ClearDueDate {
		fields["due_date"] = nil
		changes["due_date"] = nil
	} else if in.DueDate != nil {
		fields["due_date"] = *in.DueDate
		changes["due_date"] = *in.DueDate
	}
	if in.EstimatedHours != nil {
		fields["estimated_hours"] = *in.EstimatedHours
		changes["estimated_hours"] = *in.EstimatedHours
	}
	if in.ActualHours != nil {
		fields["actual_hours"] = *in.ActualHours
		changes["actual_hours"] = *in.ActualHours
	}
	if in.TagsSet {
		fields["tags"] = datatypes.NewJSONSlice(in.Tags)
		changes["tags"] = in.Tags
	}

	if len(fields) == 0 {
		return t, nil
	}

	act := newActivity(actor, p.ID, &t.ID, model.ActionTaskUpdated, changes)
	if err := s.tasks.UpdateFields(ctx, id, fields, act); err != nil {
		return nil, apperr.Internal(err)
	}
	s.notifier.notify(ctx, act)

	updated, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return updated, nil
}

func (s *taskService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	t, p, err := s.taskWithProject(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, ActionTaskDelete, Resource{Project: p, Task: t}, "you do not have permission to delete this task"); err != nil {
		return err
	}

	// Snapshot the attachment keys before the row cascade removes them.
	attachments, err := s.tasks.Attachments(ctx, t.ID)
	if err != nil {
		return apperr.Internal(err)
	}

	act := newActivity(actor, p.ID, nil, model.ActionTaskDeleted, map[string]interface{}{
		"title": t.Title,
	})
	if err := s.tasks.Delete(ctx, t, act); err != nil {
		return apperr.Internal(err)
	}
	s.notifier.notify(ctx, act)

	// Blob cleanup is best effort: a stranded object never fails the delete.
	for _, a := range attachments {
		if err := s.blob.DeleteObject(ctx, a.S3Key); err != nil {
			s.log.Sugar().Warnw("delete attachment object", "key", a.S3Key, "err", err)
		}
	}
	return nil
}

func (s *taskService) Reorder(ctx context.Context, actor Actor, id uuid.UUID, in ReorderTaskInput) (*model.Task, error) {
	if !in.Status.Valid() {
		return nil, apperr.Validation("invalid task status")
	}
	t, p, err := s.taskWithProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, ActionTaskUpdate, Resource{Project: p, Task: t}, "you do not have permission to move this task"); err != nil {
		return nil, err
	}

	act := newActivity(actor, p.ID, &t.ID, model.ActionTaskReordered, map[string]interface{}{
		"status":   in.Status,
		"position": in.Position,
	})
	if err := s.tasks.Reorder(ctx, t, in.Status, in.Position, act); err != nil {
		return nil, apperr.Internal(err)
	}
	s.notifier.notify(ctx, act)

	moved, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return moved, nil
}

func (s *taskService) AddComment(ctx context.Context, actor Actor, taskID uuid.UUID, in AddCommentInput) (*model.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.Validation("comment content is required")
	}

	t, p, err := s.taskWithProject(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, ActionCommentCreate, Resource{Project: p, Task: t}, "you do not have access to this task"); err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		parent, err := s.tasks.GetComment(ctx, *in.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Validation("parent comment not found")
			}
			return nil, apperr.Internal(err)
		}
		if parent.TaskID != t.ID {
			return nil, apperr.Validation("parent comment belongs to a different task")
		}
	}

	c := &model.Comment{
		TaskID:   t.ID,
		UserID:   actor.ID,
		ParentID: in.ParentID,
		Content:  content,
	}
	if err := s.tasks.CreateComment(ctx, c); err != nil {
		return nil, apperr.Internal(err)
	}
	return c, nil
}

func (s *taskService) AddAttachment(ctx context.Context, actor Actor, taskID uuid.UUID, in AddAttachmentInput) (*AttachmentOutput, error) {
	if strings.TrimSpace(in.FileName) == "" {
		return nil, apperr.Validation("file_name is required")
	}
	if in.FileSize <= 0 {
		return nil, apperr.Validation("file_size must be positive")
	}

	t, p, err := s.taskWithProject(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, ActionCommentCreate, Resource{Project: p, Task: t}, "you do not have access to this task"); err != nil {
		return nil, err
	}

	key := blob.AttachmentKey(t.ID, in.FileName)
	uploadURL, err := s.blob.PresignPut(ctx, key, in.MimeType, s.presignExpire)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	a := &model.Attachment{
		TaskID:     t.ID,
		UploadedBy: actor.ID,
		FileName:   in.FileName,
		FileSize:   in.FileSize,
		MimeType:   in.MimeType,
		S3Key:      key,
	}
	if err := s.tasks.CreateAttachment(ctx, a); err != nil {
		return nil, apperr.Internal(err)
	}
	return &AttachmentOutput{Attachment: a, UploadURL: uploadURL}, nil
}

func (s *taskService) GetAttachment(ctx context.Context, actor Actor, taskID, attachmentID uuid.UUID) (*AttachmentOutput, error) {
	t, p, err := s.taskWithProject(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, ActionTaskRead, Resource{Project: p, Task: t}, "you do not have access to this task"); err != nil {
		return nil, err
	}

	a, err := s.tasks.GetAttachment(ctx, t.ID, attachmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("attachment not found")
		}
		return nil, apperr.Internal(err)
	}
	downloadURL, err := s.blob.PresignGet(ctx, a.S3Key, s.presignExpire)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AttachmentOutput{Attachment: a, DownloadURL: downloadURL}, nil
}
