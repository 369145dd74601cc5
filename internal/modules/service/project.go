package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/repo"
	"github.com/taskboard-dev/taskboard/internal/pkg/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type CreateProjectInput struct {
	Name        string
	Description *string
	Status      *model.ProjectStatus
	Color       *string
	StartDate   *time.Time
	EndDate     *time.Time
}

type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *model.ProjectStatus
	Color       *string
	StartDate   *time.Time
	EndDate     *time.Time
}

type ListProjectsInput struct {
	Status  *model.ProjectStatus
	Role    *model.Role
	Page    int
	PerPage int
}

type ListProjectsOutput struct {
	Items   []repo.ProjectListItem
	Page    int
	PerPage int
	Total   int64
}

type AddMemberInput struct {
	UserID uuid.UUID
	Role   model.Role
}

type ProjectService interface {
	Create(ctx context.Context, actor Actor, in CreateProjectInput) (*model.Project, error)
	List(ctx context.Context, actor Actor, in ListProjectsInput) (*ListProjectsOutput, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.Project, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdateProjectInput) (*model.Project, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
	AddMember(ctx context.Context, actor Actor, projectID uuid.UUID, in AddMemberInput) (*model.ProjectMember, error)
	RemoveMember(ctx context.Context, actor Actor, projectID, userID uuid.UUID) error
}

type projectService struct {
	projects repo.ProjectRepo
	users    repo.UserRepo
	authz    Authorizer
	notifier *activityNotifier
	log      *zap.Logger
}

func NewProjectService(projects repo.ProjectRepo, users repo.UserRepo, authz Authorizer, mq *amqp.Connection, activityQueue string, log *zap.Logger) ProjectService {
	return &projectService{
		projects: projects,
		users:    users,
		authz:    authz,
		notifier: newActivityNotifier(mq, activityQueue, log),
		log:      log,
	}
}

func validateProjectDates(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return apperr.Validation("start_date cannot be after end_date")
	}
	return nil
}

func (s *projectService) Create(ctx context.Context, actor Actor, in CreateProjectInput) (*model.Project, error) {
	name := strings.TrimSpace(in.Name)
	if len(name) < 3 {
		return nil, apperr.Validation("project name must be at least 3 characters")
	}
	if err := validateProjectDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	p := &model.Project{
		Name:        name,
		Description: in.Description,
		Status:      model.ProjectPlanning,
		Color:       "#3B82F6",
		OwnerID:     actor.ID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation("invalid project status")
		}
		p.Status = *in.Status
	}
	if in.Color != nil {
		if !colorRe.MatchString(*in.Color) {
			return nil, apperr.Validation("color must be a #RRGGBB hex code")
		}
		p.Color = *in.Color
	}

	// The creator becomes the owner and gets an ADMIN membership.
	owner := &model.ProjectMember{UserID: actor.ID, Role: model.RoleAdmin}
	act := newActivity(actor, uuid.Nil, nil, model.ActionProjectCreated, map[string]interface{}{
		"name": p.Name,
	})
	if err := s.projects.CreateWithOwner(ctx, p, owner, act); err != nil {
		return nil, apperr.Internal(err)
	}
	s.notifier.notify(ctx, act)
	return p, nil
}

func (s *projectService) List(ctx context.Context, actor Actor, in ListProjectsInput) (*ListProjectsOutput, error) {
	items, total, err := s.projects.List(ctx, repo.ListProjectsFilter{
		UserID:  actor.ID,
		Status:  in.Status,
		Role:    in.Role,
		Page:    in.Page,
		PerPage: in.PerPage,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &ListProjectsOutput{Items: items, Page: in.Page, PerPage: in.PerPage, Total: total}, nil
}

func (s *projectService) getAuthorized(ctx context.Context, actor Actor, id uuid.UUID, action Action) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("project not found")
		}
		return nil, apperr.Internal(err)
	}
	ok, err := s.authz.CanPerform(ctx, actor, action, Resource{Project: p})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.Authorization("you do not have access to this project")
	}
	return p, nil
}

func (s *projectService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.Project, error) {
	if _, err := s.getAuthorized(ctx, actor, id, ActionProjectRead); err != nil {
		return nil, err
	}
	p, err := s.projects.GetWithMembers(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return p, nil
}

func (s *projectService) Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdateProjectInput) (*model.Project, error) {
	p, err := s.getAuthorized(ctx, actor, id, ActionProjectUpdate)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	changes := map[string]interface{}{}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len(name) < 3 {
			return nil, apperr.Validation("project name must be at least 3 characters")
		}
		fields["name"] = name
		changes["name"] = map[string]interface{}{"from": p.Name, "to": name}
	}
	if in.Description != nil {
		fields["description"] = *in.Description
		changes["description"] = true
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation("invalid project status")
		}
		fields["status"] = *in.Status
		changes["status"] = map[string]interface{}{"from": p.Status, "to": *in.Status}
	}
	if in.Color != nil {
		if !colorRe.MatchString(*in.Color) {
			return nil, apperr.Validation("color must be a #RRGGBB hex code")
		}
		fields["color"] = *in.Color
		changes["color"] = map[string]interface{}{"from": p.Color, "to": *in.Color}
	}

	start, end := p.StartDate, p.EndDate
	if in.StartDate != nil {
		start = in.StartDate
		fields["start_date"] = *in.StartDate
		changes["start_date"] = true
	}
	if in.EndDate != nil {
		end = in.EndDate
		fields["end_date"] = *in.EndDate
		changes["end_date"] = true
	}
	if err := validateProjectDates(start, end); err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return p, nil
	}

	act := newActivity(actor, p.ID, nil, model.ActionProjectUpdated, changes)
	if err := s.projects.UpdateFields(ctx, id, fields, act); err != nil {
		return nil, apperr.Internal(err)
	}
	s.notifier.notify(ctx, act)

	updated, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return updated, nil
}

func (s *projectService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	p, err := s.getAuthorized(ctx, actor, id, ActionProjectDelete)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, p); err != nil {
		return apperr.Internal(err)
	}
	// The audit row would cascade away with the project, so the deletion
	// event only goes to the queue.
	s.notifier.notify(ctx, newActivity(actor, p.ID, nil, model.ActionProjectDeleted, map[string]interface{}{
		"name": p.Name,
	}))
	return nil
}

func (s *projectService) AddMember(ctx context.Context, actor Actor, projectID uuid.UUID, in AddMemberInput) (*model.ProjectMember, error) {
	p, err := s.getAuthorized(ctx, actor, projectID, ActionProjectManageMembers)
	if err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("invalid role")
	}

	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}

	m := &model.ProjectMember{ProjectID: p.ID, UserID: in.UserID, Role: in.Role}
	act := newActivity(actor, p.ID, nil, model.ActionMemberAdded, map[string]interface{}{
		"user_id": in.UserID,
		"role":    in.Role,
	})
	if err := s.projects.AddMember(ctx, m, act); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("user is already a member of this project")
		}
		return nil, apperr.Internal(err)
	}
	s.notifier.notify(ctx, act)
	return m, nil
}

func (s *projectService) RemoveMember(ctx context.Context, actor Actor, projectID, userID uuid.UUID) error {
	p, err := s.getAuthorized(ctx, actor, projectID, ActionProjectManageMembers)
	if err != nil {
		return err
	}
	if userID == p.OwnerID {
		return apperr.Validation("the project owner cannot be removed")
	}

	act := newActivity(actor, p.ID, nil, model.ActionMemberRemoved, map[string]interface{}{
		"user_id": userID,
	})
	if err := s.projects.RemoveMember(ctx, projectID, userID, act); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("membership not found")
		}
		return apperr.Internal(err)
	}
	s.notifier.notify(ctx, act)
	return nil
}
