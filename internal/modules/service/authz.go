package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/repo"
	"gorm.io/gorm"
)

// Actor is the request identity resolved from token claims. It is passed
// down through every service call; nothing is read from process globals.
type Actor struct {
	ID       uuid.UUID
	Email    string
	Role     model.Role
	FullName string
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// Action names every permission-gated operation.
type Action string

const (
	ActionProjectRead          Action = "project:read"
	ActionProjectUpdate        Action = "project:update"
	ActionProjectDelete        Action = "project:delete"
	ActionProjectManageMembers Action = "project:manage_members"
	ActionTaskCreate           Action = "task:create"
	ActionTaskRead             Action = "task:read"
	ActionTaskUpdate           Action = "task:update"
	ActionTaskDelete           Action = "task:delete"
	ActionCommentCreate        Action = "comment:create"
)

// Resource carries the entities a permission decision needs. Task actions
// also require the owning project to be set.
type Resource struct {
	Project *model.Project
	Task    *model.Task
}

// Authorizer is the single permission predicate; handlers and services
// never duplicate role conditionals outside of it.
type Authorizer interface {
	CanPerform(ctx context.Context, actor Actor, action Action, res Resource) (bool, error)
}

type authorizer struct {
	projects repo.ProjectRepo
}

func NewAuthorizer(projects repo.ProjectRepo) Authorizer {
	return &authorizer{projects: projects}
}

func (a *authorizer) CanPerform(ctx context.Context, actor Actor, action Action, res Resource) (bool, error) {
	if res.Project == nil {
		return false, errors.New("authorizer: project resource required")
	}
	project := res.Project

	// Project deletion is reserved to the owner alone; even a system
	// admin goes through ownership here.
	if action == ActionProjectDelete {
		return project.OwnerID == actor.ID, nil
	}

	if actor.IsAdmin() {
		return true, nil
	}

	member, err := a.projects.GetMember(ctx, project.ID, actor.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	isMember := member != nil
	isManager := isMember && member.Role.AtLeast(model.RoleManager)
	isOwner := project.OwnerID == actor.ID

	switch action {
	case ActionProjectRead, ActionTaskCreate, ActionTaskRead, ActionCommentCreate:
		return isMember, nil

	case ActionProjectUpdate, ActionProjectManageMembers:
		return isOwner || isManager, nil

	case ActionTaskUpdate, ActionTaskDelete:
		if res.Task == nil {
			return false, errors.New("authorizer: task resource required")
		}
		// The reporter keeps unilateral update/delete rights.
		if res.Task.ReporterID == actor.ID {
			return true, nil
		}
		return isOwner || isManager, nil
	}

	return false, nil
}
