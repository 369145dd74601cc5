package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/repo"
	"github.com/taskboard-dev/taskboard/internal/pkg/apperr"
	"github.com/taskboard-dev/taskboard/internal/pkg/secrets"
	"gorm.io/gorm"
)

type ListUsersInput struct {
	Role     *model.Role
	IsActive *bool
	Page     int
	PerPage  int
}

type ListUsersOutput struct {
	Items   []model.User
	Page    int
	PerPage int
	Total   int64
}

type UpdateUserInput struct {
	FullName        *string
	AvatarURL       *string
	Password        *string
	CurrentPassword *string
	// Admin-only fields.
	Role     *model.Role
	IsActive *bool
}

type UserService interface {
	List(ctx context.Context, actor Actor, in ListUsersInput) (*ListUsersOutput, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.User, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdateUserInput) (*model.User, error)
	// Deactivate is the soft delete: the row stays, is_active drops.
	Deactivate(ctx context.Context, actor Actor, id uuid.UUID) error
}

type userService struct {
	users repo.UserRepo
}

func NewUserService(users repo.UserRepo) UserService {
	return &userService{users: users}
}

func (s *userService) List(ctx context.Context, actor Actor, in ListUsersInput) (*ListUsersOutput, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Authorization("admin access required")
	}
	users, total, err := s.users.List(ctx, repo.ListUsersFilter{
		Role:     in.Role,
		IsActive: in.IsActive,
		Page:     in.Page,
		PerPage:  in.PerPage,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &ListUsersOutput{Items: users, Page: in.Page, PerPage: in.PerPage, Total: total}, nil
}

func (s *userService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.User, error) {
	if actor.ID != id && !actor.IsAdmin() {
		return nil, apperr.Authorization("you can only view your own profile")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdateUserInput) (*model.User, error) {
	isSelf := actor.ID == id
	if !isSelf && !actor.IsAdmin() {
		return nil, apperr.Authorization("you can only update your own profile")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}

	fields := map[string]interface{}{}

	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if len(name) < 2 {
			return nil, apperr.Validation("full name must be at least 2 characters")
		}
		fields["full_name"] = name
	}
	if in.AvatarURL != nil {
		fields["avatar_url"] = *in.AvatarURL
	}
	if in.Password != nil {
		// Self-service password change requires the current password;
		// admins reset without it.
		if isSelf && !actor.IsAdmin() {
			if in.CurrentPassword == nil || !secrets.CheckPassword(user.PasswordHash, *in.CurrentPassword) {
				return nil, apperr.Authentication("current password is incorrect")
			}
		}
		if err := secrets.ValidatePassword(*in.Password); err != nil {
			return nil, apperr.Validation(err.Error())
		}
		hash, err := secrets.HashPassword(*in.Password)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		fields["password_hash"] = hash
	}
	if in.Role != nil {
		if !actor.IsAdmin() {
			return nil, apperr.Authorization("only admins can change roles")
		}
		if !in.Role.Valid() {
			return nil, apperr.Validation("invalid role")
		}
		fields["role"] = *in.Role
	}
	if in.IsActive != nil {
		if !actor.IsAdmin() {
			return nil, apperr.Authorization("only admins can change account status")
		}
		fields["is_active"] = *in.IsActive
	}

	if len(fields) == 0 {
		return user, nil
	}
	if err := s.users.UpdateFields(ctx, id, fields); err != nil {
		return nil, apperr.Internal(err)
	}
	return s.users.GetByID(ctx, id)
}

func (s *userService) Deactivate(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperr.Authorization("admin access required")
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal(err)
	}
	if err := s.users.UpdateFields(ctx, id, map[string]interface{}{"is_active": false}); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
