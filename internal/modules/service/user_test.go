package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/repo"
	"github.com/taskboard-dev/taskboard/internal/pkg/apperr"
	"github.com/taskboard-dev/taskboard/internal/pkg/secrets"
	"gorm.io/gorm"
)

func TestUserService_List(t *testing.T) {
	t.Run("admin lists with filters", func(t *testing.T) {
		users := &MockUserRepo{}
		users.On("List", mock.Anything, mock.MatchedBy(func(f repo.ListUsersFilter) bool {
			return f.Role != nil && *f.Role == model.RoleMember && f.Page == 2
		})).Return([]model.User{{ID: uuid.New()}}, int64(21), nil)

		role := model.RoleMember
		svc := NewUserService(users)
		out, err := svc.List(context.Background(), Actor{ID: uuid.New(), Role: model.RoleAdmin}, ListUsersInput{Role: &role, Page: 2, PerPage: 20})
		assert.NoError(t, err)
		assert.Equal(t, int64(21), out.Total)
	})

	t.Run("member denied", func(t *testing.T) {
		users := &MockUserRepo{}
		svc := NewUserService(users)
		_, err := svc.List(context.Background(), Actor{ID: uuid.New(), Role: model.RoleMember}, ListUsersInput{Page: 1, PerPage: 20})
		assert.True(t, apperr.HasCode(err, apperr.CodeAuthorization))
		users.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})
}

func TestUserService_Get(t *testing.T) {
	self := Actor{ID: uuid.New(), Role: model.RoleMember}

	t.Run("own profile", func(t *testing.T) {
		users := &MockUserRepo{}
		users.On("GetByID", mock.Anything, self.ID).Return(&model.User{ID: self.ID}, nil)
		svc := NewUserService(users)
		u, err := svc.Get(context.Background(), self, self.ID)
		assert.NoError(t, err)
		assert.Equal(t, self.ID, u.ID)
	})

	t.Run("other member's profile denied", func(t *testing.T) {
		svc := NewUserService(&MockUserRepo{})
		_, err := svc.Get(context.Background(), self, uuid.New())
		assert.True(t, apperr.HasCode(err, apperr.CodeAuthorization))
	})

	t.Run("admin reads anyone", func(t *testing.T) {
		target := uuid.New()
		users := &MockUserRepo{}
		users.On("GetByID", mock.Anything, target).Return(&model.User{ID: target}, nil)
		svc := NewUserService(users)
		_, err := svc.Get(context.Background(), Actor{ID: uuid.New(), Role: model.RoleAdmin}, target)
		assert.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		target := uuid.New()
		users := &MockUserRepo{}
		users.On("GetByID", mock.Anything, target).Return(nil, gorm.ErrRecordNotFound)
		svc := NewUserService(users)
		_, err := svc.Get(context.Background(), Actor{ID: uuid.New(), Role: model.RoleAdmin}, target)
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
	})
}

func TestUserService_Update(t *testing.T) {
	self := Actor{ID: uuid.New(), Role: model.RoleMember}
	hash, _ := secrets.HashPassword("Curr3ntSecret")
	stored := &model.User{ID: self.ID, PasswordHash: hash, Role: model.RoleMember, IsActive: true}

	t.Run("self updates name", func(t *testing.T) {
		users := &MockUserRepo{}
		users.On("GetByID", mock.Anything, self.ID).Return(stored, nil)
		users.On("UpdateFields", mock.Anything, self.ID, mock.MatchedBy(func(fields map[string]interface{}) bool {
			return fields["full_name"] == "Alice D."
		})).Return(nil)

		name := "  Alice D.  "
		svc := NewUserService(users)
		_, err := svc.Update(context.Background(), self, self.ID, UpdateUserInput{FullName: &name})
		assert.NoError(t, err)
	})

	t.Run("password change needs the current password", func(t *testing.T) {
		users := &MockUserRepo{}
		users.On("GetByID", mock.Anything, self.ID).Return(stored, nil)

		newPw := "N3wSecretPw"
		wrong := "guess"
		svc := NewUserService(users)
		_, err := svc.Update(context.Background(), self, self.ID, UpdateUserInput{Password: &newPw, CurrentPassword: &wrong})
		assert.True(t, apperr.HasCode(err, apperr.CodeAuthentication))

		_, err = svc.Update(context.Background(), self, self.ID, UpdateUserInput{Password: &newPw})
		assert.True(t, apperr.HasCode(err, apperr.CodeAuthentication))
	})

	t.Run("admin resets password without current", func(t *testing.T) {
		users := &MockUserRepo{}
		users.On("GetByID", mock.Anything, self.ID).Return(stored, nil)
		users.On("UpdateFields", mock.Anything, self.ID, mock.MatchedBy(func(fields map[string]interface{}) bool {
			_, ok := fields["password_hash"]
			return ok
		})).Return(nil)

		newPw := "N3wSecretPw"
		svc := NewUserService(users)
		_, err := svc.Update(context.Background(), Actor{ID: uuid.New(), Role: model.RoleAdmin}, self.ID, UpdateUserInput{Password: &newPw})
		assert.NoError(t, err)
	})

	t.Run("role change is admin-only", func(t *testing.T) {
		users := &MockUserRepo{}
		users.On("GetByID", mock.Anything, self.ID).Return(stored, nil)

		role := model.RoleAdmin
		svc := NewUserService(users)
		_, err := svc.Update(context.Background(), self, self.ID, UpdateUserInput{Role: &role})
		assert.True(t, apperr.HasCode(err, apperr.CodeAuthorization))
		users.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("other member's profile denied", func(t *testing.T) {
		svc := NewUserService(&MockUserRepo{})
		name := "Mallory"
		_, err := svc.Update(context.Background(), self, uuid.New(), UpdateUserInput{FullName: &name})
		assert.True(t, apperr.HasCode(err, apperr.CodeAuthorization))
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		users := &MockUserRepo{}
		users.On("GetByID", mock.Anything, self.ID).Return(stored, nil)
		svc := NewUserService(users)
		u, err := svc.Update(context.Background(), self, self.ID, UpdateUserInput{})
		assert.NoError(t, err)
		assert.Equal(t, stored.ID, u.ID)
		users.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUserService_Deactivate(t *testing.T) {
	target := uuid.New()

	t.Run("admin deactivates", func(t *testing.T) {
		users := &MockUserRepo{}
		users.On("GetByID", mock.Anything, target).Return(&model.User{ID: target, IsActive: true}, nil)
		users.On("UpdateFields", mock.Anything, target, map[string]interface{}{"is_active": false}).Return(nil)

		svc := NewUserService(users)
		assert.NoError(t, svc.Deactivate(context.Background(), Actor{ID: uuid.New(), Role: model.RoleAdmin}, target))
		users.AssertExpectations(t)
	})

	t.Run("member denied", func(t *testing.T) {
		svc := NewUserService(&MockUserRepo{})
		err := svc.Deactivate(context.Background(), Actor{ID: uuid.New(), Role: model.RoleMember}, target)
		assert.True(t, apperr.HasCode(err, apperr.CodeAuthorization))
	})

	t.Run("unknown user", func(t *testing.T) {
		users := &MockUserRepo{}
		users.On("GetByID", mock.Anything, target).Return(nil, gorm.ErrRecordNotFound)
		svc := NewUserService(users)
		err := svc.Deactivate(context.Background(), Actor{ID: uuid.New(), Role: model.RoleAdmin}, target)
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
	})
}
