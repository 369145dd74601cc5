package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/repo"
	"github.com/taskboard-dev/taskboard/internal/pkg/apperr"
	"github.com/taskboard-dev/taskboard/internal/pkg/secrets"
	"github.com/taskboard-dev/taskboard/internal/pkg/tokens"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Identical message for unknown email and wrong password so responses do
// not reveal which emails are registered.
const msgInvalidCredentials = "invalid email or password"

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginOutput struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	User         *model.User `json:"user"`
}

// TokenRevoker is the JTI denylist surface. *cache.RevocationStore
// implements it; tests substitute an in-memory fake.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, in LoginInput) (*LoginOutput, error)
	// Refresh exchanges a raw refresh token for a new access token.
	Refresh(ctx context.Context, rawToken string) (string, error)
	// Logout revokes the presented access token's JTI.
	Logout(ctx context.Context, rawToken string) error
	Me(ctx context.Context, actor Actor) (*model.User, error)
}

type authService struct {
	users   repo.UserRepo
	tm      *tokens.Manager
	revoked TokenRevoker
	log     *zap.Logger
}

func NewAuthService(users repo.UserRepo, tm *tokens.Manager, revoked TokenRevoker, log *zap.Logger) AuthService {
	return &authService{users: users, tm: tm, revoked: revoked, log: log}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fullName := strings.TrimSpace(in.FullName)

	if !emailRe.MatchString(email) {
		return nil, apperr.Validation("invalid email format")
	}
	if err := secrets.ValidatePassword(in.Password); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if len(fullName) < 2 {
		return nil, apperr.Validation("full name must be at least 2 characters")
	}

	hash, err := secrets.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         model.RoleMember,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Covers both the pre-check-free path and the race on the unique
		// email index.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Authentication(msgInvalidCredentials)
		}
		return nil, apperr.Internal(err)
	}
	if !secrets.CheckPassword(user.PasswordHash, in.Password) {
		return nil, apperr.Authentication(msgInvalidCredentials)
	}
	if !user.IsActive {
		return nil, apperr.Authentication("account is disabled")
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Sugar().Warnw("update last login", "user_id", user.ID, "err", err)
	}
	user.LastLogin = &now

	id := tokens.Identity{UserID: user.ID, Email: user.Email, Role: string(user.Role), FullName: user.FullName}
	access, err := s.tm.IssueAccess(id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	refresh, err := s.tm.IssueRefresh(id)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &LoginOutput{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tm.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

func (s *authService) Refresh(ctx context.Context, rawToken string) (string, error) {
	claims, err := s.tm.ParseType(rawToken, tokens.TypeRefresh)
	if err != nil {
		return "", apperr.Authentication("invalid or expired refresh token")
	}
	if revoked, err := s.revoked.IsRevoked(ctx, claims.ID); err != nil {
		return "", apperr.Internal(err)
	} else if revoked {
		return "", apperr.Authentication("token has been revoked")
	}

	userID, err := claims.UserID()
	if err != nil {
		return "", apperr.Authentication("invalid or expired refresh token")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil || !user.IsActive {
		return "", apperr.Authentication("invalid user or account disabled")
	}

	access, err := s.tm.IssueAccess(tokens.Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     string(user.Role),
		FullName: user.FullName,
	})
	if err != nil {
		return "", apperr.Internal(err)
	}
	return access, nil
}

func (s *authService) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.tm.Parse(rawToken)
	if err != nil {
		return apperr.Authentication("")
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		s.log.Sugar().Warnw("revoke token", "jti", claims.ID, "err", err)
	}
	return nil
}

func (s *authService) Me(ctx context.Context, actor Actor) (*model.User, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}
	if !user.IsActive {
		return nil, apperr.Authentication("account is disabled")
	}
	return user, nil
}
