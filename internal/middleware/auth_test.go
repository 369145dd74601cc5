package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/taskboard-dev/taskboard/internal/modules/handler"
	"github.com/taskboard-dev/taskboard/internal/modules/service"
	"github.com/taskboard-dev/taskboard/internal/pkg/tokens"
)

// fakeRevoker is an in-memory service.TokenRevoker.
type fakeRevoker struct {
	jtis map[string]bool
	err  error
}

func newFakeRevoker() *fakeRevoker { return &fakeRevoker{jtis: map[string]bool{}} }

func (r *fakeRevoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if r.err != nil {
		return r.err
	}
	r.jtis[jti] = true
	return nil
}

func (r *fakeRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return r.jtis[jti], nil
}

func newAuthRouter(tm *tokens.Manager, revoked service.TokenRevoker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Auth(tm, revoked, zap.NewNop()), func(c *gin.Context) {
		actor := c.MustGet(handler.CtxActor).(service.Actor)
		c.JSON(http.StatusOK, gin.H{"email": actor.Email})
	})
	return r
}

func doGet(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tm := tokens.NewManager("test-secret", time.Hour, 30*24*time.Hour)
	id := tokens.Identity{
		UserID:   uuid.New(),
		Email:    "alice@example.com",
		Role:     "MEMBER",
		FullName: "Alice Doe",
	}

	t.Run("valid access token passes and sets the actor", func(t *testing.T) {
		access, err := tm.IssueAccess(id)
		assert.NoError(t, err)

		w := doGet(newAuthRouter(tm, newFakeRevoker()), access)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "alice@example.com")
	})

	t.Run("missing bearer header is rejected", func(t *testing.T) {
		w := doGet(newAuthRouter(tm, newFakeRevoker()), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("refresh token cannot be used as access token", func(t *testing.T) {
		refresh, err := tm.IssueRefresh(id)
		assert.NoError(t, err)

		w := doGet(newAuthRouter(tm, newFakeRevoker()), refresh)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revoked token is rejected", func(t *testing.T) {
		access, err := tm.IssueAccess(id)
		assert.NoError(t, err)
		claims, err := tm.Parse(access)
		assert.NoError(t, err)

		revoked := newFakeRevoker()
		assert.NoError(t, revoked.Revoke(context.Background(), claims.ID, time.Hour))

		w := doGet(newAuthRouter(tm, revoked), access)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "token has been revoked")
	})

	t.Run("revocation store outage does not block requests", func(t *testing.T) {
		access, err := tm.IssueAccess(id)
		assert.NoError(t, err)

		broken := &fakeRevoker{err: errors.New("connection refused")}
		w := doGet(newAuthRouter(tm, broken), access)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
