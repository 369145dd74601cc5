package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/taskboard-dev/taskboard/internal/modules/handler"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/serializer"
	"github.com/taskboard-dev/taskboard/internal/modules/service"
	"github.com/taskboard-dev/taskboard/internal/pkg/tokens"
)

// Auth returns a middleware that authenticates requests with JWT bearer
// access tokens. It rejects revoked tokens, sets the actor in the context,
// and tags the current span with the user id for telemetry filtering.
func Auth(tm *tokens.Manager, revoked service.TokenRevoker, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr(""))
			return
		}
		raw := strings.TrimPrefix(auth, "Bearer ")

		claims, err := tm.ParseType(raw, tokens.TypeAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("invalid or expired token"))
			return
		}

		isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			// Revocation degrades with Redis: on lookup failure the request
			// proceeds as not revoked.
			log.Sugar().Warnw("revocation check failed", "jti", claims.ID, "err", err)
		} else if isRevoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("token has been revoked"))
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("invalid or expired token"))
			return
		}

		span := trace.SpanFromContext(c.Request.Context())
		if span.SpanContext().IsValid() {
			span.SetAttributes(attribute.String("user_id", claims.Subject))
		}

		c.Set(handler.CtxActor, service.Actor{
			ID:       userID,
			Email:    claims.Email,
			Role:     model.Role(claims.Role),
			FullName: claims.FullName,
		})
		c.Set(handler.CtxRawToken, raw)
		c.Next()
	}
}
