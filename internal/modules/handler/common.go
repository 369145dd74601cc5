package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taskboard-dev/taskboard/internal/modules/serializer"
	"github.com/taskboard-dev/taskboard/internal/modules/service"
)

// Context keys populated by the auth middleware.
const (
	CtxActor    = "actor"
	CtxRawToken = "raw_token"
)

// actorFrom pulls the authenticated identity set by the auth middleware.
func actorFrom(c *gin.Context) (service.Actor, bool) {
	v, ok := c.Get(CtxActor)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return service.Actor{}, false
	}
	actor, ok := v.(service.Actor)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return service.Actor{}, false
	}
	return actor, true
}

// uuidParam parses a path parameter as a UUID, replying 400 on failure.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

func respondErr(c *gin.Context, err error) {
	status, resp := serializer.FromError(err)
	c.JSON(status, resp)
}
