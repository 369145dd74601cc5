package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/modules/serializer"
	"github.com/taskboard-dev/taskboard/internal/modules/service"
)

type AuthHandler struct {
	svc service.AuthService
}

func NewAuthHandler(s service.AuthService) *AuthHandler {
	return &AuthHandler{svc: s}
}

type RegisterReq struct {
	Email    string `form:"email" json:"email" binding:"required" example:"alice@example.com"`
	Password string `form:"password" json:"password" binding:"required" example:"Sup3rSecret"`
	FullName string `form:"full_name" json:"full_name" binding:"required" example:"Alice Doe"`
}

// Register godoc
//
//	@Summary		Register user
//	@Description	Create a new account. New accounts always start with the MEMBER role.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.RegisterReq	true	"Register payload"
//	@Success		201	{object}	serializer.Response{data=model.User}
//	@Router			/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	req := RegisterReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	user, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.OK(user))
}

type LoginReq struct {
	Email    string `form:"email" json:"email" binding:"required" example:"alice@example.com"`
	Password string `form:"password" json:"password" binding:"required" example:"Sup3rSecret"`
}

// Login godoc
//
//	@Summary		Login
//	@Description	Exchange credentials for an access/refresh token pair.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.LoginReq	true	"Login payload"
//	@Success		200	{object}	serializer.Response{data=service.LoginOutput}
//	@Router			/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	req := LoginReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	out, err := h.svc.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.OK(out))
}

type RefreshReq struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

type RefreshResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Refresh godoc
//
//	@Summary		Refresh access token
//	@Description	Exchange a valid refresh token for a fresh access token. The refresh token goes in the Authorization header as a bearer token; a refresh_token body field is accepted as a fallback.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.RefreshReq	false	"Refresh payload"
//	@Success		200	{object}	serializer.Response{data=handler.RefreshResp}
//	@Router			/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if raw == "" {
		req := RefreshReq{}
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
			return
		}
		raw = req.RefreshToken
	}
	if raw == "" {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr("refresh token required"))
		return
	}

	access, err := h.svc.Refresh(c.Request.Context(), raw)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.OK(RefreshResp{
		AccessToken: access,
		TokenType:   "Bearer",
	}))
}

// Logout godoc
//
//	@Summary		Logout
//	@Description	Revoke the presented access token. Subsequent requests with it are rejected.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Router			/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	raw := strings.TrimSpace(c.GetString(CtxRawToken))
	if raw == "" {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	if err := h.svc.Logout(c.Request.Context(), raw); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Msg("logged out"))
}

// Me godoc
//
//	@Summary		Current user
//	@Description	Return the profile of the authenticated user.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.User}
//	@Router			/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	user, err := h.svc.Me(c.Request.Context(), actor)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.OK(user))
}
