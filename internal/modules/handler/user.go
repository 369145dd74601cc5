package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/serializer"
	"github.com/taskboard-dev/taskboard/internal/modules/service"
)

type UserHandler struct {
	svc service.UserService
}

func NewUserHandler(s service.UserService) *UserHandler {
	return &UserHandler{svc: s}
}

type ListUsersReq struct {
	Role     string `form:"role" json:"role" binding:"omitempty,oneof=ADMIN MANAGER MEMBER VIEWER" enums:"ADMIN,MANAGER,MEMBER,VIEWER"`
	IsActive *bool  `form:"is_active" json:"is_active"`
	Page     int    `form:"page,default=1" json:"page" binding:"min=1" example:"1"`
	PerPage  int    `form:"per_page,default=20" json:"per_page" binding:"min=1,max=100" example:"20"`
}

// ListUsers godoc
//
//	@Summary		List users
//	@Description	List all users. Admin only.
//	@Tags			user
//	@Produce		json
//	@Param			role		query	string	false	"Filter by role"	Enums(ADMIN,MANAGER,MEMBER,VIEWER)
//	@Param			is_active	query	boolean	false	"Filter by active flag"
//	@Param			page		query	integer	false	"Page number, default 1"
//	@Param			per_page	query	integer	false	"Page size, default 20, max 100"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.PagedResponse{data=[]model.User}
//	@Router			/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	req := ListUsersReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	in := service.ListUsersInput{
		IsActive: req.IsActive,
		Page:     req.Page,
		PerPage:  req.PerPage,
	}
	if req.Role != "" {
		role := model.Role(req.Role)
		in.Role = &role
	}

	out, err := h.svc.List(c.Request.Context(), actor, in)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Paged(out.Items, serializer.NewPagination(out.Page, out.PerPage, out.Total)))
}

// GetUser godoc
//
//	@Summary		Get user
//	@Description	Get a user by id. Users can fetch themselves; admins can fetch anyone.
//	@Tags			user
//	@Produce		json
//	@Param			user_id	path	string	true	"User ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.User}
//	@Router			/users/{user_id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	user, err := h.svc.Get(c.Request.Context(), actor, userID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.OK(user))
}

type UpdateUserReq struct {
	FullName        *string `form:"full_name" json:"full_name"`
	AvatarURL       *string `form:"avatar_url" json:"avatar_url"`
	Password        *string `form:"password" json:"password"`
	CurrentPassword *string `form:"current_password" json:"current_password"`
	Role            *string `form:"role" json:"role" binding:"omitempty,oneof=ADMIN MANAGER MEMBER VIEWER" enums:"ADMIN,MANAGER,MEMBER,VIEWER"`
	IsActive        *bool   `form:"is_active" json:"is_active"`
}

// UpdateUser godoc
//
//	@Summary		Update user
//	@Description	Update profile fields. role and is_active require admin. Changing your own password requires current_password unless you are an admin.
//	@Tags			user
//	@Accept			json
//	@Produce		json
//	@Param			user_id	path	string				true	"User ID"	format(uuid)
//	@Param			payload	body	handler.UpdateUserReq	true	"UpdateUser payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.User}
//	@Router			/users/{user_id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	req := UpdateUserReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	in := service.UpdateUserInput{
		FullName:        req.FullName,
		AvatarURL:       req.AvatarURL,
		Password:        req.Password,
		CurrentPassword: req.CurrentPassword,
		IsActive:        req.IsActive,
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		in.Role = &role
	}

	user, err := h.svc.Update(c.Request.Context(), actor, userID, in)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.OK(user))
}

// DeactivateUser godoc
//
//	@Summary		Deactivate user
//	@Description	Soft delete: marks the user inactive. Admin only.
//	@Tags			user
//	@Produce		json
//	@Param			user_id	path	string	true	"User ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Router			/users/{user_id} [delete]
func (h *UserHandler) DeactivateUser(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.svc.Deactivate(c.Request.Context(), actor, userID); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Msg("user deactivated"))
}
