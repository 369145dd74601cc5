package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/serializer"
	"github.com/taskboard-dev/taskboard/internal/modules/service"
)

type ProjectHandler struct {
	svc service.ProjectService
}

func NewProjectHandler(s service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: s}
}

// dateOnly accepts YYYY-MM-DD values for project date fields.
func dateOnly(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type CreateProjectReq struct {
	Name        string  `form:"name" json:"name" binding:"required" example:"Website Redesign"`
	Description *string `form:"description" json:"description"`
	Status      string  `form:"status" json:"status" binding:"omitempty,oneof=PLANNING ACTIVE ON_HOLD COMPLETED ARCHIVED" enums:"PLANNING,ACTIVE,ON_HOLD,COMPLETED,ARCHIVED"`
	Color       *string `form:"color" json:"color" example:"#3B82F6"`
	StartDate   string  `form:"start_date" json:"start_date" example:"2026-01-15"`
	EndDate     string  `form:"end_date" json:"end_date" example:"2026-06-30"`
}

// CreateProject godoc
//
//	@Summary		Create project
//	@Description	Create a project. The creator becomes the owner and gets an ADMIN membership.
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.CreateProjectReq	true	"CreateProject payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=model.Project}
//	@Router			/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	req := CreateProjectReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	start, err := dateOnly(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid start_date", err))
		return
	}
	end, err := dateOnly(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid end_date", err))
		return
	}

	in := service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		StartDate:   start,
		EndDate:     end,
	}
	if req.Status != "" {
		status := model.ProjectStatus(req.Status)
		in.Status = &status
	}

	project, err := h.svc.Create(c.Request.Context(), actor, in)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.OK(project))
}

type ListProjectsReq struct {
	Status  string `form:"status" json:"status" binding:"omitempty,oneof=PLANNING ACTIVE ON_HOLD COMPLETED ARCHIVED" enums:"PLANNING,ACTIVE,ON_HOLD,COMPLETED,ARCHIVED"`
	Role    string `form:"role" json:"role" binding:"omitempty,oneof=ADMIN MANAGER MEMBER VIEWER" enums:"ADMIN,MANAGER,MEMBER,VIEWER"`
	Page    int    `form:"page,default=1" json:"page" binding:"min=1" example:"1"`
	PerPage int    `form:"per_page,default=20" json:"per_page" binding:"min=1,max=100" example:"20"`
}

// ListProjects godoc
//
//	@Summary		List projects
//	@Description	List the projects the caller is a member of, with the caller's role and member/task counts.
//	@Tags			project
//	@Produce		json
//	@Param			status		query	string	false	"Filter by project status"	Enums(PLANNING,ACTIVE,ON_HOLD,COMPLETED,ARCHIVED)
//	@Param			role		query	string	false	"Filter by the caller's membership role"	Enums(ADMIN,MANAGER,MEMBER,VIEWER)
//	@Param			page		query	integer	false	"Page number, default 1"
//	@Param			per_page	query	integer	false	"Page size, default 20, max 100"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.PagedResponse{data=[]repo.ProjectListItem}
//	@Router			/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	req := ListProjectsReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	in := service.ListProjectsInput{Page: req.Page, PerPage: req.PerPage}
	if req.Status != "" {
		status := model.ProjectStatus(req.Status)
		in.Status = &status
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

// GetProject godoc
//
//	@Summary		Get project
//	@Description	Get a project with its member list. Requires membership or admin.
//	@Tags			project
//	@Produce		json
//	@Param			project_id	path	string	true	"Project ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Project}
//	@Router			/projects/{project_id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	project, err := h.svc.Get(c.Request.Context(), actor, projectID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.OK(project))
}

type UpdateProjectReq struct {
	Name        *string `form:"name" json:"name"`
	Description *string `form:"description" json:"description"`
	Status      *string `form:"status" json:"status" binding:"omitempty,oneof=PLANNING ACTIVE ON_HOLD COMPLETED ARCHIVED" enums:"PLANNING,ACTIVE,ON_HOLD,COMPLETED,ARCHIVED"`
	Color       *string `form:"color" json:"color"`
	StartDate   *string `form:"start_date" json:"start_date" example:"2026-01-15"`
	EndDate     *string `form:"end_date" json:"end_date" example:"2026-06-30"`
}

// UpdateProject godoc
//
//	@Summary		Update project
//	@Description	Partial update. Requires the project owner or a MANAGER+ membership.
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			project_id	path	string					true	"Project ID"	format(uuid)
//	@Param			payload		body	handler.UpdateProjectReq	true	"UpdateProject payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Project}
//	@Router			/projects/{project_id} [put]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	req := UpdateProjectReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	in := service.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	}
	if req.Status != nil {
		status := model.ProjectStatus(*req.Status)
		in.Status = &status
	}
	if req.StartDate != nil {
		start, err := dateOnly(*req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid start_date", err))
			return
		}
		in.StartDate = start
	}
	if req.EndDate != nil {
		end, err := dateOnly(*req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid end_date", err))
			return
		}
		in.EndDate = end
	}

	project, err := h.svc.Update(c.Request.Context(), actor, projectID, in)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.OK(project))
}

// DeleteProject godoc
//
//	@Summary		Delete project
//	@Description	Delete a project and everything under it. Owner only.
//	@Tags			project
//	@Produce		json
//	@Param			project_id	path	string	true	"Project ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Router			/projects/{project_id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actor, projectID); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Msg("project deleted"))
}

type AddMemberReq struct {
	UserID string `form:"user_id" json:"user_id" binding:"required,uuid" format:"uuid"`
	Role   string `form:"role" json:"role" binding:"required,oneof=ADMIN MANAGER MEMBER VIEWER" enums:"ADMIN,MANAGER,MEMBER,VIEWER"`
}

// AddMember godoc
//
//	@Summary		Add project member
//	@Description	Add a user to the project with a role. Requires the owner or a MANAGER+ membership.
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			project_id	path	string				true	"Project ID"	format(uuid)
//	@Param			payload		body	handler.AddMemberReq	true	"AddMember payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=model.ProjectMember}
//	@Router			/projects/{project_id}/members [post]
func (h *ProjectHandler) AddMember(c *gin.Context) {
	req := AddMemberReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid user_id", err))
		return
	}

	member, err := h.svc.AddMember(c.Request.Context(), actor, projectID, service.AddMemberInput{
		UserID: userID,
		Role:   model.Role(req.Role),
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.OK(member))
}

// RemoveMember godoc
//
//	@Summary		Remove project member
//	@Description	Remove a user from the project. The owner cannot be removed.
//	@Tags			project
//	@Produce		json
//	@Param			project_id	path	string	true	"Project ID"	format(uuid)
//	@Param			user_id		path	string	true	"User ID"		format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Router			/projects/{project_id}/members/{user_id} [delete]
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
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

	if err := h.svc.RemoveMember(c.Request.Context(), actor, projectID, userID); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Msg("member removed"))
}
