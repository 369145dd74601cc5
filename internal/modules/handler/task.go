package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/serializer"
	"github.com/taskboard-dev/taskboard/internal/modules/service"
)

type TaskHandler struct {
	svc service.TaskService
}

func NewTaskHandler(s service.TaskService) *TaskHandler {
	return &TaskHandler{svc: s}
}

type CreateTaskReq struct {
	ProjectID      string   `form:"project_id" json:"project_id" binding:"required,uuid" format:"uuid"`
	Title          string   `form:"title" json:"title" binding:"required" example:"Implement login page"`
	Description    *string  `form:"description" json:"description"`
	Status         string   `form:"status" json:"status" binding:"omitempty,oneof=TODO IN_PROGRESS IN_REVIEW DONE ARCHIVED" enums:"TODO,IN_PROGRESS,IN_REVIEW,DONE,ARCHIVED"`
	Priority       string   `form:"priority" json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT" enums:"LOW,MEDIUM,HIGH,URGENT"`
	AssigneeID     string   `form:"assignee_id" json:"assignee_id" binding:"omitempty,uuid" format:"uuid"`
	DueDate        *string  `form:"due_date" json:"due_date" example:"2026-02-01T00:00:00Z"`
	EstimatedHours *float64 `form:"estimated_hours" json:"estimated_hours" example:"4.5"`
	Tags           []string `form:"tags" json:"tags"`
}

// CreateTask godoc
//
//	@Summary		Create task
//	@Description	Create a task in a project. The caller becomes the reporter. New tasks land at the bottom of their status column.
//	@Tags			task
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.CreateTaskReq	true	"CreateTask payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=model.Task}
//	@Router			/tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	req := CreateTaskReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid project_id", err))
		return
	}

	in := service.CreateTaskInput{
		ProjectID:      projectID,
		Title:          req.Title,
		Description:    req.Description,
		EstimatedHours: req.EstimatedHours,
		Tags:           req.Tags,
	}
	if req.Status != "" {
		status := model.TaskStatus(req.Status)
		in.Status = &status
	}
	if req.Priority != "" {
		priority := model.TaskPriority(req.Priority)
		in.Priority = &priority
	}
	if req.AssigneeID != "" {
		assigneeID, err := uuid.Parse(req.AssigneeID)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid assignee_id", err))
			return
		}
		in.AssigneeID = &assigneeID
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid due_date", err))
			return
		}
		in.DueDate = &due
	}

	task, err := h.svc.Create(c.Request.Context(), actor, in)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.OK(task))
}

type ListTasksReq struct {
	ProjectID  string `form:"project_id" json:"project_id" binding:"omitempty,uuid" format:"uuid"`
	Status     string `form:"status" json:"status" binding:"omitempty,oneof=TODO IN_PROGRESS IN_REVIEW DONE ARCHIVED" enums:"TODO,IN_PROGRESS,IN_REVIEW,DONE,ARCHIVED"`
	Priority   string `form:"priority" json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT" enums:"LOW,MEDIUM,HIGH,URGENT"`
	AssigneeID string `form:"assignee_id" json:"assignee_id" binding:"omitempty,uuid" format:"uuid"`
	ReporterID string `form:"reporter_id" json:"reporter_id" binding:"omitempty,uuid" format:"uuid"`
	Search     string `form:"search" json:"search" example:"login"`
	DueBefore  string `form:"due_before" json:"due_before" example:"2026-03-01T00:00:00Z"`
	DueAfter   string `form:"due_after" json:"due_after" example:"2026-01-01T00:00:00Z"`
	Page       int    `form:"page,default=1" json:"page" binding:"min=1" example:"1"`
	PerPage    int    `form:"per_page,default=20" json:"per_page" binding:"min=1,max=100" example:"20"`
}

// ListTasks godoc
//
//	@Summary		List tasks
//	@Description	List tasks with filters. Without project_id, members see tasks across their projects and admins see everything.
//	@Tags			task
//	@Produce		json
//	@Param			project_id	query	string	false	"Scope to one project"	format(uuid)
//	@Param			status		query	string	false	"Filter by status"		Enums(TODO,IN_PROGRESS,IN_REVIEW,DONE,ARCHIVED)
//	@Param			priority	query	string	false	"Filter by priority"	Enums(LOW,MEDIUM,HIGH,URGENT)
//	@Param			assignee_id	query	string	false	"Filter by assignee"	format(uuid)
//	@Param			reporter_id	query	string	false	"Filter by reporter"	format(uuid)
//	@Param			search		query	string	false	"Case-insensitive match on title and description"
//	@Param			due_before	query	string	false	"Due date upper bound (RFC3339)"
//	@Param			due_after	query	string	false	"Due date lower bound (RFC3339)"
//	@Param			page		query	integer	false	"Page number, default 1"
//	@Param			per_page	query	integer	false	"Page size, default 20, max 100"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.PagedResponse{data=[]model.Task}
//	@Router			/tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	req := ListTasksReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	in := service.ListTasksInput{
		Search:  req.Search,
		Page:    req.Page,
		PerPage: req.PerPage,
	}
	if req.ProjectID != "" {
		id, err := uuid.Parse(req.ProjectID)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid project_id", err))
			return
		}
		in.ProjectID = &id
	}
	if req.Status != "" {
		status := model.TaskStatus(req.Status)
		in.Status = &status
	}
	if req.Priority != "" {
		priority := model.TaskPriority(req.Priority)
		in.Priority = &priority
	}
	if req.AssigneeID != "" {
		id, err := uuid.Parse(req.AssigneeID)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid assignee_id", err))
			return
		}
		in.AssigneeID = &id
	}
	if req.ReporterID != "" {
		id, err := uuid.Parse(req.ReporterID)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid reporter_id", err))
			return
		}
		in.ReporterID = &id
	}
	if req.DueBefore != "" {
		t, err := time.Parse(time.RFC3339, req.DueBefore)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid due_before", err))
			return
		}
		in.DueBefore = &t
	}
	if req.DueAfter != "" {
		t, err := time.Parse(time.RFC3339, req.DueAfter)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid due_after", err))
			return
		}
		in.DueAfter = &t
	}

	out, err := h.svc.List(c.Request.Context(), actor, in)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Paged(out.Items, serializer.NewPagination(out.Page, out.PerPage, out.Total)))
}

// GetTask godoc
//
//	@Summary		Get task
//	@Description	Get a task with assignee, reporter, comments and attachments.
//	@Tags			task
//	@Produce		json
//	@Param			task_id	path	string	true	"Task ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Task}
//	@Router			/tasks/{task_id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	task, err := h.svc.Get(c.Request.Context(), actor, taskID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.OK(task))
}

type UpdateTaskReq struct {
	Title          *string  `form:"title" json:"title"`
	Description    *string  `form:"description" json:"description"`
	Status         *string  `form:"status" json:"status" binding:"omitempty,oneof=TODO IN_PROGRESS IN_REVIEW DONE ARCHIVED" enums:"TODO,IN_PROGRESS,IN_REVIEW,DONE,ARCHIVED"`
	Priority       *string  `form:"priority" json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT" enums:"LOW,MEDIUM,HIGH,URGENT"`
	AssigneeID     *string  `form:"assignee_id" json:"assignee_id"`
	DueDate        *string  `form:"due_date" json:"due_date"`
	EstimatedHours *float64 `form:"estimated_hours" json:"estimated_hours"`
	ActualHours    *float64 `form:"actual_hours" json:"actual_hours"`
	Tags           []string `form:"tags" json:"tags"`
}

// UpdateTask godoc
//
//	@Summary		Update task
//	@Description	Partial update by the reporter or a project MANAGER+. Empty string for assignee_id or due_date clears the field. Moving to DONE stamps completed_at; leaving DONE clears it. The reporter never changes.
//	@Tags			task
//	@Accept			json
//	@Produce		json
//	@Param			task_id	path	string				true	"Task ID"	format(uuid)
//	@Param			payload	body	handler.UpdateTaskReq	true	"UpdateTask payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Task}
//	@Router			/tasks/{task_id} [put]
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	raw := map[string]interface{}{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	in, err := updateTaskInput(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr(err.Error(), nil))
		return
	}

	task, err := h.svc.Update(c.Request.Context(), actor, taskID, in)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.OK(task))
}

// updateTaskInput converts the raw JSON body into a partial-update input.
// Binding to a struct cannot tell an absent field from an explicit clear,
// so the body is walked as a map: null or "" on assignee_id / due_date
// clears the field.
func updateTaskInput(raw map[string]interface{}) (service.UpdateTaskInput, error) {
	in := service.UpdateTaskInput{}

	str := func(key string) (*string, bool, error) {
		v, present := raw[key]
		if !present {
			return nil, false, nil
		}
		if v == nil {
			return nil, true, nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, false, fmt.Errorf("%s must be a string", key)
		}
		return &s, true, nil
	}
	num := func(key string) (*float64, error) {
		v, present := raw[key]
		if !present || v == nil {
			return nil, nil
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%s must be a number", key)
		}
		return &f, nil
	}

	var err error
	if in.Title, _, err = str("title"); err != nil {
		return in, err
	}
	if in.Description, _, err = str("description"); err != nil {
		return in, err
	}

	if s, _, err := str("status"); err != nil {
		return in, err
	} else if s != nil {
		status := model.TaskStatus(*s)
		in.Status = &status
	}
	if s, _, err := str("priority"); err != nil {
		return in, err
	} else if s != nil {
		priority := model.TaskPriority(*s)
		in.Priority = &priority
	}

	if s, present, err := str("assignee_id"); err != nil {
		return in, err
	} else if present {
		if s == nil || *s == "" {
			in.ClearAssignee = true
		} else {
			id, err := uuid.Parse(*s)
			if err != nil {
				return in, fmt.Errorf("invalid assignee_id")
			}
			in.AssigneeID = &id
		}
	}
	if s, present, err := str("due_date"); err != nil {
		return in, err
	} else if present {
		if s == nil || *s == "" {
			in.ClearDueDate = true
		} else {
			due, err := time.Parse(time.RFC3339, *s)
			if err != nil {
				return in, fmt.Errorf("invalid due_date")
			}
			in.DueDate = &due
		}
	}

	if in.EstimatedHours, err = num("estimated_hours"); err != nil {
		return in, err
	}
	if in.ActualHours, err = num("actual_hours"); err != nil {
		return in, err
	}

	if v, present := raw["tags"]; present {
		in.TagsSet = true
		items, ok := v.([]interface{})
		if v != nil && !ok {
			return in, fmt.Errorf("tags must be an array of strings")
		}
		tags := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return in, fmt.Errorf("tags must be an array of strings")
			}
			tags = append(tags, s)
		}
		in.Tags = tags
	}

	return in, nil
}

// DeleteTask godoc
//
//	@Summary		Delete task
//	@Description	Delete a task with its comments and attachments. Reporter or project MANAGER+.
//	@Tags			task
//	@Produce		json
//	@Param			task_id	path	string	true	"Task ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{}
//	@Router			/tasks/{task_id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actor, taskID); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Msg("task deleted"))
}

type ReorderTaskReq struct {
	Status   string `form:"status" json:"status" binding:"required,oneof=TODO IN_PROGRESS IN_REVIEW DONE ARCHIVED" enums:"TODO,IN_PROGRESS,IN_REVIEW,DONE,ARCHIVED"`
	Position int    `form:"position" json:"position" binding:"min=0" example:"2"`
}

// ReorderTask godoc
//
//	@Summary		Move task on the board
//	@Description	Move a task to a status column and position. Out-of-range positions clamp; siblings renumber without gaps.
//	@Tags			task
//	@Accept			json
//	@Produce		json
//	@Param			task_id	path	string					true	"Task ID"	format(uuid)
//	@Param			payload	body	handler.ReorderTaskReq	true	"ReorderTask payload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Task}
//	@Router			/tasks/{task_id}/position [put]
func (h *TaskHandler) ReorderTask(c *gin.Context) {
	req := ReorderTaskReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	task, err := h.svc.Reorder(c.Request.Context(), actor, taskID, service.ReorderTaskInput{
		Status:   model.TaskStatus(req.Status),
		Position: req.Position,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.OK(task))
}

type AddCommentReq struct {
	Content  string `form:"content" json:"content" binding:"required"`
	ParentID string `form:"parent_id" json:"parent_id" binding:"omitempty,uuid" format:"uuid"`
}

// AddComment godoc
//
//	@Summary		Comment on task
//	@Description	Add a comment, optionally replying to another comment on the same task.
//	@Tags			task
//	@Accept			json
//	@Produce		json
//	@Param			task_id	path	string				true	"Task ID"	format(uuid)
//	@Param			payload	body	handler.AddCommentReq	true	"AddComment payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=model.Comment}
//	@Router			/tasks/{task_id}/comments [post]
func (h *TaskHandler) AddComment(c *gin.Context) {
	req := AddCommentReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	in := service.AddCommentInput{Content: req.Content}
	if req.ParentID != "" {
		parentID, err := uuid.Parse(req.ParentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ValidationErr("invalid parent_id", err))
			return
		}
		in.ParentID = &parentID
	}

	comment, err := h.svc.AddComment(c.Request.Context(), actor, taskID, in)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.OK(comment))
}

type AddAttachmentReq struct {
	FileName string `form:"file_name" json:"file_name" binding:"required" example:"design.pdf"`
	MimeType string `form:"mime_type" json:"mime_type" binding:"required" example:"application/pdf"`
	FileSize int64  `form:"file_size" json:"file_size" binding:"required,min=1" example:"102400"`
}

// AddAttachment godoc
//
//	@Summary		Attach file to task
//	@Description	Register attachment metadata and get a presigned upload URL. The client PUTs the bytes to the URL directly.
//	@Tags			task
//	@Accept			json
//	@Produce		json
//	@Param			task_id	path	string					true	"Task ID"	format(uuid)
//	@Param			payload	body	handler.AddAttachmentReq	true	"AddAttachment payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=service.AttachmentOutput}
//	@Router			/tasks/{task_id}/attachments [post]
func (h *TaskHandler) AddAttachment(c *gin.Context) {
	req := AddAttachmentReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ValidationErr("", err))
		return
	}

	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	out, err := h.svc.AddAttachment(c.Request.Context(), actor, taskID, service.AddAttachmentInput{
		FileName: req.FileName,
		MimeType: req.MimeType,
		FileSize: req.FileSize,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.OK(out))
}

// GetAttachment godoc
//
//	@Summary		Get task attachment
//	@Description	Get attachment metadata with a presigned download URL.
//	@Tags			task
//	@Produce		json
//	@Param			task_id			path	string	true	"Task ID"		format(uuid)
//	@Param			attachment_id	path	string	true	"Attachment ID"	format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.AttachmentOutput}
//	@Router			/tasks/{task_id}/attachments/{attachment_id} [get]
func (h *TaskHandler) GetAttachment(c *gin.Context) {
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}
	attachmentID, ok := uuidParam(c, "attachment_id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	out, err := h.svc.GetAttachment(c.Request.Context(), actor, taskID, attachmentID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.OK(out))
}
