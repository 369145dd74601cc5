package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/taskboard-dev/taskboard/internal/infra/blob"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/repo"
	"github.com/taskboard-dev/taskboard/internal/pkg/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testBlob builds an S3Deps whose presigner signs locally; no network
// calls are made for presign operations.
func testBlob() *blob.S3Deps {
	client := s3.NewFromConfig(aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("test", "test", ""),
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("http://localhost:9000")
		o.UsePathStyle = true
	})
	return &blob.S3Deps{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    "test-bucket",
	}
}

func newTestTaskService(tasks *MockTaskRepo, projects *MockProjectRepo, users *MockUserRepo, authz Authorizer) TaskService {
	return NewTaskService(tasks, projects, users, authz, testBlob(), 15*time.Minute, nil, "activity_events", zap.NewNop())
}

func TestTaskService_Create(t *testing.T) {
	actor := Actor{ID: uuid.New(), Role: model.RoleMember}
	project := &model.Project{ID: uuid.New(), OwnerID: uuid.New()}

	t.Run("caller becomes reporter with default status and priority", func(t *testing.T) {
		tasks := &MockTaskRepo{}
		tasks.On("Create", mock.Anything,
			mock.MatchedBy(func(task *model.Task) bool {
				return task.ReporterID == actor.ID &&
					task.Status == model.TaskTodo &&
					task.Priority == model.PriorityMedium &&
					task.CompletedAt == nil
			}),
			mock.MatchedBy(func(act *model.ActivityLog) bool {
				return act.Action == model.ActionTaskCreated
			}),
		).Return(nil)
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		task, err := svc.Create(context.Background(), actor, CreateTaskInput{ProjectID: project.ID, Title: "Implement login"})
		assert.NoError(t, err)
		assert.Equal(t, "Implement login", task.Title)
		tasks.AssertExpectations(t)
	})

	t.Run("title too short", func(t *testing.T) {
		svc := newTestTaskService(&MockTaskRepo{}, &MockProjectRepo{}, &MockUserRepo{}, allowAll())
		_, err := svc.Create(context.Background(), actor, CreateTaskInput{ProjectID: project.ID, Title: "ab"})
		assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	})

	t.Run("assignee must be a project member", func(t *testing.T) {
		assigneeID := uuid.New()
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		projects.On("GetMember", mock.Anything, project.ID, assigneeID).Return(nil, gorm.ErrRecordNotFound)
		users := &MockUserRepo{}
		users.On("GetByID", mock.Anything, assigneeID).Return(&model.User{ID: assigneeID}, nil)

		svc := newTestTaskService(&MockTaskRepo{}, projects, users, allowAll())
		_, err := svc.Create(context.Background(), actor, CreateTaskInput{
			ProjectID:  project.ID,
			Title:      "Implement login",
			AssigneeID: &assigneeID,
		})
		assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	})

	t.Run("creating directly in DONE stamps completed_at", func(t *testing.T) {
		done := model.TaskDone
		tasks := &MockTaskRepo{}
		tasks.On("Create", mock.Anything,
			mock.MatchedBy(func(task *model.Task) bool {
				return task.Status == model.TaskDone && task.CompletedAt != nil
			}),
			mock.Anything,
		).Return(nil)
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		_, err := svc.Create(context.Background(), actor, CreateTaskInput{ProjectID: project.ID, Title: "Implement login", Status: &done})
		assert.NoError(t, err)
	})

	t.Run("non-member denied", func(t *testing.T) {
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

		svc := newTestTaskService(&MockTaskRepo{}, projects, &MockUserRepo{}, denyAll())
		_, err := svc.Create(context.Background(), actor, CreateTaskInput{ProjectID: project.ID, Title: "Implement login"})
		assert.True(t, apperr.HasCode(err, apperr.CodeAuthorization))
	})
}

func TestTaskService_Update(t *testing.T) {
	actor := Actor{ID: uuid.New(), Role: model.RoleMember}
	project := &model.Project{ID: uuid.New(), OwnerID: uuid.New()}
	task := &model.Task{
		ID:         uuid.New(),
		ProjectID:  project.ID,
		Title:      "Implement login",
		Status:     model.TaskInProgress,
		Priority:   model.PriorityMedium,
		ReporterID: actor.ID,
	}

	setup := func(tasks *MockTaskRepo, projects *MockProjectRepo) {
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	}

	t.Run("moving to DONE stamps completed_at", func(t *testing.T) {
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		setup(tasks, projects)
		tasks.On("UpdateFields", mock.Anything, task.ID,
			mock.MatchedBy(func(fields map[string]interface{}) bool {
				_, hasCompleted := fields["completed_at"]
				return fields["status"] == model.TaskDone && hasCompleted && fields["completed_at"] != nil
			}),
			mock.Anything,
		).Return(nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		done := model.TaskDone
		_, err := svc.Update(context.Background(), actor, task.ID, UpdateTaskInput{Status: &done})
		assert.NoError(t, err)
		tasks.AssertExpectations(t)
	})

	t.Run("leaving DONE clears completed_at", func(t *testing.T) {
		now := time.Now()
		doneTask := *task
		doneTask.Status = model.TaskDone
		doneTask.CompletedAt = &now

		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		tasks.On("GetByID", mock.Anything, task.ID).Return(&doneTask, nil)
		tasks.On("UpdateFields", mock.Anything, task.ID,
			mock.MatchedBy(func(fields map[string]interface{}) bool {
				v, has := fields["completed_at"]
				return fields["status"] == model.TaskTodo && has && v == nil
			}),
			mock.Anything,
		).Return(nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		todo := model.TaskTodo
		_, err := svc.Update(context.Background(), actor, task.ID, UpdateTaskInput{Status: &todo})
		assert.NoError(t, err)
	})

	t.Run("fields never include reporter_id", func(t *testing.T) {
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		setup(tasks, projects)
		tasks.On("UpdateFields", mock.Anything, task.ID,
			mock.MatchedBy(func(fields map[string]interface{}) bool {
				_, hasReporter := fields["reporter_id"]
				return !hasReporter
			}),
			mock.Anything,
		).Return(nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		title := "Implement login v2"
		_, err := svc.Update(context.Background(), actor, task.ID, UpdateTaskInput{Title: &title})
		assert.NoError(t, err)
	})

	t.Run("clear assignee and due date", func(t *testing.T) {
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		setup(tasks, projects)
		tasks.On("UpdateFields", mock.Anything, task.ID,
			mock.MatchedBy(func(fields map[string]interface{}) bool {
				a, hasA := fields["assignee_id"]
				d, hasD := fields["due_date"]
				return hasA && a == nil && hasD && d == nil
			}),
			mock.Anything,
		).Return(nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		_, err := svc.Update(context.Background(), actor, task.ID, UpdateTaskInput{ClearAssignee: true, ClearDueDate: true})
		assert.NoError(t, err)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		setup(tasks, projects)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		got, err := svc.Update(context.Background(), actor, task.ID, UpdateTaskInput{})
		assert.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
		tasks.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTaskService_List(t *testing.T) {
	project := &model.Project{ID: uuid.New(), OwnerID: uuid.New()}

	t.Run("without project member sees only member projects", func(t *testing.T) {
		actor := Actor{ID: uuid.New(), Role: model.RoleMember}
		memberProjects := []uuid.UUID{uuid.New(), uuid.New()}

		projects := &MockProjectRepo{}
		projects.On("MemberProjectIDs", mock.Anything, actor.ID).Return(memberProjects, nil)
		tasks := &MockTaskRepo{}
		tasks.On("List", mock.Anything, mock.MatchedBy(func(f repo.TaskFilter) bool {
			return f.ProjectID == nil && len(f.ProjectIDs) == 2
		})).Return([]model.Task{}, int64(0), nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		_, err := svc.List(context.Background(), actor, ListTasksInput{Page: 1, PerPage: 20})
		assert.NoError(t, err)
		tasks.AssertExpectations(t)
	})

	t.Run("member of nothing gets an empty page", func(t *testing.T) {
		actor := Actor{ID: uuid.New(), Role: model.RoleMember}
		projects := &MockProjectRepo{}
		projects.On("MemberProjectIDs", mock.Anything, actor.ID).Return([]uuid.UUID{}, nil)
		tasks := &MockTaskRepo{}

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		out, err := svc.List(context.Background(), actor, ListTasksInput{Page: 1, PerPage: 20})
		assert.NoError(t, err)
		assert.Empty(t, out.Items)
		tasks.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})

	t.Run("admin without project sees everything", func(t *testing.T) {
		admin := Actor{ID: uuid.New(), Role: model.RoleAdmin}
		projects := &MockProjectRepo{}
		tasks := &MockTaskRepo{}
		tasks.On("List", mock.Anything, mock.MatchedBy(func(f repo.TaskFilter) bool {
			return f.ProjectID == nil && f.ProjectIDs == nil
		})).Return([]model.Task{}, int64(0), nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		_, err := svc.List(context.Background(), admin, ListTasksInput{Page: 1, PerPage: 20})
		assert.NoError(t, err)
		projects.AssertNotCalled(t, "MemberProjectIDs", mock.Anything, mock.Anything)
	})

	t.Run("scoped to one project checks access", func(t *testing.T) {
		actor := Actor{ID: uuid.New(), Role: model.RoleMember}
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)

		svc := newTestTaskService(&MockTaskRepo{}, projects, &MockUserRepo{}, denyAll())
		_, err := svc.List(context.Background(), actor, ListTasksInput{ProjectID: &project.ID, Page: 1, PerPage: 20})
		assert.True(t, apperr.HasCode(err, apperr.CodeAuthorization))
	})
}

func TestTaskService_Delete(t *testing.T) {
	actor := Actor{ID: uuid.New(), Role: model.RoleMember}
	project := &model.Project{ID: uuid.New(), OwnerID: uuid.New()}
	task := &model.Task{ID: uuid.New(), ProjectID: project.ID, Title: "Implement login", ReporterID: actor.ID}

	newSvc := func(tasks *MockTaskRepo, projects *MockProjectRepo, store *MockBlobStore) TaskService {
		return NewTaskService(tasks, projects, &MockUserRepo{}, allowAll(), store, 15*time.Minute, nil, "activity_events", zap.NewNop())
	}

	t.Run("removes attachment objects with the task", func(t *testing.T) {
		attachments := []model.Attachment{
			{ID: uuid.New(), TaskID: task.ID, S3Key: "attachments/" + task.ID.String() + "/a_one.pdf"},
			{ID: uuid.New(), TaskID: task.ID, S3Key: "attachments/" + task.ID.String() + "/b_two.png"},
		}
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		tasks.On("Attachments", mock.Anything, task.ID).Return(attachments, nil)
		tasks.On("Delete", mock.Anything, task,
			mock.MatchedBy(func(act *model.ActivityLog) bool {
				return act.Action == model.ActionTaskDeleted
			}),
		).Return(nil)
		store := &MockBlobStore{}
		store.On("DeleteObject", mock.Anything, attachments[0].S3Key).Return(nil)
		store.On("DeleteObject", mock.Anything, attachments[1].S3Key).Return(nil)

		assert.NoError(t, newSvc(tasks, projects, store).Delete(context.Background(), actor, task.ID))
		store.AssertExpectations(t)
		tasks.AssertExpectations(t)
	})

	t.Run("stranded object does not fail the delete", func(t *testing.T) {
		attachments := []model.Attachment{
			{ID: uuid.New(), TaskID: task.ID, S3Key: "attachments/" + task.ID.String() + "/c_three.pdf"},
		}
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		tasks.On("Attachments", mock.Anything, task.ID).Return(attachments, nil)
		tasks.On("Delete", mock.Anything, task, mock.Anything).Return(nil)
		store := &MockBlobStore{}
		store.On("DeleteObject", mock.Anything, attachments[0].S3Key).Return(errors.New("connection refused"))

		assert.NoError(t, newSvc(tasks, projects, store).Delete(context.Background(), actor, task.ID))
	})

	t.Run("denied before anything is touched", func(t *testing.T) {
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		store := &MockBlobStore{}

		svc := NewTaskService(tasks, projects, &MockUserRepo{}, denyAll(), store, 15*time.Minute, nil, "activity_events", zap.NewNop())
		err := svc.Delete(context.Background(), actor, task.ID)
		assert.True(t, apperr.HasCode(err, apperr.CodeAuthorization))
		tasks.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "DeleteObject", mock.Anything, mock.Anything)
	})
}

func TestTaskService_Reorder(t *testing.T) {
	actor := Actor{ID: uuid.New(), Role: model.RoleMember}
	project := &model.Project{ID: uuid.New(), OwnerID: uuid.New()}
	task := &model.Task{ID: uuid.New(), ProjectID: project.ID, Status: model.TaskTodo, ReporterID: actor.ID}

	t.Run("moves task", func(t *testing.T) {
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		tasks.On("Reorder", mock.Anything, task, model.TaskInProgress, 2,
			mock.MatchedBy(func(act *model.ActivityLog) bool {
				return act.Action == model.ActionTaskReordered
			}),
		).Return(nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		_, err := svc.Reorder(context.Background(), actor, task.ID, ReorderTaskInput{Status: model.TaskInProgress, Position: 2})
		assert.NoError(t, err)
		tasks.AssertExpectations(t)
	})

	t.Run("invalid status", func(t *testing.T) {
		svc := newTestTaskService(&MockTaskRepo{}, &MockProjectRepo{}, &MockUserRepo{}, allowAll())
		_, err := svc.Reorder(context.Background(), actor, task.ID, ReorderTaskInput{Status: model.TaskStatus("SHIPPED"), Position: 0})
		assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	})
}

func TestTaskService_AddComment(t *testing.T) {
	actor := Actor{ID: uuid.New(), Role: model.RoleMember}
	project := &model.Project{ID: uuid.New(), OwnerID: uuid.New()}
	task := &model.Task{ID: uuid.New(), ProjectID: project.ID, ReporterID: actor.ID}

	setup := func(tasks *MockTaskRepo, projects *MockProjectRepo) {
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil)
	}

	t.Run("adds top-level comment", func(t *testing.T) {
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		setup(tasks, projects)
		tasks.On("CreateComment", mock.Anything, mock.MatchedBy(func(c *model.Comment) bool {
			return c.TaskID == task.ID && c.UserID == actor.ID && c.ParentID == nil
		})).Return(nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		c, err := svc.AddComment(context.Background(), actor, task.ID, AddCommentInput{Content: "Looks good"})
		assert.NoError(t, err)
		assert.Equal(t, "Looks good", c.Content)
	})

	t.Run("reply parent must be on the same task", func(t *testing.T) {
		parentID := uuid.New()
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		setup(tasks, projects)
		tasks.On("GetComment", mock.Anything, parentID).
			Return(&model.Comment{ID: parentID, TaskID: uuid.New()}, nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		_, err := svc.AddComment(context.Background(), actor, task.ID, AddCommentInput{Content: "Reply", ParentID: &parentID})
		assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
		tasks.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything)
	})

	t.Run("blank content rejected", func(t *testing.T) {
		svc := newTestTaskService(&MockTaskRepo{}, &MockProjectRepo{}, &MockUserRepo{}, allowAll())
		_, err := svc.AddComment(context.Background(), actor, task.ID, AddCommentInput{Content: "   "})
		assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	})
}

func TestTaskService_Attachments(t *testing.T) {
	actor := Actor{ID: uuid.New(), Role: model.RoleMember}
	project := &model.Project{ID: uuid.New(), OwnerID: uuid.New()}
	task := &model.Task{ID: uuid.New(), ProjectID: project.ID, ReporterID: actor.ID}

	t.Run("add attachment returns presigned upload URL", func(t *testing.T) {
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		tasks.On("CreateAttachment", mock.Anything, mock.MatchedBy(func(a *model.Attachment) bool {
			return a.TaskID == task.ID && a.UploadedBy == actor.ID &&
				strings.HasPrefix(a.S3Key, "attachments/"+task.ID.String()+"/") &&
				strings.HasSuffix(a.S3Key, "_design.pdf")
		})).Return(nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		out, err := svc.AddAttachment(context.Background(), actor, task.ID, AddAttachmentInput{
			FileName: "design.pdf",
			MimeType: "application/pdf",
			FileSize: 102400,
		})
		assert.NoError(t, err)
		assert.NotEmpty(t, out.UploadURL)
		assert.Contains(t, out.UploadURL, "X-Amz-Signature")
	})

	t.Run("get attachment returns presigned download URL", func(t *testing.T) {
		attachment := &model.Attachment{
			ID:     uuid.New(),
			TaskID: task.ID,
			S3Key:  "attachments/" + task.ID.String() + "/abc_design.pdf",
		}
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		tasks.On("GetAttachment", mock.Anything, task.ID, attachment.ID).Return(attachment, nil)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		out, err := svc.GetAttachment(context.Background(), actor, task.ID, attachment.ID)
		assert.NoError(t, err)
		assert.NotEmpty(t, out.DownloadURL)
	})

	t.Run("unknown attachment", func(t *testing.T) {
		tasks := &MockTaskRepo{}
		projects := &MockProjectRepo{}
		projects.On("GetByID", mock.Anything, project.ID).Return(project, nil)
		tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		tasks.On("GetAttachment", mock.Anything, task.ID, mock.Anything).Return(nil, gorm.ErrRecordNotFound)

		svc := newTestTaskService(tasks, projects, &MockUserRepo{}, allowAll())
		_, err := svc.GetAttachment(context.Background(), actor, task.ID, uuid.New())
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
	})

	t.Run("zero size rejected", func(t *testing.T) {
		svc := newTestTaskService(&MockTaskRepo{}, &MockProjectRepo{}, &MockUserRepo{}, allowAll())
		_, err := svc.AddAttachment(context.Background(), actor, task.ID, AddAttachmentInput{FileName: "a.txt", MimeType: "text/plain"})
		assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	})
}
