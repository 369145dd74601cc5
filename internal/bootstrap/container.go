package bootstrap

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/taskboard-dev/taskboard/internal/config"
	"github.com/taskboard-dev/taskboard/internal/infra/blob"
	"github.com/taskboard-dev/taskboard/internal/infra/cache"
	"github.com/taskboard-dev/taskboard/internal/infra/db"
	"github.com/taskboard-dev/taskboard/internal/infra/logger"
	"github.com/taskboard-dev/taskboard/internal/modules/handler"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"github.com/taskboard-dev/taskboard/internal/modules/repo"
	"github.com/taskboard-dev/taskboard/internal/modules/service"
	"github.com/taskboard-dev/taskboard/internal/pkg/tokens"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		// [optional] auto migrate
		if cfg.Database.AutoMigrate {
			_ = d.AutoMigrate(
				&model.User{},
				&model.Project{},
				&model.ProjectMember{},
				&model.Task{},
				&model.Comment{},
				&model.Attachment{},
				&model.ActivityLog{},
			)
		}
		return d, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		rdb := cache.New(cfg)
		return rdb, nil
	})
	do.Provide(inj, func(i *do.Injector) (*cache.RevocationStore, error) {
		return cache.NewRevocationStore(do.MustInvoke[*redis.Client](i)), nil
	})

	// RabbitMQ Connection. Optional: the activity feed degrades to
	// database-only when no broker is configured.
	do.Provide(inj, func(i *do.Injector) (*amqp.Connection, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.RabbitMQ.URL == "" {
			return nil, nil
		}
		return amqp.Dial(cfg.RabbitMQ.URL)
	})

	// S3
	do.Provide(inj, func(i *do.Injector) (*blob.S3Deps, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return blob.NewS3(context.Background(), cfg)
	})

	// JWT manager
	do.Provide(inj, func(i *do.Injector) (*tokens.Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return tokens.NewManager(
			cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.AccessExpireSec)*time.Second,
			time.Duration(cfg.Auth.RefreshExpireSec)*time.Second,
		), nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.UserRepo, error) {
		return repo.NewUserRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ProjectRepo, error) {
		return repo.NewProjectRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.TaskRepo, error) {
		return repo.NewTaskRepo(do.MustInvoke[*gorm.DB](i)), nil
	})

	// Authorizer
	do.Provide(inj, func(i *do.Injector) (service.Authorizer, error) {
		return service.NewAuthorizer(do.MustInvoke[repo.ProjectRepo](i)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.AuthService, error) {
		return service.NewAuthService(
			do.MustInvoke[repo.UserRepo](i),
			do.MustInvoke[*tokens.Manager](i),
			do.MustInvoke[*cache.RevocationStore](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.UserService, error) {
		return service.NewUserService(do.MustInvoke[repo.UserRepo](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ProjectService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewProjectService(
			do.MustInvoke[repo.ProjectRepo](i),
			do.MustInvoke[repo.UserRepo](i),
			do.MustInvoke[service.Authorizer](i),
			do.MustInvoke[*amqp.Connection](i),
			cfg.RabbitMQ.ActivityQueue,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.TaskService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		presignExpire := 15 * time.Minute
		if cfg.S3.PresignExpireSec > 0 {
			presignExpire = time.Duration(cfg.S3.PresignExpireSec) * time.Second
		}
		return service.NewTaskService(
			do.MustInvoke[repo.TaskRepo](i),
			do.MustInvoke[repo.ProjectRepo](i),
			do.MustInvoke[repo.UserRepo](i),
			do.MustInvoke[service.Authorizer](i),
			do.MustInvoke[*blob.S3Deps](i),
			presignExpire,
			do.MustInvoke[*amqp.Connection](i),
			cfg.RabbitMQ.ActivityQueue,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.AuthHandler, error) {
		return handler.NewAuthHandler(do.MustInvoke[service.AuthService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.UserHandler, error) {
		return handler.NewUserHandler(do.MustInvoke[service.UserService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.ProjectHandler, error) {
		return handler.NewProjectHandler(do.MustInvoke[service.ProjectService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.TaskHandler, error) {
		return handler.NewTaskHandler(do.MustInvoke[service.TaskService](i)), nil
	})

	return inj
}
