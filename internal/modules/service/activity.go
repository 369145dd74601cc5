package service

import (
	"context"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/taskboard-dev/taskboard/internal/infra/queue"
	"github.com/taskboard-dev/taskboard/internal/modules/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// newActivity builds the audit row for a mutation. changes holds the
// changed fields (before/after where meaningful).
func newActivity(actor Actor, projectID uuid.UUID, taskID *uuid.UUID, action string, changes map[string]interface{}) *model.ActivityLog {
	return &model.ActivityLog{
		ActorID:   actor.ID,
		ProjectID: projectID,
		TaskID:    taskID,
		Action:    action,
		Changes:   datatypes.JSONMap(changes),
	}
}

// activityNotifier fans activity events out to the message queue for
// external consumers. Publication is best effort: a lost event never fails
// the request that produced it.
type activityNotifier struct {
	mq    *amqp.Connection
	queue string
	log   *zap.Logger
}

func newActivityNotifier(mq *amqp.Connection, queueName string, log *zap.Logger) *activityNotifier {
	return &activityNotifier{mq: mq, queue: queueName, log: log}
}

func (n *activityNotifier) notify(ctx context.Context, act *model.ActivityLog) {
	if n == nil || n.mq == nil || act == nil {
		return
	}
	p, err := queue.NewPublisher(n.mq, n.queue, n.log)
	if err != nil {
		n.log.Sugar().Warnw("create activity publisher", "err", err)
		return
	}
	defer p.Close()
	if err := p.PublishJSON(ctx, act); err != nil {
		n.log.Sugar().Warnw("publish activity event", "action", act.Action, "err", err)
	}
}
