package services

import (
	"context"

	"petlink-go/internal/events"
	"petlink-go/internal/logging"
)

// publish 在状态变更提交后发送事件。发送失败只记录日志，不影响主流程。
func publish(ctx context.Context, publisher events.Publisher, t events.Type, actorID, recipientID, subjectID uint, payload interface{}) {
	if publisher == nil {
		return
	}
	logger := logging.FromContext(ctx)
	ev, err := events.New(t, actorID, recipientID, subjectID, payload)
	if err != nil {
		logger.Error("build event failed", "type", t, "error", err)
		return
	}
	if err := publisher.Publish(ctx, ev); err != nil {
		logger.Warn("publish event failed", "type", t, "event_id", ev.ID, "recipient_id", recipientID, "error", err)
	}
}
