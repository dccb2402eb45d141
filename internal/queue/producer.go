package queue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"Investa/internal/model"
	"Investa/pkg/logger"
	"Investa/pkg/snowflake"
	"Investa/storage/mq"
)

const routingKeyPrefix = "onboarding."

// PublishFunc 发送一条 JSON 消息
type PublishFunc func(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error

// EventProducer 把引导流程的状态迁移发布到 RabbitMQ
type EventProducer struct {
	exchange string
	publish  PublishFunc
	nextID   func() (int64, error)
	log      *zap.Logger
}

// NewEventProducer 使用 storage/mq 的连接与 snowflake 消息 ID
func NewEventProducer(exchange string) *EventProducer {
	return newEventProducer(exchange, mq.PublishMessage, snowflake.NextID)
}

func newEventProducer(exchange string, publish PublishFunc, nextID func() (int64, error)) *EventProducer {
	return &EventProducer{
		exchange: exchange,
		publish:  publish,
		nextID:   nextID,
		log:      logger.Named("queue"),
	}
}

// RoutingKey 例如 onboarding.trial_active
func RoutingKey(step model.OnboardingStep) string {
	return routingKeyPrefix + strings.ToLower(string(step))
}

// PublishOnboardingEvent 实现 service.EventSink
func (p *EventProducer) PublishOnboardingEvent(ctx context.Context, ev model.OnboardingEvent) error {
	if ev.MessageID == "" {
		id, err := p.nextID()
		if err != nil {
			p.log.Error("Failed to generate message ID", zap.String("trigger", ev.Trigger), zap.Error(err))
			return fmt.Errorf("failed to generate message ID: %w", err)
		}
		ev.MessageID = fmt.Sprintf("onboarding_%d", id)
	}

	routingKey := RoutingKey(ev.To)
	if err := p.publish(ctx, p.exchange, routingKey, ev.MessageID, ev); err != nil {
		p.log.Error("Failed to publish onboarding event",
			zap.String("message_id", ev.MessageID),
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
		return err
	}

	p.log.Debug("Published onboarding event",
		zap.String("message_id", ev.MessageID),
		zap.String("routing_key", routingKey),
		zap.String("user_id", ev.UserID),
	)
	return nil
}
