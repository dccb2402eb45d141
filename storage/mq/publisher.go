package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"Investa/config"
	"Investa/pkg/logger"
	mqotel "Investa/pkg/mq"
)

// 发布用的 channel 只有一个，关闭后在下一次发布时重建
var (
	publisherCh *amqp.Channel
	publisher   *mqotel.InstrumentedChannel
	pubMutex    sync.Mutex
)

func getPublisher() (*mqotel.InstrumentedChannel, error) {
	pubMutex.Lock()
	defer pubMutex.Unlock()

	if publisherCh != nil && !publisherCh.IsClosed() {
		return publisher, nil
	}

	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("rabbitmq connection is not available")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	publisherCh = ch
	publisher = mqotel.NewInstrumentedChannel(ch, config.Cfg.ServiceName)

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if amqpErr, ok := <-closed; ok {
			logger.Logger.Warn("Publisher channel closed, will recreate on next publish",
				zap.String("component", "rabbitmq"),
				zap.String("reason", amqpErr.Reason),
			)
		}
	}()

	logger.Logger.Info("Publisher channel created", zap.String("component", "rabbitmq"))
	return publisher, nil
}

// PublishMessage 以 JSON 发送持久化消息
func PublishMessage(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error {
	pub, err := getPublisher()
	if err != nil {
		return err
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = pub.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    messageID,
		Body:         bodyBytes,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}
