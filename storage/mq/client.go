package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"Investa/config"
	"Investa/pkg/logger"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

// Init 建立连接并声明事件 exchange
func Init() error {
	connOnce.Do(func() {
		c, err := amqp.Dial(config.Cfg.GetRabbitMQURL())
		if err != nil {
			connErr = fmt.Errorf("failed to dial rabbitmq: %w", err)
			return
		}

		ch, err := c.Channel()
		if err != nil {
			_ = c.Close()
			connErr = fmt.Errorf("failed to open rabbitmq channel: %w", err)
			return
		}
		defer ch.Close()

		// topic exchange，routing key 为 onboarding.<step>
		if err := ch.ExchangeDeclare(config.Cfg.EventsExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = c.Close()
			connErr = fmt.Errorf("failed to declare exchange %s: %w", config.Cfg.EventsExchange, err)
			return
		}

		conn = c
		logger.Logger.Info("RabbitMQ connected",
			zap.String("component", "rabbitmq"),
			zap.String("exchange", config.Cfg.EventsExchange),
		)
	})

	return connErr
}

// Connection 未初始化时返回 nil
func Connection() *amqp.Connection {
	return conn
}

func Close(ctx context.Context) error {
	if conn == nil || conn.IsClosed() {
		return nil
	}

	pubMutex.Lock()
	if publisherCh != nil && !publisherCh.IsClosed() {
		_ = publisherCh.Close()
	}
	publisherCh = nil
	pubMutex.Unlock()

	return conn.Close()
}
