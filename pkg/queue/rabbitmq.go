package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"petfeed/pkg/config"
	"petfeed/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	NotificationQueueName = "notification_queue"
	NotificationExchange  = "notifications"

	RoutingKeyLike        = "post_liked"
	RoutingKeyPostDeleted = "post_deleted"
)

// ErrUnprocessable marks a task that can never succeed. Handlers wrap it
// to have the task dropped instead of requeued.
var ErrUnprocessable = errors.New("unprocessable task")

type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logger.Logger
}

func NewRabbitMQClient(cfg *config.Config, log *logger.Logger) (*Client, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		cfg.RabbitMQUser,
		cfg.RabbitMQPassword,
		cfg.RabbitMQHost,
		cfg.RabbitMQPort,
	)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		NotificationExchange, // name
		"direct",             // type
		true,                 // durable
		false,                // auto-deleted
		false,                // internal
		false,                // no-wait
		nil,                  // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		NotificationQueueName, // name
		true,                  // durable
		false,                 // delete when unused
		false,                 // exclusive
		false,                 // no-wait
		amqp.Table{
			"x-max-priority": 10,
		},
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range []string{RoutingKeyLike, RoutingKeyPostDeleted} {
		err = channel.QueueBind(
			NotificationQueueName, // queue name
			key,                   // routing key
			NotificationExchange,  // exchange
			false,
			nil,
		)
		if err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}

	log.Info("Connected to RabbitMQ at %s:%s", cfg.RabbitMQHost, cfg.RabbitMQPort)

	return &Client{
		conn:    conn,
		channel: channel,
		logger:  log,
	}, nil
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// PublishNotificationTask publishes a persistent task under routingKey. The
// task's "priority" entry, when present, is clamped to the queue's 0-10 range.
func (c *Client) PublishNotificationTask(routingKey string, task map[string]interface{}) error {
	priority := taskPriority(task)

	taskJSON, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	err = c.channel.Publish(
		NotificationExchange, // exchange
		routingKey,           // routing key
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         taskJSON,
			Priority:     priority,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		c.logger.Error("[RABBITMQ] Failed to publish message to exchange=%s, routing_key=%s: %v", NotificationExchange, routingKey, err)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Info("[RABBITMQ] Published task to exchange=%s, routing_key=%s: %s", NotificationExchange, routingKey, string(taskJSON))
	return nil
}

func taskPriority(task map[string]interface{}) uint8 {
	p, ok := task["priority"].(int)
	if !ok {
		return 1
	}
	if p < 0 {
		return 0
	}
	if p > 10 {
		return 10
	}
	return uint8(p)
}

// ConsumeNotificationTasks delivers tasks to handler until ctx is cancelled
// or the channel closes. A failed task is requeued once; a second failure,
// a malformed body or an ErrUnprocessable error drops it.
func (c *Client) ConsumeNotificationTasks(ctx context.Context, handler func(task map[string]interface{}) error) error {
	msgs, err := c.channel.Consume(
		NotificationQueueName, // queue
		"",                    // consumer
		false,                 // auto-ack
		false,                 // exclusive
		false,                 // no-local
		false,                 // no-wait
		nil,                   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("[RABBITMQ] Started consuming from notification queue: %s", NotificationQueueName)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("[RABBITMQ] Delivery channel closed")
					return
				}
				c.deliver(msg, handler)
			}
		}
	}()

	return nil
}

func (c *Client) deliver(msg amqp.Delivery, handler func(task map[string]interface{}) error) {
	var task map[string]interface{}
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		c.logger.Error("[RABBITMQ] Failed to unmarshal notification task: %v, body=%s", err, string(msg.Body))
		msg.Nack(false, false)
		return
	}

	if err := handler(task); err != nil {
		requeue := shouldRequeue(msg.Redelivered, err)
		c.logger.Error("[RABBITMQ] Handler failed: %v (requeue=%t), task=%+v", err, requeue, task)
		msg.Nack(false, requeue)
		return
	}

	msg.Ack(false)
}

func shouldRequeue(redelivered bool, err error) bool {
	return !redelivered && !errors.Is(err, ErrUnprocessable)
}

// GetQueueLength returns the number of messages waiting in the queue.
func (c *Client) GetQueueLength() (int, error) {
	queue, err := c.channel.QueueInspect(NotificationQueueName)
	if err != nil {
		return 0, err
	}
	return queue.Messages, nil
}
