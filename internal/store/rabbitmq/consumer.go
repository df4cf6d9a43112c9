package rabbitmq

import (
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewConsumer connects and limits unacked deliveries to prefetch.
func NewConsumer(url, queue string, prefetch int) (*Consumer, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, queue: queue}, nil
}

// Deliveries starts consuming with manual acks.
func (c *Consumer) Deliveries(tag string) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(c.queue, tag, false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

var ErrEmptyJobID = errors.New("rabbitmq: message without job_id")

// DecodeJob parses a delivery body.
func DecodeJob(body []byte) (JobMessage, error) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return JobMessage{}, err
	}
	if m.JobID == "" {
		return JobMessage{}, ErrEmptyJobID
	}
	return m, nil
}
