package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"mushroom-classifier/internal/model"
)

// PredictionPublisher sends every prediction to a durable queue. The
// history worker consumes it.
type PredictionPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewPredictionPublisher(conn *amqp.Connection, queueName string) *PredictionPublisher {
	return &PredictionPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *PredictionPublisher) Record(ctx context.Context, prediction model.Prediction) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("marshal prediction payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Timestamp:    prediction.CreatedAt,
		},
	); err != nil {
		return fmt.Errorf("publish prediction failed: %w", err)
	}
	return nil
}

// DeclareQueue declares the durable, non-exclusive queue shared by the
// publisher and the worker.
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue failed: %w", err)
	}
	return q, nil
}
