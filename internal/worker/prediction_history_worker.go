package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"mushroom-classifier/internal/model"
	"mushroom-classifier/internal/platform/rabbitmq"
)

// HistoryRecorder is the sink the worker feeds.
type HistoryRecorder interface {
	Record(ctx context.Context, p model.Prediction) error
}

// PredictionHistoryWorker drains the prediction queue into the recent
// history cache.
type PredictionHistoryWorker struct {
	conn      *amqp.Connection
	history   HistoryRecorder
	queueName string
	log       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPredictionHistoryWorker(conn *amqp.Connection, history HistoryRecorder, queueName string, log *zap.Logger) *PredictionHistoryWorker {
	return &PredictionHistoryWorker{
		conn:      conn,
		history:   history,
		queueName: queueName,
		log:       log.Named("prediction-history-worker"),
	}
}

func (w *PredictionHistoryWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *PredictionHistoryWorker) handle(ctx context.Context, d amqp.Delivery) {
	if err := Process(ctx, w.history, d.Body); err != nil {
		w.log.Warn("drop prediction event", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Process decodes one queue payload and records it.
func Process(ctx context.Context, history HistoryRecorder, body []byte) error {
	var p model.Prediction
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("decode prediction failed: %w", err)
	}
	if p.UserID == 0 {
		return fmt.Errorf("prediction event without user id")
	}
	return history.Record(ctx, p)
}

func (w *PredictionHistoryWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
