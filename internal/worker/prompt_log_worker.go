package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"aidesk/internal/model"
	"aidesk/internal/repository"
)

// PromptLogWorker drains the prompt-transcript queue into the database.
// Transcript persistence is bookkeeping: a failed row is logged and dropped,
// it never affects the chat turn that produced it.
type PromptLogWorker struct {
	conn      *amqp.Connection
	repo      *repository.PromptLogRepository
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPromptLogWorker(conn *amqp.Connection, repo *repository.PromptLogRepository, queueName string) *PromptLogWorker {
	return &PromptLogWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
	}
}

func (w *PromptLogWorker) Start(ctx context.Context) error {
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

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
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

				var entry model.PromptLog
				if err := json.Unmarshal(d.Body, &entry); err != nil {
					log.Printf("worker decode prompt log failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.repo.Create(&entry); err != nil {
					log.Printf("worker persist prompt log failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *PromptLogWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
