// infrastructure/rabbitmq_notifier.go
package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

// JobStatusMessage is the body published for every lifecycle change of a job.
type JobStatusMessage struct {
	JobID          string           `json:"job_id"`
	VideoID        string           `json:"video_id"`
	Status         domain.JobStatus `json:"status"`
	Progress       int              `json:"progress"`
	CurrentTask    string           `json:"current_task"`
	FinishedVideos []string         `json:"finished_videos"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

func newJobStatusMessage(job domain.Job) JobStatusMessage {
	return JobStatusMessage{
		JobID:          job.ID,
		VideoID:        job.VideoID,
		Status:         job.Status,
		Progress:       job.Progress,
		CurrentTask:    job.CurrentTask,
		FinishedVideos: job.FinishedOutputs,
		ErrorMessage:   job.ErrorMessage,
		OccurredAt:     job.UpdatedAt,
	}
}

// RabbitMQNotifier publishes job status messages to a durable queue.
type RabbitMQNotifier struct {
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialRabbitMQNotifier connects with retries and declares the queue.
func DialRabbitMQNotifier(ctx context.Context, url, queue string) (*RabbitMQNotifier, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Printf("WARNING: RabbitMQ not reachable, retrying in 2s... (%d/5)", i+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	n := &RabbitMQNotifier{queue: queue, conn: conn}
	if err := n.openChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	log.Printf("INFO: publishing job status events to RabbitMQ queue %s", queue)
	return n, nil
}

// openChannel must be called with mu held or before the notifier is shared.
func (n *RabbitMQNotifier) openChannel() error {
	ch, err := n.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		n.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to declare queue %s: %w", n.queue, err)
	}
	n.ch = ch
	return nil
}

func (n *RabbitMQNotifier) NotifyStatus(ctx context.Context, job domain.Job) error {
	body, err := json.Marshal(newJobStatusMessage(job))
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch == nil || n.ch.IsClosed() {
		if n.conn == nil || n.conn.IsClosed() {
			return errors.New("rabbitmq connection is closed")
		}
		if err := n.openChannel(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return n.ch.PublishWithContext(ctx,
		"",
		n.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    job.UpdatedAt,
			Type:         string(job.Status),
			Body:         body,
		})
}

// Ping reports whether the broker connection is still open.
func (n *RabbitMQNotifier) Ping(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil || n.conn.IsClosed() {
		return errors.New("disconnected")
	}
	return nil
}

func (n *RabbitMQNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// LogNotifier writes lifecycle events to the log when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyStatus(ctx context.Context, job domain.Job) error {
	msg := newJobStatusMessage(job)
	log.Printf("INFO: job %s is %s (%d%%): %s", msg.JobID, msg.Status, msg.Progress, msg.CurrentTask)
	return nil
}

var (
	_ domain.JobNotifier = (*RabbitMQNotifier)(nil)
	_ domain.JobNotifier = LogNotifier{}
)
