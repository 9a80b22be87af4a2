package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Eursukkul/token-bidding/internal/service"
)

const (
	KeyGroupUpserted     = "group.upserted"
	KeyEnrollmentCreated = "enrollment.created"

	handleTimeout = 10 * time.Second
)

type GroupMessage struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type EnrollmentMessage struct {
	ParticipantID string `json:"participant_id"`
	GroupID       uint   `json:"group_id"`
}

// EnrollmentConsumer mirrors the enrollment directory into the local store.
type EnrollmentConsumer struct {
	directory service.DirectoryService
	logger    *slog.Logger
}

func NewEnrollmentConsumer(directory service.DirectoryService, logger *slog.Logger) *EnrollmentConsumer {
	return &EnrollmentConsumer{directory: directory, logger: logger.With("component", "enrollment-consumer")}
}

// Start handles deliveries until msgs is closed. The returned channel is
// closed once the loop has exited.
func (ec *EnrollmentConsumer) Start(msgs <-chan amqp.Delivery) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			ec.handleMessage(msg)
		}
		ec.logger.Info("channel closed, stopping consumer")
	}()
	return done
}

func (ec *EnrollmentConsumer) handleMessage(msg amqp.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	var err error
	switch msg.RoutingKey {
	case KeyGroupUpserted:
		var m GroupMessage
		if err := json.Unmarshal(msg.Body, &m); err != nil {
			ec.reject(msg, err)
			return
		}
		err = ec.directory.UpsertGroup(ctx, m.ID, m.Name)
		if err == nil {
			ec.logger.Info("synced group", "group_id", m.ID, "name", m.Name)
		}
	case KeyEnrollmentCreated:
		var m EnrollmentMessage
		if err := json.Unmarshal(msg.Body, &m); err != nil {
			ec.reject(msg, err)
			return
		}
		var created bool
		created, err = ec.directory.Enroll(ctx, m.ParticipantID, m.GroupID)
		if err == nil {
			ec.logger.Info("synced enrollment", "participant_id", m.ParticipantID, "group_id", m.GroupID, "created", created)
		}
	default:
		ec.logger.Warn("ignoring message", "routing_key", msg.RoutingKey)
		msg.Ack(false)
		return
	}

	if err != nil {
		// Store faults may clear up; anything else will fail the same way again.
		if service.KindOf(err) == service.KindStoreUnavailable {
			ec.logger.Error("store error, requeueing", "routing_key", msg.RoutingKey, "error", err)
			msg.Nack(false, true)
			return
		}
		ec.reject(msg, err)
		return
	}
	msg.Ack(false)
}

func (ec *EnrollmentConsumer) reject(msg amqp.Delivery, err error) {
	ec.logger.Warn("dropping message", "routing_key", msg.RoutingKey, "error", err)
	msg.Nack(false, false)
}
