package telemetry

import (
	"context"
	"log"
	"time"

	"portal-service/internal/observability"
	"portal-service/internal/rabbitmq"
)

const (
	EventVersion = "v1"

	ConnectionRequestSentKey = "connection.request.sent"
	ConnectionAcceptedKey    = "connection.request.accepted"
	ConnectionDeclinedKey    = "connection.request.declined"
	ConnectionRemovedKey     = "connection.removed"
	ApplicationStatusKey     = "application.status.updated"
)

type Config struct {
	Environment string
	ServiceName string
}

type Envelope struct {
	EventType   string `json:"event_type"`
	Version     string `json:"version"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
	Service     string `json:"service"`
	RequestID   string `json:"request_id"`
	UserID      string `json:"user_id"`
	Payload     any    `json:"payload"`
}

func NewEnvelope(cfg Config, eventType, requestID, userID string, payload any) Envelope {
	return Envelope{
		EventType:   eventType,
		Version:     EventVersion,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Environment: cfg.Environment,
		Service:     cfg.ServiceName,
		RequestID:   requestID,
		UserID:      userID,
		Payload:     payload,
	}
}

type ConnectionPayload struct {
	Action       string `json:"action"`
	TargetUserID string `json:"target_user_id,omitempty"`
	RequestID    string `json:"connection_request_id,omitempty"`
	ConnectionID string `json:"connection_id,omitempty"`
	Result       string `json:"result"`
	Error        string `json:"error,omitempty"`
}

type ApplicationStatusPayload struct {
	ApplicationID string `json:"application_id"`
	JobID         string `json:"job_id,omitempty"`
	Status        string `json:"status"`
	Result        string `json:"result"`
	Error         string `json:"error,omitempty"`
}

// EventEmitter publishes domain events for actions taken through the portal.
type EventEmitter struct {
	publisher rabbitmq.Publisher
	cfg       Config
}

func NewEventEmitter(publisher rabbitmq.Publisher, cfg Config) *EventEmitter {
	return &EventEmitter{publisher: publisher, cfg: cfg}
}

func (e *EventEmitter) Emit(ctx context.Context, routingKey, requestID, userID string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}
	publish(ctx, e.publisher, routingKey, NewEnvelope(e.cfg, routingKey, requestID, userID, payload))
}

// publish reports whether the message reached the broker.
func publish(ctx context.Context, publisher rabbitmq.Publisher, routingKey string, message any) bool {
	if err := publisher.Publish(ctx, routingKey, message); err != nil {
		observability.IncAMQPPublishError()
		log.Printf("warning: failed to publish %s: %v", routingKey, err)
		return false
	}
	return true
}
