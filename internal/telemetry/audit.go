package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"portal-service/internal/observability"
	"portal-service/internal/rabbitmq"
)

// Level is the severity the log collector files an audit record under.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

const (
	AuditRoutingKey    = "portal-service.audit"
	auditEventType     = "audit_log"
	auditSchemaVersion = 1
	maxAuditText       = 1024
)

// AuditEnvelope matches the log-collector audit_log schema.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventID       string       `json:"event_id"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        string       `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// AuditEmitter records what viewers do through the portal on the logs exchange.
type AuditEmitter struct {
	publisher rabbitmq.Publisher
	cfg       Config
}

func NewAuditEmitter(publisher rabbitmq.Publisher, service, environment string) *AuditEmitter {
	return &AuditEmitter{publisher: publisher, cfg: Config{ServiceName: service, Environment: environment}}
}

func (e *AuditEmitter) envelope(level Level, text, requestID, userID string) AuditEnvelope {
	if len(text) > maxAuditText {
		text = text[:maxAuditText] + "..."
	}
	return AuditEnvelope{
		SchemaVersion: auditSchemaVersion,
		EventID:       uuid.NewString(),
		EventType:     auditEventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.cfg.ServiceName,
		Environment:   e.cfg.Environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload:       AuditPayload{Level: level, Text: text},
	}
}

// EmitAudit is safe on a nil emitter. Publish failures are logged and counted, never returned.
func (e *AuditEmitter) EmitAudit(ctx context.Context, level Level, text, requestID, userID string) {
	if e == nil || e.publisher == nil {
		return
	}
	if publish(ctx, e.publisher, AuditRoutingKey, e.envelope(level, text, requestID, userID)) {
		observability.IncAuditEventPublished(auditEventType)
	}
}

// Failure records a failed action at error level with the cause appended.
func (e *AuditEmitter) Failure(ctx context.Context, action string, err error, requestID, userID string) {
	e.EmitAudit(ctx, LevelError, action+": "+err.Error(), requestID, userID)
}
