package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuthAttempt is an audit record of one credential exchange against the
// reseller backend, successful or not.
type AuthAttempt struct {
	ID            int64
	Identity      string
	Portal        string
	Method        string
	AttemptAt     time.Time
	Status        string
	FailureReason string
	IPAddress     string
	UserAgent     string
}

// RegistrationSubmission tracks an applicant handed to the backend, keyed by
// the backend-issued tracking id.
type RegistrationSubmission struct {
	TrackingID    string
	Mobile        string
	RequestedRole string
	State         string
	SubmittedAt   time.Time
}

// AuditRepository persists login attempts and registration submissions.
// Writes here are best-effort from the flow's point of view: an audit failure
// never fails the login itself.
type AuditRepository interface {
	InsertAttempt(ctx context.Context, attempt AuthAttempt) error
	InsertSubmission(ctx context.Context, sub RegistrationSubmission) error
	ListAttempts(ctx context.Context, identity string, limit int) ([]AuthAttempt, error)
}

// OutboxEvent is a durably queued integration event awaiting publication.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
	RetryCount   int
}

// OutboxRepository stores and claims unpublished events so broker delivery is
// decoupled from the request path.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, eventID uuid.UUID, claimToken string, reason string, at time.Time) error
	MarkDeadLettered(ctx context.Context, eventID uuid.UUID, claimToken string, reason string, at time.Time) error
}

// EventPublisher delivers outbox payloads to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
