package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vittapay/portal-gateway/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repositories bundles the Postgres-backed adapters.
type Repositories struct {
	Audit  ports.AuditRepository
	Outbox ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Audit:  &auditRepository{db: db},
		Outbox: &outboxRepository{db: db},
	}
}

type auditRepository struct {
	db *gorm.DB
}

func (r *auditRepository) InsertAttempt(ctx context.Context, attempt ports.AuthAttempt) error {
	rec := authAttemptModel{
		Identity:      attempt.Identity,
		Portal:        attempt.Portal,
		Method:        attempt.Method,
		AttemptAt:     attempt.AttemptAt,
		Status:        attempt.Status,
		FailureReason: attempt.FailureReason,
		IPAddress:     attempt.IPAddress,
		UserAgent:     attempt.UserAgent,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *auditRepository) InsertSubmission(ctx context.Context, sub ports.RegistrationSubmission) error {
	rec := registrationSubmissionModel{
		TrackingID:    sub.TrackingID,
		Mobile:        sub.Mobile,
		RequestedRole: sub.RequestedRole,
		State:         sub.State,
		SubmittedAt:   sub.SubmittedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *auditRepository) ListAttempts(ctx context.Context, identity string, limit int) ([]ports.AuthAttempt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []authAttemptModel
	if err := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		Order("attempt_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ports.AuthAttempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.AuthAttempt{
			ID:            row.ID,
			Identity:      row.Identity,
			Portal:        row.Portal,
			Method:        row.Method,
			AttemptAt:     row.AttemptAt,
			Status:        row.Status,
			FailureReason: row.FailureReason,
			IPAddress:     row.IPAddress,
			UserAgent:     row.UserAgent,
		})
	}
	return out, nil
}

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	rec := outboxModel{
		EventID:      event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(event.Payload),
		OccurredAt:   event.OccurredAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *outboxRepository) ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	if claimToken == "" {
		return nil, fmt.Errorf("claim token is required")
	}

	now := time.Now().UTC()
	var rows []outboxModel
	if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subquery := tx.Model(&outboxModel{}).
			Select("event_id").
			Where("published_at IS NULL").
			Where("dead_lettered_at IS NULL").
			Where("claim_until IS NULL OR claim_until < ?", now).
			Order("occurred_at ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})

		if err := tx.Model(&outboxModel{}).
			Where("event_id IN (?)", subquery).
			Updates(map[string]any{
				"claim_token": claimToken,
				"claim_until": claimUntil,
			}).Error; err != nil {
			return err
		}

		return tx.Where("claim_token = ?", claimToken).
			Where("published_at IS NULL").
			Where("dead_lettered_at IS NULL").
			Order("occurred_at ASC").
			Find(&rows).Error
	}); err != nil {
		return nil, err
	}

	result := make([]ports.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, ports.OutboxEvent{
			EventID:      row.EventID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      []byte(row.Payload),
			OccurredAt:   row.OccurredAt,
			RetryCount:   row.RetryCount,
		})
	}
	return result, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, eventID uuid.UUID, claimToken string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("event_id = ?", eventID).
		Where("claim_token = ?", claimToken).
		Updates(map[string]any{
			"published_at": at,
			"claim_token":  nil,
			"claim_until":  nil,
		}).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, eventID uuid.UUID, claimToken string, reason string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("event_id = ?", eventID).
		Where("claim_token = ?", claimToken).
		Updates(map[string]any{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_error":    reason,
			"last_error_at": at,
			"claim_token":   nil,
			"claim_until":   nil,
		}).Error
}

func (r *outboxRepository) MarkDeadLettered(ctx context.Context, eventID uuid.UUID, claimToken string, reason string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("event_id = ?", eventID).
		Where("claim_token = ?", claimToken).
		Updates(map[string]any{
			"retry_count":      gorm.Expr("retry_count + 1"),
			"last_error":       reason,
			"last_error_at":    at,
			"dead_lettered_at": at,
			"claim_token":      nil,
			"claim_until":      nil,
		}).Error
}
