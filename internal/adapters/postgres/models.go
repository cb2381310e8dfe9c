package postgres

import (
	"time"

	"github.com/google/uuid"
)

type authAttemptModel struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Identity      string    `gorm:"column:identity;index"`
	Portal        string    `gorm:"column:portal"`
	Method        string    `gorm:"column:method"`
	AttemptAt     time.Time `gorm:"column:attempt_at;index"`
	Status        string    `gorm:"column:status"`
	FailureReason string    `gorm:"column:failure_reason"`
	IPAddress     string    `gorm:"column:ip_address"`
	UserAgent     string    `gorm:"column:user_agent"`
}

func (authAttemptModel) TableName() string { return "auth_attempts" }

type registrationSubmissionModel struct {
	TrackingID    string    `gorm:"column:tracking_id;primaryKey"`
	Mobile        string    `gorm:"column:mobile;index"`
	RequestedRole string    `gorm:"column:requested_role"`
	State         string    `gorm:"column:state"`
	SubmittedAt   time.Time `gorm:"column:submitted_at"`
}

func (registrationSubmissionModel) TableName() string { return "registration_submissions" }

type outboxModel struct {
	EventID        uuid.UUID  `gorm:"column:event_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	OccurredAt     time.Time  `gorm:"column:occurred_at"`
	PublishedAt    *time.Time `gorm:"column:published_at;index"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "portal_outbox" }
