package model

import "time"

// ActivityEvent records a resolution or creation against a short code. Events
// are published to JetStream on the hot path and persisted by a background
// consumer, so the redirect itself never waits on the activity store.
type ActivityEvent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Kind      string    `gorm:"size:16;not null;index" json:"kind"`
	Tenant    string    `gorm:"size:64;index" json:"tenant"`
	DomainID  uint64    `gorm:"index" json:"domain_id"`
	Code      string    `gorm:"size:64;index" json:"code"`
	Outcome   string    `gorm:"size:16" json:"outcome"`
	IP        string    `gorm:"size:64" json:"ip"`
	UserAgent string    `gorm:"size:512" json:"user_agent"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

// Activity event kinds.
const (
	ActivityKindClick  = "click"
	ActivityKindCreate = "create"
)

const (
	ActivityStreamName     = "ACTIVITY"
	ActivityStreamSubject  = "activity.events"
	ActivityConsumerName   = "activity-logger"
	ActivityStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
