package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shortspace/shortspace/internal/app/model"
)

// ActivityPublisher publishes activity events to NATS JetStream. Resolution
// and creation paths fire events asynchronously; they never wait on the
// activity store.
type ActivityPublisher struct {
	js nats.JetStreamContext
}

// NewActivityPublisher creates a publisher over an existing JetStream
// context.
func NewActivityPublisher(js nats.JetStreamContext) *ActivityPublisher {
	return &ActivityPublisher{js: js}
}

// PublishClick records one resolution attempt and its outcome.
func (p *ActivityPublisher) PublishClick(tenant string, domainID uint64, code string, outcome Outcome, ip, userAgent string) error {
	return p.publish(model.ActivityEvent{
		ID:        uuid.New().String(),
		Kind:      model.ActivityKindClick,
		Tenant:    tenant,
		DomainID:  domainID,
		Code:      code,
		Outcome:   string(outcome),
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: time.Now(),
	})
}

// PublishCreate records a successful short-code creation.
func (p *ActivityPublisher) PublishCreate(tenant string, domainID uint64, code, ip, userAgent string) error {
	return p.publish(model.ActivityEvent{
		ID:        uuid.New().String(),
		Kind:      model.ActivityKindCreate,
		Tenant:    tenant,
		DomainID:  domainID,
		Code:      code,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: time.Now(),
	})
}

func (p *ActivityPublisher) publish(event model.ActivityEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(model.ActivityStreamSubject, data)
	return err
}
