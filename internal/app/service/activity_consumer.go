package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shortspace/shortspace/internal/app/model"
	"github.com/shortspace/shortspace/internal/app/repository"
	"go.uber.org/zap"
)

// ActivityConsumer drains the activity stream, persists events and bumps
// click counters. The counter update lives here, off the redirect path, so
// resolution stays a pure read.
type ActivityConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	events repository.ActivityRepository
	codes  repository.ShortCodeRepository
}

// NewActivityConsumer creates an activity consumer.
func NewActivityConsumer(js nats.JetStreamContext, logger *zap.Logger, events repository.ActivityRepository, codes repository.ShortCodeRepository) *ActivityConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityConsumer{js: js, logger: logger, events: events, codes: codes}
}

// Start ensures the stream and durable consumer exist, then consumes in the
// background.
func (c *ActivityConsumer) Start() error {
	_, err := c.js.StreamInfo(model.ActivityStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.ActivityStreamName,
			Subjects: []string{model.ActivityStreamSubject},
			MaxBytes: model.ActivityStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.ActivityStreamName, model.ActivityConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.ActivityStreamName, &nats.ConsumerConfig{
			Durable:   model.ActivityConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ActivityStreamSubject, model.ActivityConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *ActivityConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch activity messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var event model.ActivityEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal activity event", zap.Error(err))
				msg.Nak()
				continue
			}

			if err := c.events.Insert(ctx, &event); err != nil {
				c.logger.Error("failed to store activity event",
					zap.String("id", event.ID),
					zap.String("code", event.Code),
					zap.Error(err))
				msg.Nak()
				continue
			}

			// Only successful redirects count as clicks.
			if event.Kind == model.ActivityKindClick && event.Outcome == string(OutcomeActive) {
				if err := c.codes.AddClicks(ctx, event.DomainID, event.Code, 1); err != nil {
					c.logger.Warn("failed to bump click counter",
						zap.String("code", event.Code),
						zap.Error(err))
				}
			}

			c.logger.Debug("activity event stored",
				zap.String("id", event.ID),
				zap.String("kind", event.Kind),
				zap.String("code", event.Code),
			)

			msg.Ack()
		}
	}
}
