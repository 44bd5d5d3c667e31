package service

import (
	"context"
	"time"

	"github.com/shortspace/shortspace/internal/app/repository"
	"go.uber.org/zap"
)

// ActivityPruner periodically deletes activity events past the retention
// window so the table does not grow without bound.
type ActivityPruner struct {
	logger    *zap.Logger
	events    repository.ActivityRepository
	retention time.Duration
	interval  time.Duration
	stopChan  chan struct{}
}

// NewActivityPruner creates a pruner with the given retention window.
func NewActivityPruner(logger *zap.Logger, events repository.ActivityRepository, retention time.Duration) *ActivityPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &ActivityPruner{
		logger:    logger,
		events:    events,
		retention: retention,
		interval:  time.Hour,
		stopChan:  make(chan struct{}),
	}
}

// Start begins pruning in the background.
func (p *ActivityPruner) Start() {
	go p.run()
}

// Stop halts the pruner.
func (p *ActivityPruner) Stop() {
	close(p.stopChan)
}

func (p *ActivityPruner) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.prune()
		case <-p.stopChan:
			p.logger.Info("activity pruner stopped")
			return
		}
	}
}

func (p *ActivityPruner) prune() {
	ctx := context.Background()
	cutoff := time.Now().Add(-p.retention)

	deleted, err := p.events.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to prune activity events", zap.Error(err))
		return
	}

	if deleted > 0 {
		p.logger.Info("pruned old activity events",
			zap.Int64("count", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
