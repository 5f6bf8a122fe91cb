package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ckd-aip/ckd-aip-go/pkg/metadatastore"
)

// PruneStatus describes the history pruning job
type PruneStatus struct {
	Schedule      string     `json:"schedule"`
	RetentionDays int        `json:"retention_days"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	NextRun       *time.Time `json:"next_run,omitempty"`
	LastDeleted   int64      `json:"last_deleted"`
	LastError     string     `json:"last_error,omitempty"`
}

// Service prunes the prediction history on a cron schedule
type Service struct {
	store     metadatastore.MetadataStore
	schedule  string
	retention time.Duration
	cron      *cron.Cron
	entry     cron.EntryID
	logger    *logrus.Logger
	now       func() time.Time

	mu     sync.Mutex
	status PruneStatus
}

// NewService creates a pruning scheduler. schedule is a standard five-field
// cron expression; retentionDays must be positive.
func NewService(store metadatastore.MetadataStore, schedule string, retentionDays int, logger *logrus.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if retentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		store:     store,
		schedule:  schedule,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		cron:      cron.New(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		status:    PruneStatus{Schedule: schedule, RetentionDays: retentionDays},
	}, nil
}

// Start schedules the pruning job and starts the cron runner
func (s *Service) Start() error {
	entry, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.PruneNow(); err != nil {
			s.logger.WithError(err).Error("History pruning failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}
	s.entry = entry
	s.cron.Start()

	s.logger.WithFields(logrus.Fields{
		"schedule":       s.schedule,
		"retention_days": s.status.RetentionDays,
	}).Info("History pruning scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running job
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("History pruning stopped")
}

// PruneNow deletes predictions older than the retention window
func (s *Service) PruneNow() (int64, error) {
	now := s.now()
	cutoff := now.Add(-s.retention)
	deleted, err := s.store.DeletePredictionsBefore(cutoff)

	s.mu.Lock()
	s.status.LastRun = &now
	s.status.LastDeleted = deleted
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("failed to prune predictions: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"cutoff":  cutoff.Format(time.RFC3339),
		"deleted": deleted,
	}).Info("Pruned prediction history")
	return deleted, nil
}

// Status reports the last and next run of the pruning job
func (s *Service) Status() PruneStatus {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	if s.entry != 0 {
		if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}
