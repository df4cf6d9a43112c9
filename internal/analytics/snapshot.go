package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/leadtracker/crm/internal/metrics"
)

// Refresh recomputes the snapshot and writes it to the cache.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snap, err := s.Compute(ctx)
	if err != nil {
		metrics.AnalyticsRefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	body, err := json.Marshal(snap)
	if err != nil {
		metrics.AnalyticsRefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := s.cache.Set(ctx, SnapshotKey, body, s.snapshotTTL); err != nil {
		metrics.AnalyticsRefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.AnalyticsRefreshTotal.WithLabelValues("ok").Inc()
	metrics.AnalyticsRefreshDuration.Observe(time.Since(start).Seconds())
	s.log.Info().
		Int("users", len(snap.Users)).
		Dur("took", time.Since(start)).
		Msg("analytics snapshot refreshed")
	return snap, nil
}

// Snapshot serves the cached snapshot, computing and storing one on a miss.
// Cache failures degrade to computing from the database.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	body, ok, err := s.cache.Get(ctx, SnapshotKey)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Msg("analytics snapshot read failed")
	case ok:
		var snap Snapshot
		if err := json.Unmarshal(body, &snap); err == nil {
			metrics.AnalyticsSnapshotReads.WithLabelValues("hit").Inc()
			return &snap, nil
		}
		s.log.Warn().Msg("discarding undecodable analytics snapshot")
	}
	metrics.AnalyticsSnapshotReads.WithLabelValues("miss").Inc()

	snap, err := s.Refresh(ctx)
	if err == nil {
		return snap, nil
	}
	s.log.Warn().Err(err).Msg("analytics snapshot write-through failed")
	return s.Compute(ctx)
}
