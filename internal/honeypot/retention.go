package honeypot

import (
	"context"
	"time"

	"github.com/ashureev/honeypot/internal/domain"
)

// DefaultRetentionInterval is how often the retention worker sweeps.
const DefaultRetentionInterval = 5 * time.Minute

// RunRetention evicts ended sessions from memory once their last contact
// is older than ttl. Evicted sessions stay readable through the archive.
// It blocks until ctx is done and is a no-op without an archive.
func (s *Service) RunRetention(ctx context.Context, ttl, interval time.Duration) error {
	if s.archive == nil || ttl <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("Retention worker started", "interval", interval, "ttl", ttl)

	for {
		select {
		case <-ticker.C:
			s.EvictEnded(ctx, time.Now().Add(-ttl))
		case <-ctx.Done():
			s.logger.Info("Retention worker shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// EvictEnded archives and drops ended sessions last contacted before
// cutoff. It returns the number evicted. Sessions whose archive write
// fails are kept.
func (s *Service) EvictEnded(ctx context.Context, cutoff time.Time) int {
	if s.archive == nil {
		return 0
	}

	var evicted int
	for _, snap := range s.sessions.List() {
		if snap.Status != domain.StatusEnded || !snap.LastContactAt.Before(cutoff) {
			continue
		}
		// Ended sessions never change, so the snapshot is final.
		if err := s.archive.SaveSession(ctx, snap); err != nil {
			s.logger.Warn("Retention worker failed to archive session", "session_id", snap.ID, "error", err)
			continue
		}
		if s.sessions.Remove(snap.ID) {
			evicted++
		}
	}

	if evicted > 0 {
		s.logger.Info("Retention worker evicted ended sessions", "count", evicted)
	}
	return evicted
}
