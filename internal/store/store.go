// Package store archives sessions, memory records and IOC statistics so
// they survive a restart.
package store

import (
	"context"

	"github.com/ashureev/honeypot/internal/domain"
)

// Repository defines the interface for the durable archive.
type Repository interface {
	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// SaveSession creates or replaces a session snapshot.
	SaveSession(ctx context.Context, s *domain.Session) error

	// GetSession retrieves a session snapshot. It returns nil, nil when absent.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// ListSessions returns the most recently updated sessions, newest first.
	// A non-positive limit returns every session.
	ListSessions(ctx context.Context, limit int) ([]*domain.Session, error)

	// SaveMemoryRecord creates or replaces a memory record.
	SaveMemoryRecord(ctx context.Context, rec domain.MemoryRecord) error

	// ListMemoryRecords returns every memory record ordered by first sighting.
	ListMemoryRecords(ctx context.Context) ([]domain.MemoryRecord, error)

	// SaveIOCStats creates or replaces IOC counters.
	SaveIOCStats(ctx context.Context, stats []domain.IOCStat) error

	// TopIOCs returns the most frequently seen IOCs. A non-positive n returns all.
	TopIOCs(ctx context.Context, n int) ([]domain.IOCStat, error)
}
