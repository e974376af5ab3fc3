package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/honeypot/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets readers proceed while the service writes.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		stop_reason TEXT,
		turns INTEGER NOT NULL,
		session_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS memory_records (
		key TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		analysis_json TEXT,
		intel_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ioc_stats (
		category TEXT NOT NULL,
		value TEXT NOT NULL,
		count INTEGER NOT NULL,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		PRIMARY KEY (category, value)
	);
	CREATE INDEX IF NOT EXISTS idx_ioc_stats_count ON ioc_stats(count DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// SaveSession creates or replaces a session snapshot.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}

	query := `
	INSERT INTO sessions (id, status, stop_reason, turns, session_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		stop_reason = excluded.stop_reason,
		turns = excluded.turns,
		session_json = excluded.session_json,
		updated_at = excluded.updated_at`

	var stopReason any
	if sess.StopReason != domain.StopNone {
		stopReason = string(sess.StopReason)
	}

	return withRetry(ctx, "save session "+sess.ID, func() error {
		_, err := s.db.ExecContext(ctx, query,
			sess.ID, string(sess.Status), stopReason, sess.Turns, string(data),
			sess.CreatedAt.UnixMilli(), time.Now().UnixMilli(),
		)
		return err
	})
}

// GetSession retrieves a session snapshot by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT session_json FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session %s: %w", id, err)
	}
	return decodeSession(data)
}

// ListSessions returns sessions ordered by last update, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_json FROM sessions ORDER BY updated_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer closeRows(rows, "sessions")

	var sessions []*domain.Session
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func decodeSession(data string) (*domain.Session, error) {
	var sess domain.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// SaveMemoryRecord creates or replaces a memory record.
func (s *SQLiteStore) SaveMemoryRecord(ctx context.Context, rec domain.MemoryRecord) error {
	intelJSON, err := json.Marshal(rec.Intel)
	if err != nil {
		return fmt.Errorf("encode memory intel: %w", err)
	}
	var analysisJSON any
	if rec.LastAnalysis != nil {
		data, err := json.Marshal(rec.LastAnalysis)
		if err != nil {
			return fmt.Errorf("encode memory analysis: %w", err)
		}
		analysisJSON = string(data)
	}

	query := `
	INSERT INTO memory_records (key, count, first_seen, last_seen, analysis_json, intel_json)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		count = excluded.count,
		last_seen = excluded.last_seen,
		analysis_json = COALESCE(excluded.analysis_json, memory_records.analysis_json),
		intel_json = excluded.intel_json`

	return withRetry(ctx, "save memory record", func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.Key, rec.Count, rec.FirstSeen.UnixMilli(), rec.LastSeen.UnixMilli(),
			analysisJSON, string(intelJSON),
		)
		return err
	})
}

// ListMemoryRecords returns every memory record ordered by first sighting.
func (s *SQLiteStore) ListMemoryRecords(ctx context.Context) ([]domain.MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, count, first_seen, last_seen, analysis_json, intel_json
		FROM memory_records ORDER BY first_seen, key`)
	if err != nil {
		return nil, fmt.Errorf("query memory records: %w", err)
	}
	defer closeRows(rows, "memory records")

	var records []domain.MemoryRecord
	for rows.Next() {
		var rec domain.MemoryRecord
		var firstSeen, lastSeen int64
		var analysisJSON sql.NullString
		var intelJSON string
		if err := rows.Scan(&rec.Key, &rec.Count, &firstSeen, &lastSeen, &analysisJSON, &intelJSON); err != nil {
			return nil, fmt.Errorf("scan memory record: %w", err)
		}
		rec.FirstSeen = time.UnixMilli(firstSeen).UTC()
		rec.LastSeen = time.UnixMilli(lastSeen).UTC()
		if err := json.Unmarshal([]byte(intelJSON), &rec.Intel); err != nil {
			return nil, fmt.Errorf("decode memory intel %s: %w", rec.Key, err)
		}
		if analysisJSON.Valid {
			rec.LastAnalysis = &domain.Analysis{}
			if err := json.Unmarshal([]byte(analysisJSON.String), rec.LastAnalysis); err != nil {
				return nil, fmt.Errorf("decode memory analysis %s: %w", rec.Key, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory records: %w", err)
	}
	return records, nil
}

// SaveIOCStats creates or replaces IOC counters in a single transaction.
func (s *SQLiteStore) SaveIOCStats(ctx context.Context, stats []domain.IOCStat) error {
	if len(stats) == 0 {
		return nil
	}

	query := `
	INSERT INTO ioc_stats (category, value, count, first_seen, last_seen)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(category, value) DO UPDATE SET
		count = excluded.count,
		last_seen = excluded.last_seen`

	return withRetry(ctx, "save ioc stats", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, st := range stats {
			if _, err := tx.ExecContext(ctx, query,
				string(st.Category), st.Value, st.Count,
				st.FirstSeen.UnixMilli(), st.LastSeen.UnixMilli(),
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// TopIOCs returns IOC counters ordered by count, most frequent first.
func (s *SQLiteStore) TopIOCs(ctx context.Context, n int) ([]domain.IOCStat, error) {
	if n <= 0 {
		n = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, value, count, first_seen, last_seen
		FROM ioc_stats ORDER BY count DESC, first_seen, category, value LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query ioc stats: %w", err)
	}
	defer closeRows(rows, "ioc stats")

	var stats []domain.IOCStat
	for rows.Next() {
		var st domain.IOCStat
		var category string
		var firstSeen, lastSeen int64
		if err := rows.Scan(&category, &st.Value, &st.Count, &firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan ioc stat: %w", err)
		}
		st.Category = domain.Category(category)
		st.FirstSeen = time.UnixMilli(firstSeen).UTC()
		st.LastSeen = time.UnixMilli(lastSeen).UTC()
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ioc stats: %w", err)
	}
	return stats, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

var _ Repository = (*SQLiteStore)(nil)
