// Package sqlite persists room records with database/sql over go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	stage           TEXT NOT NULL,
	bootcamp        TEXT NOT NULL DEFAULT '',
	capacity        INTEGER NOT NULL,
	host_id         TEXT NOT NULL,
	members         TEXT NOT NULL,
	applicants      TEXT NOT NULL,
	status          TEXT NOT NULL,
	next_session_at TIMESTAMP,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL,
	version         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS rooms_stage ON rooms (stage);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// sqlite serializes writers anyway; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("module", "store.sqlite").Str("dsn", dsn).Msg("room store ready")
	return s, nil
}

func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveRoom upserts a room unless the stored version is newer.
func (s *Store) SaveRoom(ctx context.Context, r domain.Room) error {
	members, err := json.Marshal(r.Members)
	if err != nil {
		return fmt.Errorf("failed to encode members: %w", err)
	}
	applicants, err := json.Marshal(r.Applicants)
	if err != nil {
		return fmt.Errorf("failed to encode applicants: %w", err)
	}
	var next sql.NullTime
	if !r.NextSessionAt.IsZero() {
		next = sql.NullTime{Time: r.NextSessionAt.UTC(), Valid: true}
	}
	query := `
		INSERT INTO rooms (id, title, stage, bootcamp, capacity, host_id, members, applicants, status,
			next_session_at, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			members = excluded.members,
			applicants = excluded.applicants,
			status = excluded.status,
			next_session_at = excluded.next_session_at,
			updated_at = excluded.updated_at,
			version = excluded.version
		WHERE excluded.version >= rooms.version
	`
	if _, err := s.db.ExecContext(ctx, query,
		string(r.ID), r.Title, string(r.Stage), r.Bootcamp, r.Capacity, string(r.HostID),
		string(members), string(applicants), string(r.Status),
		next, r.CreatedAt.UTC(), r.UpdatedAt.UTC(), r.Version,
	); err != nil {
		return fmt.Errorf("failed to save room %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) LoadRooms(ctx context.Context) ([]domain.Room, error) {
	query := `
		SELECT id, title, stage, bootcamp, capacity, host_id, members, applicants, status,
			next_session_at, created_at, updated_at, version
		FROM rooms ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var results []domain.Room
	for rows.Next() {
		var (
			r                   domain.Room
			id, stage, host     string
			status              string
			members, applicants string
			next                sql.NullTime
			createdAt, updated  time.Time
		)
		if err := rows.Scan(&id, &r.Title, &stage, &r.Bootcamp, &r.Capacity, &host, &members, &applicants,
			&status, &next, &createdAt, &updated, &r.Version); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		r.ID = domain.RoomID(id)
		r.Stage = domain.Stage(stage)
		r.HostID = domain.UserID(host)
		r.Status = domain.RoomStatus(status)
		r.CreatedAt = createdAt
		r.UpdatedAt = updated
		if next.Valid {
			r.NextSessionAt = next.Time
		}
		if err := json.Unmarshal([]byte(members), &r.Members); err != nil {
			return nil, fmt.Errorf("failed to decode members of %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(applicants), &r.Applicants); err != nil {
			return nil, fmt.Errorf("failed to decode applicants of %s: %w", id, err)
		}
		results = append(results, r.Clone())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rooms: %w", err)
	}
	return results, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
