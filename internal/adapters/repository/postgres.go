package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/okian/loka/internal/domain/model"
	"github.com/okian/loka/pkg/metrics"
)

const defaultTable = "user_locations"

// PostgresStore keeps records in a postgres table keyed by user id.
type PostgresStore struct {
	db          *sql.DB
	table       string
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to databaseURL, verifies the connection and makes
// sure the table exists.
func OpenPostgres(ctx context.Context, databaseURL string, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{
		table:       defaultTable,
		maxOpen:     10,
		maxIdle:     10,
		maxLifetime: 30 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpen)
	db.SetMaxIdleConns(s.maxIdle)
	db.SetConnMaxLifetime(s.maxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify postgres connection: %w", err)
	}
	s.db = db

	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// InitSchema creates the table when missing.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq        BIGSERIAL,
			user_id    TEXT PRIMARY KEY,
			username   TEXT NOT NULL,
			avatar     TEXT NOT NULL DEFAULT '',
			latitude   DOUBLE PRECISION NOT NULL,
			longitude  DOUBLE PRECISION NOT NULL,
			tag        TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		);`, s.ident()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (seq);`,
			pgx.Identifier{"idx_" + s.table + "_seq"}.Sanitize(), s.ident()),
	}
	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}
	return nil
}

// Upsert implements Store.Upsert. The tag column is only written on insert.
func (s *PostgresStore) Upsert(ctx context.Context, rec model.LocationRecord) (bool, error) {
	defer observe("upsert", time.Now())

	if err := validateRecord(rec); err != nil {
		return false, err
	}

	q := fmt.Sprintf(`
	INSERT INTO %s (user_id, username, avatar, latitude, longitude, tag, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (user_id) DO UPDATE SET
		username   = EXCLUDED.username,
		avatar     = EXCLUDED.avatar,
		latitude   = EXCLUDED.latitude,
		longitude  = EXCLUDED.longitude,
		updated_at = EXCLUDED.updated_at
	RETURNING (xmax = 0) AS inserted;
	`, s.ident())

	var inserted bool
	err := s.db.QueryRowContext(ctx, q,
		rec.UserID, rec.Username, rec.Avatar, rec.Latitude, rec.Longitude, rec.Tag, rec.LastUpdated.UTC(),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert location: %w", err)
	}
	return inserted, nil
}

// UpdateTag implements Store.UpdateTag.
func (s *PostgresStore) UpdateTag(ctx context.Context, userID, tag string) (model.LocationRecord, error) {
	defer observe("update_tag", time.Now())

	q := fmt.Sprintf(`
	UPDATE %s SET tag = $2 WHERE user_id = $1
	RETURNING user_id, username, avatar, latitude, longitude, tag, updated_at;
	`, s.ident())

	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, userID, tag))
	if errors.Is(err, sql.ErrNoRows) {
		return model.LocationRecord{}, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	if err != nil {
		return model.LocationRecord{}, fmt.Errorf("update tag: %w", err)
	}
	return rec, nil
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, userID string) (model.LocationRecord, error) {
	defer observe("get", time.Now())

	q := fmt.Sprintf(`
	SELECT user_id, username, avatar, latitude, longitude, tag, updated_at
	FROM %s WHERE user_id = $1;
	`, s.ident())

	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.LocationRecord{}, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	if err != nil {
		return model.LocationRecord{}, fmt.Errorf("get location: %w", err)
	}
	return rec, nil
}

// List implements Store.List.
func (s *PostgresStore) List(ctx context.Context) ([]model.LocationRecord, error) {
	defer observe("list", time.Now())

	q := fmt.Sprintf(`
	SELECT user_id, username, avatar, latitude, longitude, tag, updated_at
	FROM %s ORDER BY seq;
	`, s.ident())

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list locations: query: %w", err)
	}
	defer rows.Close()

	out := make([]model.LocationRecord, 0, 64)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list locations: scan row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list locations: row iteration: %w", err)
	}
	return out, nil
}

// Count implements Store.Count. Errors are reported as zero.
func (s *PostgresStore) Count(ctx context.Context) int {
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s;`, s.ident())
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.LocationRecord, error) {
	var rec model.LocationRecord
	err := row.Scan(&rec.UserID, &rec.Username, &rec.Avatar, &rec.Latitude, &rec.Longitude, &rec.Tag, &rec.LastUpdated)
	rec.LastUpdated = rec.LastUpdated.UTC()
	return rec, err
}

func observe(op string, start time.Time) {
	metrics.RecordStoreOperation(backendPostgres, op, float64(time.Since(start).Microseconds())/1000)
}
