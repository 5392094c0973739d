package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/draip/internal/app"
	"github.com/hylla/draip/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// tsLayout keeps a fixed fraction width so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository caches place-search results per search area.
type Repository struct {
	db *sql.DB
}

// Open opens a file-backed cache, creating the parent directory when needed.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS search_areas (
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			radius_m INTEGER NOT NULL,
			fetched_at TEXT NOT NULL,
			PRIMARY KEY(lat, lon, radius_m)
		);`,
		`CREATE TABLE IF NOT EXISTS places_cache (
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			radius_m INTEGER NOT NULL,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			rating REAL,
			duration_min INTEGER NOT NULL,
			cost_usd REAL NOT NULL DEFAULT 0,
			price_level INTEGER NOT NULL DEFAULT 0,
			is_indoor INTEGER NOT NULL DEFAULT 0,
			crowd_level REAL NOT NULL DEFAULT 0,
			distance_from_prev_m REAL NOT NULL DEFAULT 0,
			address TEXT NOT NULL DEFAULT '',
			PRIMARY KEY(lat, lon, radius_m, id),
			FOREIGN KEY(lat, lon, radius_m) REFERENCES search_areas(lat, lon, radius_m) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_search_areas_fetched_at ON search_areas(fetched_at);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// GetPlaces returns the cached places for key. A zero maxAge accepts any age;
// app.ErrNotFound means the area is missing or older than maxAge.
func (r *Repository) GetPlaces(ctx context.Context, key app.AreaKey, maxAge time.Duration, now time.Time) ([]domain.Candidate, time.Time, error) {
	var fetchedRaw string
	err := r.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM search_areas WHERE lat = ? AND lon = ? AND radius_m = ?`,
		key.Lat, key.Lon, key.RadiusM,
	).Scan(&fetchedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, app.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	fetchedAt := parseTS(fetchedRaw)
	if maxAge > 0 && now.Sub(fetchedAt) > maxAge {
		return nil, fetchedAt, app.ErrNotFound
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, category, rating, duration_min, cost_usd, price_level, is_indoor, crowd_level, distance_from_prev_m, address
		FROM places_cache
		WHERE lat = ? AND lon = ? AND radius_m = ?
		ORDER BY position ASC
	`, key.Lat, key.Lon, key.RadiusM)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	out := make([]domain.Candidate, 0)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, time.Time{}, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	return out, fetchedAt, nil
}

// PutPlaces replaces the cached places for key in one transaction.
func (r *Repository) PutPlaces(ctx context.Context, key app.AreaKey, places []domain.Candidate, fetchedAt time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM places_cache WHERE lat = ? AND lon = ? AND radius_m = ?`, key.Lat, key.Lon, key.RadiusM); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO search_areas(lat, lon, radius_m, fetched_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(lat, lon, radius_m) DO UPDATE SET fetched_at = excluded.fetched_at
	`, key.Lat, key.Lon, key.RadiusM, ts(fetchedAt)); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(places))
	for idx, c := range places {
		c = c.Normalize()
		if _, ok := seen[c.ID]; ok || c.ID == "" {
			continue
		}
		seen[c.ID] = struct{}{}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO places_cache(
				lat, lon, radius_m, position, id, name, category, rating, duration_min, cost_usd,
				price_level, is_indoor, crowd_level, distance_from_prev_m, address
			) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			key.Lat, key.Lon, key.RadiusM, idx, c.ID, c.Name, string(c.Category), nullableRating(c.Rating), c.DurationMin, c.CostUSD,
			c.PriceLevel, boolToInt(c.IsIndoor), c.CrowdLevel, c.DistanceFromPrevM, c.Address,
		)
		if err != nil {
			return fmt.Errorf("cache place %q: %w", c.ID, err)
		}
	}
	err = tx.Commit()
	return err
}

// Prune removes areas fetched before olderThan and reports how many were removed.
func (r *Repository) Prune(ctx context.Context, olderThan time.Time) (removed int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	cutoff := ts(olderThan)
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM places_cache WHERE EXISTS (
			SELECT 1 FROM search_areas a
			WHERE a.lat = places_cache.lat AND a.lon = places_cache.lon AND a.radius_m = places_cache.radius_m
			AND a.fetched_at < ?
		)
	`, cutoff); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM search_areas WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	removed, err = res.RowsAffected()
	if err != nil {
		return 0, err
	}
	err = tx.Commit()
	return removed, err
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanCandidate scans one cached place row.
func scanCandidate(s scanner) (domain.Candidate, error) {
	var (
		c        domain.Candidate
		category string
		rating   sql.NullFloat64
		indoor   int
	)
	if err := s.Scan(&c.ID, &c.Name, &category, &rating, &c.DurationMin, &c.CostUSD, &c.PriceLevel, &indoor, &c.CrowdLevel, &c.DistanceFromPrevM, &c.Address); err != nil {
		return domain.Candidate{}, err
	}
	c.Category = domain.Category(category)
	c.IsIndoor = indoor == 1
	if rating.Valid {
		v := rating.Float64
		c.Rating = &v
	}
	return c, nil
}

func nullableRating(rating *float64) any {
	if rating == nil {
		return nil
	}
	return *rating
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
