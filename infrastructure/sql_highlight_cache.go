// infrastructure/sql_highlight_cache.go
package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

// SQL drivers accepted by OpenSQLHighlightCache.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const highlightCacheSchema = `CREATE TABLE IF NOT EXISTS highlight_cache (
	video_id   TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLHighlightCache stores highlights in a highlight_cache table on Postgres or SQLite.
type SQLHighlightCache struct {
	DB     *sql.DB
	driver string
	now    func() time.Time
}

func NewSQLHighlightCache(db *sql.DB, driver string) *SQLHighlightCache {
	return &SQLHighlightCache{DB: db, driver: driver, now: time.Now}
}

// OpenSQLHighlightCache connects with a few retries and creates the table if needed.
func OpenSQLHighlightCache(ctx context.Context, driver, dsn string) (*SQLHighlightCache, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s highlight cache needs a connection string", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	attempts := 5
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil || i == attempts-1 {
			break
		}
		log.Printf("WARNING: %s not reachable, retrying in 2s... (%d/%d)", driver, i+1, attempts)
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	cache := NewSQLHighlightCache(db, driver)
	if err := cache.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Printf("INFO: %s highlight cache ready", driver)
	return cache, nil
}

func (c *SQLHighlightCache) Migrate(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, highlightCacheSchema); err != nil {
		return fmt.Errorf("failed to create highlight_cache table: %w", err)
	}
	return nil
}

// rebind rewrites $n placeholders for drivers that only understand ?.
func (c *SQLHighlightCache) rebind(query string) string {
	if c.driver != DriverSQLite {
		return query
	}
	for i := 9; i >= 1; i-- {
		query = strings.ReplaceAll(query, fmt.Sprintf("$%d", i), "?")
	}
	return query
}

func (c *SQLHighlightCache) Load(ctx context.Context, videoID string) ([]domain.HighlightSegment, bool, error) {
	var payload string
	query := c.rebind(`SELECT payload FROM highlight_cache WHERE video_id = $1`)
	err := c.DB.QueryRowContext(ctx, query, videoID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cached highlights: %w", err)
	}

	var highlights []domain.HighlightSegment
	if err := json.Unmarshal([]byte(payload), &highlights); err != nil {
		return nil, false, fmt.Errorf("parse cached highlights for %s: %w", videoID, err)
	}
	return highlights, true, nil
}

func (c *SQLHighlightCache) Save(ctx context.Context, videoID string, highlights []domain.HighlightSegment) error {
	if highlights == nil {
		highlights = []domain.HighlightSegment{}
	}
	payload, err := json.Marshal(highlights)
	if err != nil {
		return err
	}
	now := c.now().UTC()
	query := c.rebind(`INSERT INTO highlight_cache (video_id, payload, created_at, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (video_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`)
	if _, err := c.DB.ExecContext(ctx, query, videoID, string(payload), now, now); err != nil {
		return fmt.Errorf("failed to store highlights for %s: %w", videoID, err)
	}
	return nil
}

func (c *SQLHighlightCache) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *SQLHighlightCache) Close() error {
	return c.DB.Close()
}

var _ domain.HighlightCache = (*SQLHighlightCache)(nil)
