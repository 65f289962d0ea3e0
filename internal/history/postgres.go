package history

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"

	"github.com/deusflow/newsbot/internal/logger"
)

// PostgresStore keeps the published history in PostgreSQL. The
// in-memory mirror follows the same read-at-start / append-at-commit
// discipline as the file store, so the selector sees one consistent
// snapshot per run.
type PostgresStore struct {
	db        *sql.DB
	retention int

	mu      sync.Mutex
	records []Record
	links   map[string]struct{}
}

func NewPostgresStore(connectionString string, retention int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if retention <= 0 {
		retention = 1000
	}
	ps := &PostgresStore{
		db:        db,
		retention: retention,
		links:     make(map[string]struct{}),
	}

	if err := ps.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logger.Info("postgres history store connected")
	return ps, nil
}

func (ps *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS published_news (
		id SERIAL PRIMARY KEY,
		link TEXT UNIQUE NOT NULL,
		feed VARCHAR(100),
		domain VARCHAR(255),
		published_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_published_news_link ON published_news(link);
	CREATE INDEX IF NOT EXISTS idx_published_news_published_at ON published_news(published_at);
	`

	_, err := ps.db.Exec(schema)
	return err
}

func (ps *PostgresStore) Load() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	query := `
		SELECT link, feed, domain, published_at FROM (
			SELECT link, feed, domain, published_at
			FROM published_news
			ORDER BY published_at DESC, id DESC
			LIMIT $1
		) sub ORDER BY published_at ASC
	`

	rows, err := ps.db.Query(query, ps.retention)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	ps.records = nil
	ps.links = make(map[string]struct{})
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Link, &r.Feed, &r.Domain, &r.PublishedAt); err != nil {
			return fmt.Errorf("scan history row: %w", err)
		}
		ps.records = append(ps.records, r)
		ps.links[r.Link] = struct{}{}
	}
	return rows.Err()
}

func (ps *PostgresStore) Records() []Record {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]Record, len(ps.records))
	copy(out, ps.records)
	return out
}

func (ps *PostgresStore) Contains(link string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	_, ok := ps.links[link]
	return ok
}

func (ps *PostgresStore) Append(rec Record) error {
	ps.mu.Lock()
	if _, ok := ps.links[rec.Link]; ok {
		ps.mu.Unlock()
		return nil
	}
	ps.records = trim(append(ps.records, rec), ps.retention)
	ps.links[rec.Link] = struct{}{}
	ps.mu.Unlock()

	query := `
		INSERT INTO published_news (link, feed, domain, published_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (link) DO NOTHING
	`
	if _, err := ps.db.Exec(query, rec.Link, rec.Feed, rec.Domain, rec.PublishedAt); err != nil {
		return fmt.Errorf("persist publish record: %w", err)
	}

	// Opportunistic trim; failures here only delay cleanup.
	cleanup := `
		DELETE FROM published_news
		WHERE id NOT IN (
			SELECT id FROM published_news ORDER BY published_at DESC, id DESC LIMIT $1
		)
	`
	if _, err := ps.db.Exec(cleanup, ps.retention); err != nil {
		logger.Warn("history cleanup failed", "error", err)
	}

	return nil
}

func (ps *PostgresStore) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
