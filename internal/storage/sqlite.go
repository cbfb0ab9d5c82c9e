// Package storage provides data persistence functionality for the crawler.
// It archives finished crawl runs (products, their images and the units that
// were skipped) in a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/masahif/tiendacrawl/internal/model"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// SQLiteStorage archives crawl results in SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// RunSummary is one archived run
type RunSummary struct {
	ID         string
	BaseURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	StopReason string
	Pages      int
	Products   int
	Failures   int
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveRun stores a finished run in one transaction. Saving the same run ID
// twice fails.
func (s *SQLiteStorage) SaveRun(ctx context.Context, result *model.CrawlResult) error {
	if result == nil {
		return fmt.Errorf("result is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	st := result.Stats
	_, err = tx.ExecContext(ctx, `
		INSERT INTO crawl_runs (
			id, base_url, started_at, finished_at, stop_reason,
			pages_visited, items_seen, products, item_failures,
			images_saved, images_cached, image_failures
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.RunID, result.BaseURL, result.StartedAt, result.FinishedAt, st.StopReason,
		st.PagesVisited, st.ItemsSeen, st.Products, st.ItemFailures,
		st.ImagesSaved, st.ImagesCached, st.ImageFailures,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
	}

	productStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (run_id, position, name, price, description, url)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare product statement: %w", err)
	}
	defer func() { _ = productStmt.Close() }()

	imageStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO product_images (product_id, position, ref) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare image statement: %w", err)
	}
	defer func() { _ = imageStmt.Close() }()

	for i, p := range result.Products {
		res, err := productStmt.ExecContext(ctx, result.RunID, i, p.Name, p.Price, p.Description, p.URL)
		if err != nil {
			return fmt.Errorf("failed to insert product %s: %w", p.URL, err)
		}
		productID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get product id: %w", err)
		}

		for j, ref := range p.Images {
			if _, err := imageStmt.ExecContext(ctx, productID, j, ref); err != nil {
				return fmt.Errorf("failed to insert image %s: %w", ref, err)
			}
		}
	}

	if err := s.saveFailures(ctx, tx, result.RunID, result.Failures); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveFailures(ctx context.Context, tx *sql.Tx, runID string, failures []model.Failure) error {
	if len(failures) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO crawl_failures (run_id, url, kind, message, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare failure statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, f := range failures {
		if _, err := stmt.ExecContext(ctx, runID, f.URL, f.Kind, f.Message, f.OccurredAt); err != nil {
			return fmt.Errorf("failed to insert failure for %s: %w", f.URL, err)
		}
	}
	return nil
}

// LoadProducts returns a run's products in extraction order
func (s *SQLiteStorage) LoadProducts(ctx context.Context, runID string) ([]model.ProductRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.price, p.description, p.url, i.ref
		FROM products p
		LEFT JOIN product_images i ON i.product_id = p.id
		WHERE p.run_id = ?
		ORDER BY p.position, i.position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	products := []model.ProductRecord{}
	lastID := int64(-1)

	for rows.Next() {
		var id int64
		var p model.ProductRecord
		var ref sql.NullString
		if err := rows.Scan(&id, &p.Name, &p.Price, &p.Description, &p.URL, &ref); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		if id != lastID {
			p.Images = []string{}
			products = append(products, p)
			lastID = id
		}
		if ref.Valid {
			last := &products[len(products)-1]
			last.Images = append(last.Images, ref.String)
		}
	}

	return products, rows.Err()
}

// LoadFailures returns a run's skipped units in the order they occurred
func (s *SQLiteStorage) LoadFailures(ctx context.Context, runID string) ([]model.Failure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, kind, COALESCE(message, ''), occurred_at
		FROM crawl_failures
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var failures []model.Failure
	for rows.Next() {
		var f model.Failure
		if err := rows.Scan(&f.URL, &f.Kind, &f.Message, &f.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		failures = append(failures, f)
	}

	return failures, rows.Err()
}

// ListRuns returns archived runs, newest first
func (s *SQLiteStorage) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.base_url, r.started_at, r.finished_at, COALESCE(r.stop_reason, ''),
		       r.pages_visited, r.products,
		       (SELECT COUNT(*) FROM crawl_failures f WHERE f.run_id = r.id)
		FROM crawl_runs r
		ORDER BY r.started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.BaseURL, &r.StartedAt, &finished, &r.StopReason,
			&r.Pages, &r.Products, &r.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.FinishedAt = finished.Time
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
