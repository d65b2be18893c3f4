package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) CreateRun(ctx context.Context, domain, createdBy string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO crawl_runs (domain, created_by, status)
		VALUES ($1, $2, 'pending')
		RETURNING id`,
		domain, createdBy,
	).Scan(&id)

	if err != nil {
		return uuid.Nil, err
	}

	slog.Info("created run", "id", id, "domain", domain)
	return id, nil
}

func (s *PostgresStorage) StartRun(ctx context.Context, runID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crawl_runs
		SET status = 'running', started_at = NOW()
		WHERE id = $1`,
		runID,
	)
	return err
}

func (s *PostgresStorage) FinishRun(ctx context.Context, runID uuid.UUID, success bool) error {
	status := RunCompleted
	if !success {
		status = RunFailed
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE crawl_runs
		SET status = $2, finished_at = NOW()
		WHERE id = $1`,
		runID, string(status),
	)
	return err
}

func (s *PostgresStorage) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, created_by, domain, status, started_at, finished_at,
		       pages_found, pages_scanned, error_count
		FROM crawl_runs WHERE id = $1`,
		runID,
	)

	var r Run
	err := row.Scan(&r.ID, &r.CreatedAt, &r.CreatedBy, &r.Domain, &r.Status,
		&r.StartedAt, &r.FinishedAt, &r.PagesFound, &r.PagesScanned, &r.ErrorCount)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStorage) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, created_by, domain, status, started_at, finished_at,
		       pages_found, pages_scanned, error_count
		FROM crawl_runs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.CreatedBy, &r.Domain, &r.Status,
			&r.StartedAt, &r.FinishedAt, &r.PagesFound, &r.PagesScanned, &r.ErrorCount); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *PostgresStorage) IncrementPagesFound(ctx context.Context, runID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE crawl_runs SET pages_found = pages_found + 1 WHERE id = $1`, runID)
	return err
}

func (s *PostgresStorage) IncrementPagesScanned(ctx context.Context, runID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE crawl_runs SET pages_scanned = pages_scanned + 1 WHERE id = $1`, runID)
	return err
}

func (s *PostgresStorage) IncrementErrorCount(ctx context.Context, runID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE crawl_runs SET error_count = error_count + 1 WHERE id = $1`, runID)
	return err
}

func (s *PostgresStorage) InsertPage(ctx context.Context, runID uuid.UUID, url, normalizedURL string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pages (run_id, url, normalized_url, status)
		VALUES ($1, $2, $3, 'pending')
		ON CONFLICT (run_id, normalized_url) DO NOTHING
		RETURNING id`,
		runID, url, normalizedURL,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		// Lost the insert race or the page was registered earlier.
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (s *PostgresStorage) MarkPageScanning(ctx context.Context, pageID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pages SET status = 'scanning' WHERE id = $1`, pageID)
	return err
}

func (s *PostgresStorage) MarkPageCompleted(ctx context.Context, pageID uuid.UUID, totalHits int, keywordsCSV *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pages
		SET status          = 'completed',
		    total_hits      = $2,
		    keywords_csv    = $3,
		    last_scanned_at = NOW()
		WHERE id = $1`,
		pageID, totalHits, keywordsCSV,
	)
	return err
}

func (s *PostgresStorage) MarkPageSkipped(ctx context.Context, pageID uuid.UUID, notes string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pages SET status = 'skipped', notes = $2, last_scanned_at = NOW() WHERE id = $1`,
		pageID, notes)
	return err
}

func (s *PostgresStorage) MarkPageFailed(ctx context.Context, pageID uuid.UUID, notes string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pages SET status = 'failed', notes = $2, last_scanned_at = NOW() WHERE id = $1`,
		pageID, notes)
	return err
}

func (s *PostgresStorage) GetPage(ctx context.Context, pageID uuid.UUID) (*Page, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, url, normalized_url, status, total_hits,
		       keywords_csv, notes, last_scanned_at
		FROM pages WHERE id = $1`,
		pageID,
	)

	var p Page
	err := row.Scan(&p.ID, &p.RunID, &p.URL, &p.NormalizedURL, &p.Status,
		&p.TotalHits, &p.KeywordsCSV, &p.Notes, &p.LastScannedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStorage) ListPages(ctx context.Context, runID uuid.UUID) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, url, normalized_url, status, total_hits,
		       keywords_csv, notes, last_scanned_at
		FROM pages WHERE run_id = $1 ORDER BY url`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.RunID, &p.URL, &p.NormalizedURL, &p.Status,
			&p.TotalHits, &p.KeywordsCSV, &p.Notes, &p.LastScannedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *PostgresStorage) InsertMatches(ctx context.Context, matches []Match) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO page_matches (page_id, keyword, matched_text, tag, position, snippet)
		VALUES ($1, $2, $3, $4, $5, $6)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range matches {
		if _, err := stmt.ExecContext(ctx, m.PageID, m.Keyword, m.MatchedText, m.Tag, m.Position, m.Snippet); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStorage) ListMatches(ctx context.Context, pageID uuid.UUID) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, keyword, matched_text, tag, position, snippet
		FROM page_matches WHERE page_id = $1 ORDER BY position`,
		pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.PageID, &m.Keyword, &m.MatchedText, &m.Tag, &m.Position, &m.Snippet); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
