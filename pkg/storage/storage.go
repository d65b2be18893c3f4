package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

type PageStatus string

const (
	PagePending   PageStatus = "pending"
	PageScanning  PageStatus = "scanning"
	PageCompleted PageStatus = "completed"
	PageSkipped   PageStatus = "skipped"
	PageFailed    PageStatus = "failed"
)

// Run is one crawl execution against one domain.
type Run struct {
	ID           uuid.UUID  `json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	CreatedBy    string     `json:"created_by"`
	Domain       string     `json:"domain"`
	Status       RunStatus  `json:"status"`
	StartedAt    *time.Time `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	PagesFound   int        `json:"pages_found"`
	PagesScanned int        `json:"pages_scanned"`
	ErrorCount   int        `json:"error_count"`
}

// Page is one URL encountered within a run. URL is the form the link was
// discovered in; NormalizedURL is the deduplication key, unique per run.
type Page struct {
	ID            uuid.UUID  `json:"id"`
	RunID         uuid.UUID  `json:"run_id"`
	URL           string     `json:"url"`
	NormalizedURL string     `json:"normalized_url"`
	Status        PageStatus `json:"status"`
	TotalHits     int        `json:"total_hits"`
	KeywordsCSV   *string    `json:"keywords_csv"`
	Notes         *string    `json:"notes"`
	LastScannedAt *time.Time `json:"last_scanned_at"`
}

// Match is one keyword hit on a page. Position is the character offset
// within the page's reconstructed text.
type Match struct {
	ID          int64     `json:"id"`
	PageID      uuid.UUID `json:"page_id"`
	Keyword     string    `json:"keyword"`
	MatchedText string    `json:"matched_text"`
	Tag         string    `json:"tag"`
	Position    int       `json:"position"`
	Snippet     string    `json:"snippet"`
}

// Storage is the durable store for runs, pages and matches. Every method is
// individually atomic; callers never need a cross-call transaction. Counter
// increments happen in SQL so concurrent workers cannot race each other.
type Storage interface {
	CreateRun(ctx context.Context, domain, createdBy string) (uuid.UUID, error)
	StartRun(ctx context.Context, runID uuid.UUID) error
	FinishRun(ctx context.Context, runID uuid.UUID, success bool) error
	GetRun(ctx context.Context, runID uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context) ([]Run, error)

	IncrementPagesFound(ctx context.Context, runID uuid.UUID) error
	IncrementPagesScanned(ctx context.Context, runID uuid.UUID) error
	IncrementErrorCount(ctx context.Context, runID uuid.UUID) error

	// InsertPage registers a page within a run. The second return value is
	// false when the (run, normalized URL) pair already exists; that is a
	// no-op signal, not an error.
	InsertPage(ctx context.Context, runID uuid.UUID, url, normalizedURL string) (uuid.UUID, bool, error)
	MarkPageScanning(ctx context.Context, pageID uuid.UUID) error
	MarkPageCompleted(ctx context.Context, pageID uuid.UUID, totalHits int, keywordsCSV *string) error
	MarkPageSkipped(ctx context.Context, pageID uuid.UUID, notes string) error
	MarkPageFailed(ctx context.Context, pageID uuid.UUID, notes string) error
	GetPage(ctx context.Context, pageID uuid.UUID) (*Page, error)
	ListPages(ctx context.Context, runID uuid.UUID) ([]Page, error)

	InsertMatches(ctx context.Context, matches []Match) error
	ListMatches(ctx context.Context, pageID uuid.UUID) ([]Match, error)

	Close() error
}
