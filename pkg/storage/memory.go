package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrPageNotFound = errors.New("page not found")
)

// MemoryStorage is a map-backed Storage for tests and local development.
// It mirrors the Postgres implementation's semantics, including the
// conflict-safe page insert keyed by (run, normalized URL).
type MemoryStorage struct {
	mu       sync.RWMutex
	runs     map[uuid.UUID]*Run
	pages    map[uuid.UUID]*Page
	pageKeys map[pageKey]uuid.UUID
	matches  []Match
	nextID   int64
}

type pageKey struct {
	runID         uuid.UUID
	normalizedURL string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		runs:     make(map[uuid.UUID]*Run),
		pages:    make(map[uuid.UUID]*Page),
		pageKeys: make(map[pageKey]uuid.UUID),
	}
}

func (s *MemoryStorage) CreateRun(ctx context.Context, domain, createdBy string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.runs[id] = &Run{
		ID:        id,
		CreatedAt: time.Now(),
		CreatedBy: createdBy,
		Domain:    domain,
		Status:    RunPending,
	}
	return id, nil
}

func (s *MemoryStorage) StartRun(ctx context.Context, runID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	now := time.Now()
	run.Status = RunRunning
	run.StartedAt = &now
	return nil
}

func (s *MemoryStorage) FinishRun(ctx context.Context, runID uuid.UUID, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	now := time.Now()
	if success {
		run.Status = RunCompleted
	} else {
		run.Status = RunFailed
	}
	run.FinishedAt = &now
	return nil
}

func (s *MemoryStorage) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

func (s *MemoryStorage) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *MemoryStorage) IncrementPagesFound(ctx context.Context, runID uuid.UUID) error {
	return s.incrementRun(runID, func(r *Run) { r.PagesFound++ })
}

func (s *MemoryStorage) IncrementPagesScanned(ctx context.Context, runID uuid.UUID) error {
	return s.incrementRun(runID, func(r *Run) { r.PagesScanned++ })
}

func (s *MemoryStorage) IncrementErrorCount(ctx context.Context, runID uuid.UUID) error {
	return s.incrementRun(runID, func(r *Run) { r.ErrorCount++ })
}

func (s *MemoryStorage) incrementRun(runID uuid.UUID, apply func(*Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	apply(run)
	return nil
}

func (s *MemoryStorage) InsertPage(ctx context.Context, runID uuid.UUID, url, normalizedURL string) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pageKey{runID: runID, normalizedURL: normalizedURL}
	if _, exists := s.pageKeys[key]; exists {
		return uuid.Nil, false, nil
	}

	id := uuid.New()
	s.pages[id] = &Page{
		ID:            id,
		RunID:         runID,
		URL:           url,
		NormalizedURL: normalizedURL,
		Status:        PagePending,
	}
	s.pageKeys[key] = id
	return id, true, nil
}

func (s *MemoryStorage) MarkPageScanning(ctx context.Context, pageID uuid.UUID) error {
	return s.updatePage(pageID, func(p *Page) { p.Status = PageScanning })
}

func (s *MemoryStorage) MarkPageCompleted(ctx context.Context, pageID uuid.UUID, totalHits int, keywordsCSV *string) error {
	now := time.Now()
	return s.updatePage(pageID, func(p *Page) {
		p.Status = PageCompleted
		p.TotalHits = totalHits
		p.KeywordsCSV = keywordsCSV
		p.LastScannedAt = &now
	})
}

func (s *MemoryStorage) MarkPageSkipped(ctx context.Context, pageID uuid.UUID, notes string) error {
	now := time.Now()
	return s.updatePage(pageID, func(p *Page) {
		p.Status = PageSkipped
		p.Notes = &notes
		p.LastScannedAt = &now
	})
}

func (s *MemoryStorage) MarkPageFailed(ctx context.Context, pageID uuid.UUID, notes string) error {
	now := time.Now()
	return s.updatePage(pageID, func(p *Page) {
		p.Status = PageFailed
		p.Notes = &notes
		p.LastScannedAt = &now
	})
}

func (s *MemoryStorage) updatePage(pageID uuid.UUID, apply func(*Page)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.pages[pageID]
	if !ok {
		return ErrPageNotFound
	}
	apply(page)
	return nil
}

func (s *MemoryStorage) GetPage(ctx context.Context, pageID uuid.UUID) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page, ok := s.pages[pageID]
	if !ok {
		return nil, ErrPageNotFound
	}
	copied := *page
	return &copied, nil
}

func (s *MemoryStorage) ListPages(ctx context.Context, runID uuid.UUID) ([]Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pages []Page
	for _, p := range s.pages {
		if p.RunID == runID {
			pages = append(pages, *p)
		}
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].URL < pages[j].URL
	})
	return pages, nil
}

func (s *MemoryStorage) InsertMatches(ctx context.Context, matches []Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range matches {
		s.nextID++
		m.ID = s.nextID
		s.matches = append(s.matches, m)
	}
	return nil
}

func (s *MemoryStorage) ListMatches(ctx context.Context, pageID uuid.UUID) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Match
	for _, m := range s.matches {
		if m.PageID == pageID {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Position < matches[j].Position
	})
	return matches, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
