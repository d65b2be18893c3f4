package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devraulu/scannr/pkg/config"
	"github.com/devraulu/scannr/pkg/storage"
)

func newTestCrawler(store storage.Storage, maxPages int) *Crawler {
	cfg := config.Default()
	cfg.Crawler.Concurrency = 4
	cfg.Crawler.RequestTimeout = "5s"
	cfg.Crawler.MaxPagesPerRun = maxPages
	cfg.Crawler.SnippetContext = 20
	return New(cfg, store)
}

func serveHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, body)
}

func runCrawl(t *testing.T, store *storage.MemoryStorage, c *Crawler, domain string, keywords, excludes []string) *storage.Run {
	t.Helper()
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, domain, "test")
	require.NoError(t, err)

	c.Run(ctx, runID, domain, keywords, excludes)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	return run
}

func pageByURL(t *testing.T, pages []storage.Page, url string) storage.Page {
	t.Helper()
	for _, p := range pages {
		if p.URL == url {
			return p
		}
	}
	t.Fatalf("no page with url %q among %d pages", url, len(pages))
	return storage.Page{}
}

func TestRunScansAndMatches(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, `<body>
			<p>We are greenwashing our greenhouse gas report</p>
			<a href="/about">About</a>
			<a href="/report.pdf">Report</a>
			<a href="https://elsewhere.example.org/page">External</a>
		</body>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, `<p>nothing relevant on this page</p>`)
	})
	mux.HandleFunc("/report.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := storage.NewMemoryStorage()
	c := newTestCrawler(store, 50)

	run := runCrawl(t, store, c, server.URL, []string{"green*"}, nil)

	assert.Equal(t, storage.RunCompleted, run.Status)
	assert.Equal(t, 3, run.PagesFound, "cross-host link must not be followed")
	assert.Equal(t, 3, run.PagesScanned)
	assert.LessOrEqual(t, run.PagesScanned, run.PagesFound)
	assert.Equal(t, 0, run.ErrorCount, "non-HTML content type is not counted as an error")

	pages, err := store.ListPages(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	root := pageByURL(t, pages, server.URL)
	assert.Equal(t, storage.PageCompleted, root.Status)
	assert.Equal(t, 2, root.TotalHits)
	require.NotNil(t, root.KeywordsCSV)
	assert.Equal(t, "green*", *root.KeywordsCSV)

	about := pageByURL(t, pages, server.URL+"/about")
	assert.Equal(t, storage.PageCompleted, about.Status)
	assert.Equal(t, 0, about.TotalHits)
	assert.Nil(t, about.KeywordsCSV)

	pdf := pageByURL(t, pages, server.URL+"/report.pdf")
	assert.Equal(t, storage.PageFailed, pdf.Status)
	require.NotNil(t, pdf.Notes)
	assert.Equal(t, "Non-HTML content-type", *pdf.Notes)

	matches, err := store.ListMatches(context.Background(), root.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	text := "We are greenwashing our greenhouse gas report"
	assert.Equal(t, "greenwashing", matches[0].MatchedText)
	assert.Equal(t, 7, matches[0].Position)
	assert.Equal(t, "p", matches[0].Tag)
	assert.Equal(t, Snippet(text, 7, 20), matches[0].Snippet)

	assert.Equal(t, "greenhouse", matches[1].MatchedText)
	assert.Equal(t, 24, matches[1].Position)
	assert.Equal(t, Snippet(text, 24, 20), matches[1].Snippet)
}

func TestRunExcludedPageStillDiscoversLinks(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, `<a href="/private">Private</a>`)
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, `<p>solar power everywhere</p><a href="/next">Next</a>`)
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, `<p>solar panels</p>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := storage.NewMemoryStorage()
	c := newTestCrawler(store, 50)

	run := runCrawl(t, store, c, server.URL, []string{"solar"}, []string{"private"})

	assert.Equal(t, storage.RunCompleted, run.Status)

	pages, err := store.ListPages(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	private := pageByURL(t, pages, server.URL+"/private")
	assert.Equal(t, storage.PageSkipped, private.Status)
	require.NotNil(t, private.Notes)
	assert.Equal(t, "URL matched an exclude pattern", *private.Notes)
	assert.Equal(t, 0, private.TotalHits)

	matches, err := store.ListMatches(context.Background(), private.ID)
	require.NoError(t, err)
	assert.Empty(t, matches, "exclusion stops content scanning")

	// Link discovery still traverses through the excluded page.
	next := pageByURL(t, pages, server.URL+"/next")
	assert.Equal(t, storage.PageCompleted, next.Status)
	assert.Equal(t, 1, next.TotalHits)
}

func TestRunPageCeiling(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, `<body>
			<a href="/p1">1</a><a href="/p2">2</a><a href="/p3">3</a>
			<a href="/p4">4</a><a href="/p5">5</a>
		</body>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := storage.NewMemoryStorage()
	c := newTestCrawler(store, 1)

	run := runCrawl(t, store, c, server.URL, []string{"anything"}, nil)

	assert.Equal(t, storage.RunCompleted, run.Status)
	assert.Equal(t, 1, run.PagesFound)
	assert.Equal(t, 1, run.PagesScanned)

	pages, err := store.ListPages(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1, "remaining frontier entries are never processed")
	assert.Equal(t, storage.PageCompleted, pages[0].Status)
}

func TestRunHTTPErrorCounted(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, `<a href="/missing">Missing</a>`)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := storage.NewMemoryStorage()
	c := newTestCrawler(store, 50)

	run := runCrawl(t, store, c, server.URL, []string{"solar"}, nil)

	assert.Equal(t, storage.RunCompleted, run.Status)
	assert.Equal(t, 2, run.PagesFound)
	assert.Equal(t, 2, run.PagesScanned)
	assert.Equal(t, 1, run.ErrorCount)

	pages, err := store.ListPages(context.Background(), run.ID)
	require.NoError(t, err)

	missing := pageByURL(t, pages, server.URL+"/missing")
	assert.Equal(t, storage.PageFailed, missing.Status)
	require.NotNil(t, missing.Notes)
	assert.Equal(t, "HTTP 404", *missing.Notes)
}

func TestRunTransportErrorCounted(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	store := storage.NewMemoryStorage()
	c := newTestCrawler(store, 50)

	run := runCrawl(t, store, c, url, []string{"solar"}, nil)

	assert.Equal(t, storage.RunCompleted, run.Status, "a failed page does not fail the run")
	assert.Equal(t, 1, run.PagesFound)
	assert.Equal(t, 1, run.PagesScanned)
	assert.Equal(t, 1, run.ErrorCount)

	pages, err := store.ListPages(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, storage.PageFailed, pages[0].Status)
	require.NotNil(t, pages[0].Notes)
	assert.Equal(t, "Request error: connection", *pages[0].Notes)
}

func TestRunLinkCyclesVisitedOnce(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, `<a href="/a">A</a><a href="/a">A again</a>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, `<a href="/">Home</a><a href="/a#section">Self</a>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := storage.NewMemoryStorage()
	c := newTestCrawler(store, 50)

	run := runCrawl(t, store, c, server.URL, []string{"solar"}, nil)

	assert.Equal(t, storage.RunCompleted, run.Status)
	assert.Equal(t, 2, run.PagesFound)
	assert.Equal(t, 2, run.PagesScanned)

	pages, err := store.ListPages(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestRunInvalidRegexFailsRun(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStorage()
	c := newTestCrawler(store, 50)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "example.com", "test")
	require.NoError(t, err)

	c.Run(ctx, runID, "example.com", []string{"/[broken/"}, nil)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunFailed, run.Status)
	assert.Equal(t, 0, run.PagesFound)
}

func TestSeedTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		domain   string
		wantSeed string
		wantHost string
	}{
		{name: "bare domain", domain: "example.com", wantSeed: "https://example.com", wantHost: "example.com"},
		{name: "explicit https port stripped", domain: "https://example.com:443/", wantSeed: "https://example.com", wantHost: "example.com"},
		{name: "explicit http port stripped", domain: "http://example.com:80", wantSeed: "http://example.com", wantHost: "example.com"},
		{name: "non-default port kept", domain: "http://example.com:8081", wantSeed: "http://example.com:8081", wantHost: "example.com:8081"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			seed, host, err := seedTarget(tt.domain)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSeed, seed)
			assert.Equal(t, tt.wantHost, host)

			// Normalized links must compare equal to the seed host,
			// whatever port spelling the seed arrived with.
			assert.True(t, sameHost(seed+"/page", host))
		})
	}
}

func TestRunUnknownRunIDDoesNothing(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStorage()
	c := newTestCrawler(store, 50)

	// StartRun fails, so the crawl never begins.
	c.Run(context.Background(), uuid.New(), "example.com", []string{"solar"}, nil)

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}
