package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	frontier "github.com/devraulu/scannr/pkg"
	"github.com/devraulu/scannr/pkg/config"
	"github.com/devraulu/scannr/pkg/extract"
	"github.com/devraulu/scannr/pkg/rules"
	"github.com/devraulu/scannr/pkg/storage"
)

const userAgent = "scannr/1.0 (+https://github.com/devraulu/scannr)"

const maxRedirects = 5

// Crawler drives keyword-audit runs: a breadth-first crawl of one domain
// where every HTML page is segmented and scanned against the run's compiled
// keyword rules. A single Crawler is shared by all runs; per-run state lives
// on the stack of Run.
type Crawler struct {
	cfg    *config.Config
	store  storage.Storage
	client *http.Client
	gate   *semaphore.Weighted
}

func New(cfg *config.Config, store storage.Storage) *Crawler {
	client := &http.Client{
		Timeout: cfg.Crawler.GetRequestTimeout(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &Crawler{
		cfg:    cfg,
		store:  store,
		client: client,
		gate:   semaphore.NewWeighted(int64(cfg.Crawler.Concurrency)),
	}
}

// Run executes one crawl to completion. The run must exist in status
// 'pending'; Run moves it to 'running' and finally to exactly one of
// 'completed' or 'failed'. Per-page faults never fail the run; they are
// recorded on the page and in the run's error counter.
func (c *Crawler) Run(ctx context.Context, runID uuid.UUID, domain string, keywords, excludes []string) {
	slog.Info("crawl run starting", "run_id", runID, "domain", domain)

	if err := c.store.StartRun(ctx, runID); err != nil {
		slog.Error("failed to start run", "run_id", runID, "err", err)
		return
	}

	visited, err := c.crawl(ctx, runID, domain, keywords, excludes)
	if err != nil {
		slog.Error("crawl run failed at orchestrator level", "run_id", runID, "err", err)
		if ferr := c.store.FinishRun(ctx, runID, false); ferr != nil {
			slog.Error("failed to finish run", "run_id", runID, "err", ferr)
		}
		return
	}

	if err := c.store.FinishRun(ctx, runID, true); err != nil {
		slog.Error("failed to finish run", "run_id", runID, "err", err)
		return
	}
	slog.Info("crawl run completed", "run_id", runID, "pages_visited", visited)
}

func (c *Crawler) crawl(ctx context.Context, runID uuid.UUID, domain string, keywords, excludes []string) (int, error) {
	normSeed, host, err := seedTarget(domain)
	if err != nil {
		return 0, err
	}

	keywordRules, err := rules.CompileAll(keywords)
	if err != nil {
		return 0, fmt.Errorf("compile keywords: %w", err)
	}
	excludeRules, err := rules.CompileAll(excludes)
	if err != nil {
		return 0, fmt.Errorf("compile excludes: %w", err)
	}

	f := frontier.NewFrontier()
	f.Push(normSeed, normSeed)

	for f.Len() > 0 {
		if f.VisitedCount() >= c.cfg.Crawler.MaxPagesPerRun {
			slog.Info("run reached max_pages_per_run, stopping",
				"run_id", runID,
				"max_pages_per_run", c.cfg.Crawler.MaxPagesPerRun,
				"queued", f.Len(),
			)
			break
		}

		batch := f.PopBatch(c.cfg.Crawler.Concurrency)
		if len(batch) == 0 {
			continue
		}

		// One goroutine per URL; the fetch gate inside scanPage bounds
		// true concurrency independently of the batch size.
		results := make([][]string, len(batch))
		var wg sync.WaitGroup
		for i, cand := range batch {
			wg.Add(1)
			go func(i int, cand frontier.Candidate) {
				defer wg.Done()
				results[i] = c.scanPage(ctx, runID, cand, keywordRules, excludeRules)
			}(i, cand)
		}
		wg.Wait()

		for _, links := range results {
			for _, link := range links {
				norm, err := extract.Normalize(link)
				if err != nil {
					slog.Warn("couldn't normalize link", "url", link, "err", err)
					continue
				}
				if sameHost(norm, host) {
					f.Push(norm, link)
				}
			}
		}
	}

	return f.VisitedCount(), nil
}

// seedTarget turns the run's domain into the normalized seed URL and the
// host all discovered links are compared against. The host comes from the
// normalized form, so an explicit default port in the input (":443", ":80")
// is stripped the same way normalization strips it from every link.
func seedTarget(domain string) (normSeed, host string, err error) {
	seed := domain
	if !strings.HasPrefix(seed, "http://") && !strings.HasPrefix(seed, "https://") {
		seed = "https://" + seed
	}

	normSeed, err = extract.Normalize(seed)
	if err != nil {
		return "", "", fmt.Errorf("normalize seed %q: %w", seed, err)
	}
	seedURL, err := url.Parse(normSeed)
	if err != nil {
		return "", "", fmt.Errorf("bad seed url %q: %w", normSeed, err)
	}
	return normSeed, seedURL.Host, nil
}

func sameHost(link, host string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, host)
}
