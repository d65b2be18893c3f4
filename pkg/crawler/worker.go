package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"

	frontier "github.com/devraulu/scannr/pkg"
	"github.com/devraulu/scannr/pkg/extract"
	"github.com/devraulu/scannr/pkg/rules"
	"github.com/devraulu/scannr/pkg/storage"
)

// scanPage runs the full per-page pipeline for one URL: register, fetch,
// extract links, check exclusion, segment, match, persist. It returns the
// links discovered on the page. Every fault is contained here; the page ends
// in exactly one terminal status and nothing propagates to the orchestrator.
func (c *Crawler) scanPage(ctx context.Context, runID uuid.UUID, cand frontier.Candidate, keywordRules, excludeRules []rules.Rule) (links []string) {
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer c.gate.Release(1)

	pageID, inserted, err := c.store.InsertPage(ctx, runID, cand.Original, cand.Normalized)
	if err != nil {
		slog.Error("failed to register page", "url", cand.Original, "err", err)
		return nil
	}
	if !inserted {
		// Duplicate - already queued or processed within this run.
		return nil
	}

	if err := c.store.IncrementPagesFound(ctx, runID); err != nil {
		slog.Error("failed to increment pages_found", "run_id", runID, "err", err)
	}
	if err := c.store.MarkPageScanning(ctx, pageID); err != nil {
		slog.Error("failed to mark page scanning", "page_id", pageID, "err", err)
	}

	// Last line of defense: anything unexpected during parsing or matching
	// fails the page, not the batch.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("unexpected error scanning page", "url", cand.Original, "panic", r)
			c.failPage(ctx, runID, pageID, truncateNotes(fmt.Sprint(r)))
			links = nil
		}
	}()

	resp, err := c.fetch(ctx, cand.Original)
	if err != nil {
		slog.Warn("request error", "url", cand.Original, "err", err)
		c.failPage(ctx, runID, pageID, "Request error: "+transportCategory(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		notes := fmt.Sprintf("HTTP %d", resp.StatusCode)
		slog.Warn("http error", "url", cand.Original, "notes", notes)
		c.failPage(ctx, runID, pageID, notes)
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "html") {
		// Not a fault, just nothing to scan: the error counter stays put.
		if err := c.store.MarkPageFailed(ctx, pageID, "Non-HTML content-type"); err != nil {
			slog.Error("failed to mark page failed", "page_id", pageID, "err", err)
		}
		c.incrementScanned(ctx, runID)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("request error", "url", cand.Original, "err", err)
		c.failPage(ctx, runID, pageID, "Request error: "+transportCategory(err))
		return nil
	}

	// Link extraction happens before the exclusion check: excluded pages
	// stop content scanning, not link discovery.
	links, err = extract.Links(bytes.NewReader(body), cand.Original)
	if err != nil {
		c.failPage(ctx, runID, pageID, truncateNotes(err.Error()))
		return nil
	}

	if len(excludeRules) > 0 {
		if u, err := url.Parse(cand.Original); err == nil && rules.AnyMatch(u.Path, excludeRules) {
			if err := c.store.MarkPageSkipped(ctx, pageID, "URL matched an exclude pattern"); err != nil {
				slog.Error("failed to mark page skipped", "page_id", pageID, "err", err)
			}
			c.incrementScanned(ctx, runID)
			return links
		}
	}

	segments, err := extract.Segments(bytes.NewReader(body))
	if err != nil {
		c.failPage(ctx, runID, pageID, truncateNotes(err.Error()))
		return nil
	}

	var allMatches []storage.Match
	hitKeywords := make(map[string]bool)

	for _, seg := range segments {
		for _, m := range rules.FindAll(seg.Text, keywordRules) {
			allMatches = append(allMatches, storage.Match{
				PageID:      pageID,
				Keyword:     m.Keyword,
				MatchedText: m.MatchedText,
				Tag:         seg.Tag,
				Position:    seg.Offset + m.Position,
				Snippet:     Snippet(seg.Text, m.Position, c.cfg.Crawler.SnippetContext),
			})
			hitKeywords[m.Keyword] = true
		}
	}

	if err := c.store.InsertMatches(ctx, allMatches); err != nil {
		c.failPage(ctx, runID, pageID, truncateNotes(err.Error()))
		return nil
	}

	var keywordsCSV *string
	if len(hitKeywords) > 0 {
		keywords := make([]string, 0, len(hitKeywords))
		for k := range hitKeywords {
			keywords = append(keywords, k)
		}
		sort.Strings(keywords)
		joined := strings.Join(keywords, ",")
		keywordsCSV = &joined
	}

	if err := c.store.MarkPageCompleted(ctx, pageID, len(allMatches), keywordsCSV); err != nil {
		slog.Error("failed to mark page completed", "page_id", pageID, "err", err)
	}
	c.incrementScanned(ctx, runID)

	slog.Debug("scanned page",
		"url", cand.Original,
		"matches", len(allMatches),
		"keywords", len(hitKeywords),
	)
	return links
}

func (c *Crawler) fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", userAgent)

	return c.client.Do(req)
}

// failPage marks the page failed and bumps both the error and scanned
// counters, the shared tail of every counted failure path.
func (c *Crawler) failPage(ctx context.Context, runID, pageID uuid.UUID, notes string) {
	if err := c.store.MarkPageFailed(ctx, pageID, notes); err != nil {
		slog.Error("failed to mark page failed", "page_id", pageID, "err", err)
	}
	if err := c.store.IncrementErrorCount(ctx, runID); err != nil {
		slog.Error("failed to increment error_count", "run_id", runID, "err", err)
	}
	c.incrementScanned(ctx, runID)
}

func (c *Crawler) incrementScanned(ctx context.Context, runID uuid.UUID) {
	if err := c.store.IncrementPagesScanned(ctx, runID); err != nil {
		slog.Error("failed to increment pages_scanned", "run_id", runID, "err", err)
	}
}

// transportCategory maps a fetch error to the coarse category recorded in
// the page's notes.
func transportCategory(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	return "connection"
}

func truncateNotes(s string) string {
	const max = 200
	if len(s) > max {
		return s[:max]
	}
	return s
}
