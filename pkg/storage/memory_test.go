package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertPageConflictIsNoOp(t *testing.T) {
	t.Parallel()

	s := NewMemoryStorage()
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "example.com", "test")
	require.NoError(t, err)

	id1, inserted, err := s.InsertPage(ctx, runID, "https://Example.com/a/", "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same normalized URL, different discovered form.
	id2, inserted, err := s.InsertPage(ctx, runID, "https://example.com/a#top", "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NotEqual(t, id1, id2)

	pages, err := s.ListPages(ctx, runID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "https://Example.com/a/", pages[0].URL)
}

func TestInsertPageDistinctPerRun(t *testing.T) {
	t.Parallel()

	s := NewMemoryStorage()
	ctx := context.Background()

	run1, err := s.CreateRun(ctx, "example.com", "test")
	require.NoError(t, err)
	run2, err := s.CreateRun(ctx, "example.com", "test")
	require.NoError(t, err)

	_, inserted, err := s.InsertPage(ctx, run1, "https://example.com/a", "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, inserted)

	// The uniqueness key is (run, normalized URL), not the URL alone.
	_, inserted, err = s.InsertPage(ctx, run2, "https://example.com/a", "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestRunLifecycleAndCounters(t *testing.T) {
	t.Parallel()

	s := NewMemoryStorage()
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "example.com", "cli")
	require.NoError(t, err)

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunPending, run.Status)
	assert.Nil(t, run.StartedAt)

	require.NoError(t, s.StartRun(ctx, runID))
	require.NoError(t, s.IncrementPagesFound(ctx, runID))
	require.NoError(t, s.IncrementPagesScanned(ctx, runID))
	require.NoError(t, s.IncrementErrorCount(ctx, runID))
	require.NoError(t, s.FinishRun(ctx, runID, true))

	run, err = s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, run.Status)
	assert.NotNil(t, run.StartedAt)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, 1, run.PagesFound)
	assert.Equal(t, 1, run.PagesScanned)
	assert.Equal(t, 1, run.ErrorCount)
}

func TestMatchesOrderedByPosition(t *testing.T) {
	t.Parallel()

	s := NewMemoryStorage()
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "example.com", "test")
	require.NoError(t, err)
	pageID, _, err := s.InsertPage(ctx, runID, "https://example.com", "https://example.com")
	require.NoError(t, err)

	require.NoError(t, s.InsertMatches(ctx, []Match{
		{PageID: pageID, Keyword: "b", MatchedText: "b", Tag: "p", Position: 42},
		{PageID: pageID, Keyword: "a", MatchedText: "a", Tag: "h1", Position: 3},
	}))

	matches, err := s.ListMatches(ctx, pageID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 3, matches[0].Position)
	assert.Equal(t, 42, matches[1].Position)
	assert.NotZero(t, matches[0].ID)
}
