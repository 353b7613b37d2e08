package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/newspulse/pkg/source"
)

func testItems() []source.Item {
	tag := source.Source{Name: "ai", Type: source.TypeUrgent}
	return []source.Item{
		{Title: "One", URL: "https://example.com/1", Summary: "s1", Importance: 4, Tag: &tag},
		{Title: "Two", URL: "https://example.com/2", Summary: "s2", Importance: 2, Tag: &tag},
	}
}

func TestPathFor(t *testing.T) {
	s := New("/data")
	day := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("/data", "news_2026-03-14.db"), s.PathFor(day))
}

func TestAppendAndExistingURLs(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	path := s.PathFor(time.Now())

	require.NoError(t, s.Append(ctx, path, testItems()))

	urls := s.ExistingURLs(ctx, path)
	assert.True(t, urls["https://example.com/1"])
	assert.True(t, urls["https://example.com/2"])
	assert.Len(t, urls, 2)

	rows, err := s.Rows(ctx, path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "One", rows[0].Title)
	assert.Equal(t, "ai", rows[0].Tag)
	assert.Equal(t, "urgent", rows[0].Type)
	assert.Equal(t, 4, rows[0].Score)
	assert.False(t, rows[0].CreatedAt.IsZero())
}

func TestAppendCreatesParentDir(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s := New(dir)
	path := s.PathFor(time.Now())

	require.NoError(t, s.Append(ctx, path, testItems()))
	assert.FileExists(t, path)
}

func TestAppendAccumulates(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	path := s.PathFor(time.Now())

	require.NoError(t, s.Append(ctx, path, testItems()))
	tag := source.Source{Name: "tech", Type: source.TypeNormal}
	require.NoError(t, s.Append(ctx, path, []source.Item{
		{Title: "Three", URL: "https://example.com/3", Tag: &tag},
	}))

	rows, err := s.Rows(ctx, path)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExistingURLsMissingFile(t *testing.T) {
	s := New(t.TempDir())
	urls := s.ExistingURLs(context.Background(), s.PathFor(time.Now()))
	assert.Empty(t, urls)
}

func TestExistingURLsCorruptFile(t *testing.T) {
	s := New(t.TempDir())
	path := s.PathFor(time.Now())
	require.NoError(t, os.WriteFile(path, []byte("this is not a database"), 0o644))

	urls := s.ExistingURLs(context.Background(), path)
	assert.Empty(t, urls, "corrupt file reads as empty, not fatal")
}

func TestAppendCorruptFileIsError(t *testing.T) {
	s := New(t.TempDir())
	path := s.PathFor(time.Now())
	require.NoError(t, os.WriteFile(path, []byte("this is not a database"), 0o644))

	err := s.Append(context.Background(), path, testItems())
	assert.Error(t, err, "write failure must propagate")
}
