package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func testClient() *Client {
	c := NewClient()
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestNormalizeURLResolution(t *testing.T) {
	tests := []struct {
		name string
		raw  rawItem
		want string
	}{
		{
			name: "explicit url wins",
			raw:  rawItem{URL: "https://a.example/1", Canonical: []linkRef{{Href: "https://b.example/1"}}},
			want: "https://a.example/1",
		},
		{
			name: "canonical before alternate",
			raw:  rawItem{Canonical: []linkRef{{Href: "https://b.example/1"}}, Alternate: []linkRef{{Href: "https://c.example/1"}}},
			want: "https://b.example/1",
		},
		{
			name: "alternate as last resort",
			raw:  rawItem{Alternate: []linkRef{{Href: "https://c.example/1"}}},
			want: "https://c.example/1",
		},
		{
			name: "placeholder when nothing present",
			raw:  rawItem{},
			want: fallbackURL,
		},
	}

	c := testClient()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := c.normalize(&tt.raw, Source{Name: "ai"})
			assert.Equal(t, tt.want, item.URL)
			assert.NotEmpty(t, item.URL)
		})
	}
}

func TestNormalizeSourceLabel(t *testing.T) {
	tests := []struct {
		name string
		raw  rawItem
		want string
	}{
		{
			name: "source tag wins",
			raw:  rawItem{SourceTag: "Reuters", Author: json.RawMessage(`{"name":"Jo"}`)},
			want: "Reuters",
		},
		{
			name: "author object name",
			raw:  rawItem{Author: json.RawMessage(`{"name":"Jo"}`)},
			want: "Jo",
		},
		{
			name: "author plain string",
			raw:  rawItem{Author: json.RawMessage(`"wire desk"`)},
			want: "wire desk",
		},
		{
			name: "unknown fallback",
			raw:  rawItem{},
			want: "Unknown",
		},
	}

	c := testClient()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.normalize(&tt.raw, Source{}).SourceLabel)
		})
	}
}

func TestNormalizePublishedAt(t *testing.T) {
	c := testClient()

	item := c.normalize(&rawItem{DatePublished: "2026-03-01T12:00:00Z"}, Source{})
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), item.PublishedAt)

	item = c.normalize(&rawItem{Published: 1767225600}, Source{})
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), item.PublishedAt)

	item = c.normalize(&rawItem{}, Source{})
	assert.Equal(t, fixedNow, item.PublishedAt)
}

func TestNormalizeTitleAndTag(t *testing.T) {
	c := testClient()
	src := Source{Name: "ai", Type: TypeUrgent}

	item := c.normalize(&rawItem{}, src)
	assert.Equal(t, "Untitled", item.Title)
	require.NotNil(t, item.Tag)
	assert.Equal(t, "ai", item.Tag.Name)
	assert.Equal(t, TypeUrgent, item.Tag.Type)
}

func TestFetchTruncatesToMaxItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var items []map[string]any
		for i := 0; i < 25; i++ {
			items = append(items, map[string]any{
				"id":    fmt.Sprintf("item-%d", i),
				"title": fmt.Sprintf("Item %d", i),
				"url":   fmt.Sprintf("https://example.com/%d", i),
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	defer srv.Close()

	c := testClient()
	items, err := c.Fetch(context.Background(), Source{Name: "ai", URL: srv.URL}, 10)
	require.NoError(t, err)
	require.Len(t, items, 10)
	// Head of the feed, source order preserved.
	assert.Equal(t, "Item 0", items[0].Title)
	assert.Equal(t, "Item 9", items[9].Title)
}

func TestFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient()

	_, err := c.Fetch(context.Background(), Source{Name: "ai", URL: srv.URL}, 10)
	assert.Error(t, err)

	_, err = c.Fetch(context.Background(), Source{Name: "ai", URL: "http://127.0.0.1:1"}, 10)
	assert.Error(t, err)
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{not json")
	}))
	defer srv.Close()

	c := testClient()
	_, err := c.Fetch(context.Background(), Source{Name: "ai", URL: srv.URL}, 10)
	assert.Error(t, err)
}

func TestFetchRSSBody(t *testing.T) {
	const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Wire</title>
    <item>
      <title>Breaking thing</title>
      <link>https://example.com/breaking</link>
      <guid>guid-1</guid>
      <pubDate>Sun, 01 Mar 2026 12:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rss)
	}))
	defer srv.Close()

	c := testClient()
	items, err := c.Fetch(context.Background(), Source{Name: "wire", URL: srv.URL}, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Breaking thing", items[0].Title)
	assert.Equal(t, "https://example.com/breaking", items[0].URL)
	assert.Equal(t, "Example Wire", items[0].SourceLabel)
}
