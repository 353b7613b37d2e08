package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	// fallbackURL stands in for items that carry no usable link. Dedup
	// identity is the URL, so it must never be empty.
	fallbackURL = "https://www.inoreader.com"

	defaultMaxItems = 10
	maxBodyBytes    = 10 << 20
)

// Client fetches and normalizes items from a feed endpoint. Endpoints
// usually serve the aggregation service's JSON feed; plain RSS/Atom
// bodies are parsed too.
type Client struct {
	client *http.Client
	parser *gofeed.Parser
	now    func() time.Time
}

// NewClient creates a feed client with a 30s request timeout.
func NewClient() *Client {
	return &Client{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		now:    time.Now,
	}
}

// Fetch performs one GET against src and returns up to maxItems
// normalized items in feed order. Transport and parse failures are
// returned to the caller; a failing source yields no items but must not
// abort the run.
func (c *Client) Fetch(ctx context.Context, src Source, maxItems int) ([]Item, error) {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", src.Name, err)
	}
	req.Header.Set("User-Agent", "newspulse/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", src.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s status %d", src.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", src.Name, err)
	}

	var items []Item
	if isXML(body) {
		items, err = c.parseXML(body, src)
	} else {
		items, err = c.parseJSON(body, src)
	}
	if err != nil {
		return nil, err
	}

	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

func isXML(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n\xef\xbb\xbf")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// jsonFeed mirrors the aggregation service's JSON feed envelope.
type jsonFeed struct {
	Items []rawItem `json:"items"`
}

type rawItem struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	URL           string          `json:"url"`
	Canonical     []linkRef       `json:"canonical"`
	Alternate     []linkRef       `json:"alternate"`
	SourceTag     string          `json:"_source"`
	Author        json.RawMessage `json:"author"`
	DatePublished string          `json:"date_published"`
	Published     int64           `json:"published"`
}

type linkRef struct {
	Href string `json:"href"`
}

func (c *Client) parseJSON(body []byte, src Source) ([]Item, error) {
	var feed jsonFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", src.Name, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for i := range feed.Items {
		items = append(items, c.normalize(&feed.Items[i], src))
	}
	return items, nil
}

// normalize maps one raw record to an Item. It always produces a valid
// Item: every field has a fallback.
func (c *Client) normalize(raw *rawItem, src Source) Item {
	url := raw.URL
	if url == "" && len(raw.Canonical) > 0 {
		url = raw.Canonical[0].Href
	}
	if url == "" && len(raw.Alternate) > 0 {
		url = raw.Alternate[0].Href
	}
	if url == "" {
		url = fallbackURL
	}

	label := "Unknown"
	if raw.SourceTag != "" {
		label = raw.SourceTag
	} else if name := authorName(raw.Author); name != "" {
		label = name
	}

	published := c.now().UTC()
	if raw.DatePublished != "" {
		if t, err := time.Parse(time.RFC3339, raw.DatePublished); err == nil {
			published = t.UTC()
		}
	} else if raw.Published > 0 {
		published = time.Unix(raw.Published, 0).UTC()
	}

	title := raw.Title
	if title == "" {
		title = "Untitled"
	}

	tag := src
	return Item{
		ID:          raw.ID,
		Title:       title,
		URL:         url,
		SourceLabel: label,
		PublishedAt: published,
		Tag:         &tag,
	}
}

// authorName handles the feed's two author encodings: an object with a
// name field, or a bare string.
func authorName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return obj.Name
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func (c *Client) parseXML(body []byte, src Source) ([]Item, error) {
	parsed, err := c.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.Name, err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		url := entry.Link
		if url == "" && len(entry.Links) > 0 {
			url = entry.Links[0]
		}
		if url == "" {
			url = fallbackURL
		}

		label := "Unknown"
		if entry.Author != nil && entry.Author.Name != "" {
			label = entry.Author.Name
		} else if parsed.Title != "" {
			label = parsed.Title
		}

		published := c.now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		title := entry.Title
		if title == "" {
			title = "Untitled"
		}

		tag := src
		items = append(items, Item{
			ID:          entry.GUID,
			Title:       title,
			URL:         url,
			SourceLabel: label,
			PublishedAt: published,
			Tag:         &tag,
		})
	}
	return items, nil
}
