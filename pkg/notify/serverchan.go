// Package notify pushes item batches to the ServerChan WeChat channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/elonfeng/newspulse/pkg/source"
)

const defaultBaseURL = "https://sctapi.ftqq.com"

// Client sends markdown pushes through the ServerChan API.
type Client struct {
	client  *http.Client
	key     string
	baseURL string
	now     func() time.Time
}

// NewClient creates a notification client. The channel key is injected
// configuration; an empty key makes every Notify call fail without a
// network attempt.
func NewClient(key, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		key:     key,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// Notify partitions items by source type and sends the urgent batch
// first, then the normal batch, as independent requests. The normal
// batch is attempted even when the urgent one fails; the returned error
// aggregates all failed batches. Empty partitions are skipped.
func (c *Client) Notify(ctx context.Context, items []source.Item) error {
	if c.key == "" {
		return fmt.Errorf("serverchan key not configured")
	}
	if len(items) == 0 {
		return nil
	}

	var urgent, normal []source.Item
	for _, item := range items {
		if item.Tag != nil && item.Tag.Type == source.TypeUrgent {
			urgent = append(urgent, item)
		} else {
			normal = append(normal, item)
		}
	}

	var errs []error
	if len(urgent) > 0 {
		if err := c.send(ctx, urgent, true); err != nil {
			errs = append(errs, fmt.Errorf("urgent batch: %w", err))
		}
	}
	if len(normal) > 0 {
		if err := c.send(ctx, normal, false); err != nil {
			errs = append(errs, fmt.Errorf("normal batch: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Client) send(ctx context.Context, items []source.Item, urgent bool) error {
	payload := map[string]string{
		"title": renderTitle(items, urgent),
		"desp":  renderBody(items, urgent, c.now()),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s.send", c.baseURL, c.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode push response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("serverchan code %d: %s", result.Code, result.Message)
	}
	return nil
}

func renderTitle(items []source.Item, urgent bool) string {
	emoji, label := "📰", "Daily News"
	if urgent {
		emoji, label = "🚨", "Urgent News"
	}

	tagName := "untagged"
	if items[0].Tag != nil && items[0].Tag.Name != "" {
		tagName = items[0].Tag.Name
	}

	return fmt.Sprintf("%s %s [%s] - %d items", emoji, label, tagName, len(items))
}

func renderBody(items []source.Item, urgent bool, now time.Time) string {
	var lines []string

	if urgent {
		lines = append(lines, "## 🚨 Urgent News")
	} else {
		lines = append(lines, "## 📰 Daily Digest")
	}
	lines = append(lines, "", fmt.Sprintf("%d items", len(items)), "", "---", "")

	// Highest importance first; ties keep input order.
	sorted := make([]source.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Importance > sorted[j].Importance
	})

	for i, item := range sorted {
		stars := strings.Repeat("⭐", item.Importance)
		lines = append(lines,
			fmt.Sprintf("### %d. %s (%s)", i+1, item.Title, stars),
			"",
			fmt.Sprintf("**Summary:** %s", item.Summary),
			"",
			fmt.Sprintf("**Source:** %s", item.SourceLabel),
			fmt.Sprintf("**Time:** %s", item.PublishedAt.Local().Format("2006-01-02 15:04")),
			"",
			fmt.Sprintf("🔗 [Read more](%s)", item.URL),
			"",
			"---",
			"",
		)
	}

	lines = append(lines, fmt.Sprintf("> Pushed at: %s", now.Local().Format("2006-01-02 15:04:05")))
	return strings.Join(lines, "\n")
}
