// Package enrich summarizes and scores items through the Gemini API.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/elonfeng/newspulse/pkg/source"
)

const analysisPrompt = `You are a news analyst. Summarize this news item in one sentence (at most 30 words) and rate its importance.

Title: %s
Source: %s

Respond with a JSON object: {"summary":"one-sentence summary","score":3}
score is 1-5, 5 being most important. Return ONLY the JSON, no other text.`

const (
	defaultModel   = "gemini-2.0-flash"
	defaultBaseURL = "https://generativelanguage.googleapis.com"

	maxSummaryLen = 100
)

// Result is the bounded outcome of analyzing one item. Importance is
// always within [0,5]; 0 marks failed or unset analysis.
type Result struct {
	Summary    string
	Importance int
}

// failedResult is the sentinel returned for any enrichment failure.
// Failures are per-item and never abort a batch.
func failedResult() Result {
	return Result{Summary: "analysis failed", Importance: 0}
}

// Client calls the Gemini generateContent endpoint, one request per item.
type Client struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewClient creates an enrichment client. The API key is injected here
// rather than read from the environment at call time.
func NewClient(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Config   geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// Enrich analyzes one item. The returned Result is always usable; the
// error, when non-nil, explains why the sentinel was returned.
func (c *Client) Enrich(ctx context.Context, item *source.Item) (Result, error) {
	if c.apiKey == "" {
		return failedResult(), fmt.Errorf("gemini api key not configured")
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: fmt.Sprintf(analysisPrompt, item.Title, item.SourceLabel)}},
		}},
		Config: geminiGenConfig{Temperature: 0.3, MaxOutputTokens: 256},
	}

	body, _ := json.Marshal(payload)
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failedResult(), fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return failedResult(), fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return failedResult(), fmt.Errorf("decode gemini response: %w", err)
	}

	if result.Error != nil {
		return failedResult(), fmt.Errorf("gemini: %s", result.Error.Message)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return failedResult(), fmt.Errorf("gemini: empty response")
	}

	return parseAnalysis(result.Candidates[0].Content.Parts[0].Text), nil
}

var (
	summaryRe = regexp.MustCompile(`"summary"\s*:\s*"([^"]+)"`)
	scoreRe   = regexp.MustCompile(`"score"\s*:\s*(\d+)`)
)

// parseAnalysis extracts summary and score from the model's text. It
// tries strict JSON first (after stripping markdown fences), then a
// regex pass over the raw text, then gives up with the sentinel.
func parseAnalysis(text string) Result {
	raw := strings.TrimSpace(text)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
			raw = raw[3+idx+1:]
		}
		if strings.HasSuffix(raw, "```") {
			raw = raw[:len(raw)-3]
		}
		raw = strings.TrimSpace(raw)
	}

	var parsed struct {
		Summary string   `json:"summary"`
		Score   *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil &&
		parsed.Summary != "" && parsed.Score != nil {
		return Result{
			Summary:    truncateSummary(parsed.Summary),
			Importance: clampScore(*parsed.Score),
		}
	}

	sm := summaryRe.FindStringSubmatch(text)
	sc := scoreRe.FindStringSubmatch(text)
	if sm != nil && sc != nil {
		n, _ := strconv.Atoi(sc[1])
		return Result{
			Summary:    truncateSummary(sm[1]),
			Importance: clampScore(float64(n)),
		}
	}

	return failedResult()
}

func clampScore(score float64) int {
	n := int(math.Round(score))
	if n < 0 {
		return 0
	}
	if n > 5 {
		return 5
	}
	return n
}

func truncateSummary(s string) string {
	runes := []rune(s)
	if len(runes) <= maxSummaryLen {
		return s
	}
	return string(runes[:maxSummaryLen])
}
