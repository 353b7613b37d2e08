// Package pipeline sequences one batch run: fetch, dedupe, enrich,
// notify, persist, stats, retention.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/elonfeng/newspulse/internal/store"
	"github.com/elonfeng/newspulse/pkg/enrich"
	"github.com/elonfeng/newspulse/pkg/source"
)

// Fetcher pulls normalized items from one source.
type Fetcher interface {
	Fetch(ctx context.Context, src source.Source, maxItems int) ([]source.Item, error)
}

// Enricher scores and summarizes one item. The Result is always usable
// even when the error is non-nil.
type Enricher interface {
	Enrich(ctx context.Context, item *source.Item) (enrich.Result, error)
}

// Notifier delivers a batch of items to the push channel.
type Notifier interface {
	Notify(ctx context.Context, items []source.Item) error
}

// PeriodStore is the day-keyed tabular store.
type PeriodStore interface {
	PathFor(day time.Time) string
	ExistingURLs(ctx context.Context, path string) map[string]bool
	Append(ctx context.Context, path string, items []source.Item) error
}

// Deps wires the external collaborators into the pipeline.
type Deps struct {
	Fetcher  Fetcher
	Enricher Enricher
	Notifier Notifier
	Store    PeriodStore
}

// Options carries run parameters resolved from configuration.
type Options struct {
	MaxItems       int
	FetchInterval  time.Duration
	EnrichInterval time.Duration
	StatsPath      string
	DataDir        string
	RetentionDays  int
}

// Report summarizes one completed run.
type Report struct {
	Sources   int
	Fetched   int
	NewItems  int
	Urgent    int
	Pushed    bool
	Deleted   []string
	Duration  time.Duration
	SkipCount int // failed sources
}

// Pipeline is the run orchestrator. One instance performs one run;
// everything is sequential, paced between external calls.
type Pipeline struct {
	deps    Deps
	sources []source.Source
	opts    Options
	now     func() time.Time
}

// New creates a pipeline over an already type-filtered source list.
func New(deps Deps, sources []source.Source, opts Options) *Pipeline {
	if opts.MaxItems <= 0 {
		opts.MaxItems = 10
	}
	if opts.FetchInterval <= 0 {
		opts.FetchInterval = time.Second
	}
	if opts.EnrichInterval <= 0 {
		opts.EnrichInterval = 3 * time.Second
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 7
	}
	return &Pipeline{
		deps:    deps,
		sources: sources,
		opts:    opts,
		now:     time.Now,
	}
}

// Run executes the full stage sequence. Per-source fetch failures,
// per-item enrichment failures, and notification failures are logged and
// absorbed; only configuration and period-store write failures are
// returned, aborting the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := p.now()
	report := &Report{Sources: len(p.sources)}

	if len(p.sources) == 0 {
		fmt.Fprintln(os.Stderr, "no sources to process")
		return report, nil
	}

	periodPath := p.deps.Store.PathFor(start)
	existing := p.deps.Store.ExistingURLs(ctx, periodPath)
	fmt.Fprintf(os.Stderr, "dedup index: %d known urls\n", len(existing))

	newItems, err := p.fetchAll(ctx, existing, report)
	if err != nil {
		return report, err
	}
	report.NewItems = len(newItems)
	fmt.Fprintf(os.Stderr, "new items: %d\n", len(newItems))

	if len(newItems) == 0 {
		// Nothing to enrich, push, or persist. Still prune old files.
		p.sweep(report)
		report.Duration = p.now().Sub(start)
		return report, nil
	}

	if err := p.enrichAll(ctx, newItems); err != nil {
		return report, err
	}

	urgent := filterUrgent(newItems)
	report.Urgent = len(urgent)
	if len(urgent) > 0 {
		if err := p.deps.Notifier.Notify(ctx, urgent); err != nil {
			fmt.Fprintf(os.Stderr, "  push failed: %v\n", err)
		} else {
			report.Pushed = true
			fmt.Fprintf(os.Stderr, "  pushed %d urgent items\n", len(urgent))
		}
	}

	if err := p.deps.Store.Append(ctx, periodPath, newItems); err != nil {
		return report, fmt.Errorf("persist items: %w", err)
	}
	fmt.Fprintf(os.Stderr, "appended %d rows to %s\n", len(newItems), periodPath)

	stats, err := store.MergeStats(p.opts.StatsPath, len(urgent), len(newItems)-len(urgent), start)
	if err != nil {
		return report, fmt.Errorf("update stats: %w", err)
	}
	fmt.Fprintf(os.Stderr, "stats: total=%d urgent=%d normal=%d\n", stats.Total, stats.Urgent, stats.Normal)

	p.sweep(report)

	report.Duration = p.now().Sub(start)
	return report, nil
}

// fetchAll visits every source in order, paced, and returns the items
// not present in the dedup index. The index is loaded once before the
// run and not consulted against the run's own batch: the same URL under
// two sources in one run is intentional fan-out.
func (p *Pipeline) fetchAll(ctx context.Context, existing map[string]bool, report *Report) ([]source.Item, error) {
	limiter := rate.NewLimiter(rate.Every(p.opts.FetchInterval), 1)

	var newItems []source.Item
	for _, src := range p.sources {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		items, err := p.deps.Fetcher.Fetch(ctx, src, p.opts.MaxItems)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s fetch error: %v\n", src.Name, err)
			report.SkipCount++
			continue
		}
		report.Fetched += len(items)

		kept := 0
		for _, item := range items {
			if existing[item.URL] {
				continue
			}
			newItems = append(newItems, item)
			kept++
		}
		fmt.Fprintf(os.Stderr, "  %s: %d fetched, %d new\n", src.Name, len(items), kept)
	}
	return newItems, nil
}

// enrichAll analyzes items one at a time, paced. Enrichment failures
// leave the sentinel summary and zero importance on the item and never
// abort the batch; the pacing gap elapses either way.
func (p *Pipeline) enrichAll(ctx context.Context, items []source.Item) error {
	limiter := rate.NewLimiter(rate.Every(p.opts.EnrichInterval), 1)

	for i := range items {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		result, err := p.deps.Enricher.Enrich(ctx, &items[i])
		if err != nil {
			fmt.Fprintf(os.Stderr, "  [%d/%d] analysis failed for %q: %v\n", i+1, len(items), items[i].Title, err)
		} else {
			fmt.Fprintf(os.Stderr, "  [%d/%d] %q -> score %d\n", i+1, len(items), items[i].Title, result.Importance)
		}
		items[i].Summary = result.Summary
		items[i].Importance = result.Importance
	}
	return nil
}

func (p *Pipeline) sweep(report *Report) {
	deleted, err := store.Sweep(p.opts.DataDir, p.opts.RetentionDays, p.now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "  sweep errors: %v\n", err)
	}
	for _, name := range deleted {
		fmt.Fprintf(os.Stderr, "  removed old file %s\n", name)
	}
	report.Deleted = deleted
}

func filterUrgent(items []source.Item) []source.Item {
	var urgent []source.Item
	for _, item := range items {
		if item.Tag != nil && item.Tag.Type == source.TypeUrgent {
			urgent = append(urgent, item)
		}
	}
	return urgent
}
