package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/elonfeng/newspulse/internal/config"
	"github.com/elonfeng/newspulse/internal/pipeline"
	"github.com/elonfeng/newspulse/internal/store"
	"github.com/elonfeng/newspulse/pkg/enrich"
	"github.com/elonfeng/newspulse/pkg/notify"
	"github.com/elonfeng/newspulse/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// parseMode validates the --type value. Invalid values warn and fall
// back to processing everything.
func parseMode(mode string) string {
	switch mode {
	case "urgent", "normal", "all":
		return mode
	}
	fmt.Fprintf(os.Stderr, "warning: invalid --type %q, using \"all\"\n", mode)
	return "all"
}

func filterSources(sources []source.Source, mode string) []source.Source {
	if mode == "all" {
		return sources
	}
	var filtered []source.Source
	for _, src := range sources {
		if string(src.Type) == mode {
			filtered = append(filtered, src)
		}
	}
	return filtered
}

func runPipeline(mode string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	mode = parseMode(mode)
	sources := filterSources(cfg.Sources, mode)
	fmt.Fprintf(os.Stderr, "mode %s: %d of %d sources\n", mode, len(sources), len(cfg.Sources))

	st := store.New(cfg.DataDir)
	p := pipeline.New(pipeline.Deps{
		Fetcher:  source.NewClient(),
		Enricher: enrich.NewClient(cfg.Enrich.APIKey, cfg.Enrich.Model, cfg.Enrich.BaseURL),
		Notifier: notify.NewClient(cfg.Notify.Key, cfg.Notify.BaseURL),
		Store:    st,
	}, sources, pipeline.Options{
		MaxItems:       cfg.Fetch.MaxItems,
		FetchInterval:  cfg.Fetch.ParseInterval(),
		EnrichInterval: cfg.Enrich.ParseInterval(),
		StatsPath:      cfg.StatsPath,
		DataDir:        cfg.DataDir,
		RetentionDays:  cfg.Retention.Days,
	})

	report, err := p.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\nrun complete: %d new items (%d urgent), pushed=%v, swept=%d, took %.2fs\n",
		report.NewItems, report.Urgent, report.Pushed, len(report.Deleted),
		report.Duration.Seconds())
	return nil
}

func runStats(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	stats := store.LoadStats(cfg.StatsPath)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	if stats.Date == "" {
		fmt.Println("no stats recorded yet")
		return nil
	}

	fmt.Printf("date:        %s\n", stats.Date)
	fmt.Printf("total:       %d\n", stats.Total)
	fmt.Printf("urgent:      %d\n", stats.Urgent)
	fmt.Printf("normal:      %d\n", stats.Normal)
	fmt.Printf("last update: %s\n", stats.LastUpdate)
	return nil
}

func runSweep() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	deleted, err := store.Sweep(cfg.DataDir, cfg.Retention.Days, time.Now())
	for _, name := range deleted {
		fmt.Printf("removed %s\n", name)
	}
	if len(deleted) == 0 {
		fmt.Printf("nothing older than %d days\n", cfg.Retention.Days)
	}
	return err
}
