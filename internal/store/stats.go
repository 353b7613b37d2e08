package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Stats is the running per-day counter record, read-merged-written on
// every run that produced new items.
type Stats struct {
	Date       string `json:"date"`
	Total      int    `json:"total"`
	Urgent     int    `json:"urgent"`
	Normal     int    `json:"normal"`
	LastUpdate string `json:"lastUpdate"`
}

// LoadStats reads the stats record at path. Absent or unreadable files
// yield a zero record.
func LoadStats(path string) Stats {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}
	}
	var s Stats
	if err := json.Unmarshal(data, &s); err != nil {
		return Stats{}
	}
	return s
}

// MergeStats accumulates this run's counts into the persisted record and
// writes it back. Counts carry over only within the same calendar day;
// the first write of a new day starts from zero. The merged record is
// returned.
func MergeStats(path string, urgentAdd, normalAdd int, now time.Time) (Stats, error) {
	today := now.Format("2006-01-02")

	s := LoadStats(path)
	if s.Date != today {
		s = Stats{Date: today}
	}

	s.Total += urgentAdd + normalAdd
	s.Urgent += urgentAdd
	s.Normal += normalAdd
	s.LastUpdate = now.Format(time.RFC3339)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return s, fmt.Errorf("marshal stats: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return s, fmt.Errorf("write stats %s: %w", path, err)
	}
	return s, nil
}
