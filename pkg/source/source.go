package source

import "time"

// Type classifies how items from a source are routed.
type Type string

const (
	TypeUrgent Type = "urgent"
	TypeNormal Type = "normal"
)

// Valid reports whether t is a known source type.
func (t Type) Valid() bool {
	return t == TypeUrgent || t == TypeNormal
}

// Source is a configured subscription endpoint. Sources are loaded from
// configuration at run start and never mutated afterwards.
type Source struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
	Type Type   `yaml:"type" json:"type"`
}

// Item is one normalized feed entry.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	SourceLabel string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`

	// Tag points back to the Source the item was fetched under.
	Tag *Source `json:"tag,omitempty"`

	// Summary and Importance are filled in by enrichment. Importance is
	// 1-5, with 0 meaning unset or failed analysis.
	Summary    string `json:"summary,omitempty"`
	Importance int    `json:"importance,omitempty"`
}
