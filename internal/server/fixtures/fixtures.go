// Package fixtures loads the canned feed data served by the development
// server: a list of events and per-country conflict summaries.
package fixtures

import (
	_ "embed"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"golang.org/x/text/cases"

	"github.com/agentstation/feedsync/pkg/errors"
)

//go:embed default.yaml
var defaultYAML []byte

// Source is a reference cited by a conflicts answer.
type Source struct {
	Title string `yaml:"title" json:"title,omitempty"`
	URL   string `yaml:"url" json:"url"`
}

// Answer is one conflicts summary with its sources.
type Answer struct {
	Conflicts string   `yaml:"conflicts" json:"conflicts"`
	Sources   []Source `yaml:"sources" json:"sources"`
}

// Country holds the conflicts data for one country.
type Country struct {
	Past    Answer `yaml:"past"`
	Current Answer `yaml:"current"`

	// Chunks overrides the stream chunks derived from Past and Current.
	Chunks []map[string]any `yaml:"chunks"`

	// Fail, when set, makes every request for the country fail with this
	// message. Streams emit FailAfter chunks before the error frame.
	Fail      string `yaml:"fail"`
	FailAfter int    `yaml:"fail_after"`
}

// Set is a complete fixture file.
type Set struct {
	Events    []map[string]any   `yaml:"events"`
	Countries map[string]Country `yaml:"countries"`
}

// Default returns the embedded fixture set.
func Default() (*Set, error) {
	return Parse(defaultYAML, "default.yaml")
}

// Load reads a fixture file. An empty path loads the embedded defaults.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return Parse(data, path)
}

// Parse decodes a fixture document. Country names are matched case-insensitively.
func Parse(data []byte, name string) (*Set, error) {
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.WrapParse("yaml", name, err)
	}

	countries := make(map[string]Country, len(s.Countries))
	for country, c := range s.Countries {
		countries[Key(country)] = c
	}
	s.Countries = countries
	return &s, nil
}

// Key normalizes a country name for lookups.
func Key(country string) string {
	return cases.Fold().String(strings.TrimSpace(country))
}

// Country returns the conflicts data for country.
func (s *Set) Country(country string) (Country, bool) {
	c, ok := s.Countries[Key(country)]
	return c, ok
}

// Stream returns the chunks a streaming request emits, in order.
func (c Country) Stream() []map[string]any {
	if len(c.Chunks) > 0 {
		return c.Chunks
	}
	return []map[string]any{
		{"type": "past", "content": c.Past.Conflicts},
		{"type": "sources", "section": "past", "sources": c.Past.Sources},
		{"type": "current", "content": c.Current.Conflicts},
		{"type": "sources", "section": "current", "sources": c.Current.Sources},
	}
}
