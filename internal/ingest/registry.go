package ingest

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

type SourceType string

const (
	SourceCSV  SourceType = "csv"
	SourceRSS  SourceType = "rss"
	SourceAPI  SourceType = "api"
	SourceHTML SourceType = "html"
)

// Registry holds the ordered source list for one ingestion run.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FieldMap lists provider-specific keys per canonical field. They are tried
// after the built-in keys.
type FieldMap map[string][]string

// SourceConfig defines a single feed.
type SourceConfig struct {
	ID        string     `yaml:"id"`
	Name      string     `yaml:"name,omitempty"`
	Type      SourceType `yaml:"type"`
	URL       string     `yaml:"url"`
	APIKey    string     `yaml:"api_key,omitempty"`
	APIKeyIn  string     `yaml:"api_key_in,omitempty"` // header name, or "query:<param>"
	Transform string     `yaml:"transform,omitempty"`
	ItemsPath string     `yaml:"items_path,omitempty"` // dotted path to the item array in an API payload
	Fields    FieldMap   `yaml:"fields,omitempty"`
	Disabled  bool       `yaml:"disabled,omitempty"`

	// html sources
	Selectors  SelectorConfig `yaml:"selectors,omitempty"`
	NextPage   string         `yaml:"next_page,omitempty"` // CSS selector for the next page link
	MaxPages   int            `yaml:"max_pages,omitempty"`
	Delay      float64        `yaml:"delay_seconds,omitempty"`
}

// SelectorConfig maps listing markup to raw item keys.
type SelectorConfig struct {
	Container   string `yaml:"container,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Link        string `yaml:"link,omitempty"`
	LinkAttr    string `yaml:"link_attr,omitempty"`
	Provider    string `yaml:"provider,omitempty"`
	Amount      string `yaml:"amount,omitempty"`
	Deadline    string `yaml:"deadline,omitempty"`
	Eligibility string `yaml:"eligibility,omitempty"`
}

// LoadRegistry reads path, or the embedded sources.yaml when path is empty,
// and expands ${ENV} references before decoding.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*Registry, error) {
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}

	seen := make(map[string]bool, len(reg.Sources))
	for i, src := range reg.Sources {
		if strings.TrimSpace(src.ID) == "" {
			return nil, fmt.Errorf("source #%d has no id", i+1)
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
		reg.Sources[i].Type = SourceType(strings.ToLower(strings.TrimSpace(string(src.Type))))
	}
	return &reg, nil
}

// Enabled returns the sources in configured order, minus disabled ones and
// those whose URL expanded to nothing.
func (r *Registry) Enabled() []SourceConfig {
	out := make([]SourceConfig, 0, len(r.Sources))
	for _, s := range r.Sources {
		if !s.Disabled && strings.TrimSpace(s.URL) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the source with the given id.
func (r *Registry) Find(id string) (SourceConfig, bool) {
	for _, s := range r.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return SourceConfig{}, false
}
