package question

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Topic is a curated quiz subject with its static question table.
type Topic struct {
	Slug        string     `json:"slug" yaml:"slug"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Difficulty  string     `json:"difficulty" yaml:"difficulty"`
	Questions   []Question `json:"-" yaml:"questions"`
}

// Catalog indexes curated topics by slug.
type Catalog struct {
	order  []string
	topics map[string]Topic
}

type catalogFile struct {
	Topics []Topic `yaml:"topics"`
}

// DefaultCatalog parses the embedded topic table.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes a YAML topic table and validates every question.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{topics: make(map[string]Topic, len(file.Topics))}
	for _, t := range file.Topics {
		if t.Slug == "" {
			return nil, fmt.Errorf("catalog topic %q has no slug", t.Name)
		}
		if _, dup := c.topics[t.Slug]; dup {
			return nil, fmt.Errorf("duplicate catalog topic %q", t.Slug)
		}
		if !IsValidDifficulty(t.Difficulty) {
			return nil, fmt.Errorf("catalog topic %q: unknown difficulty %q", t.Slug, t.Difficulty)
		}
		for i := range t.Questions {
			q := &t.Questions[i]
			q.Source = SourceCatalog
			if q.ID == "" {
				q.ID = fmt.Sprintf("%s-%d", t.Slug, i+1)
			}
			if q.Difficulty == "" {
				q.Difficulty = t.Difficulty
			}
			if err := q.Validate(); err != nil {
				return nil, fmt.Errorf("catalog topic %q question %d: %w", t.Slug, i+1, err)
			}
		}
		c.topics[t.Slug] = t
		c.order = append(c.order, t.Slug)
	}
	return c, nil
}

// Topics lists topics in file order.
func (c *Catalog) Topics() []Topic {
	out := make([]Topic, 0, len(c.order))
	for _, slug := range c.order {
		out = append(out, c.topics[slug])
	}
	return out
}

// Topic returns a topic by slug.
func (c *Catalog) Topic(slug string) (Topic, bool) {
	t, ok := c.topics[slug]
	return t, ok
}

// Names returns the sorted display names, used as "available topics" in prompts.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.topics))
	for _, t := range c.topics {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}
