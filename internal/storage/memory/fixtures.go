package memory

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/embedctl/internal/embed"
)

// Fixtures seeds a Store.
type Fixtures struct {
	Site       FixtureSite        `yaml:"site"`
	Posts      []FixturePost      `yaml:"posts"`
	Transients []FixtureTransient `yaml:"transients"`
}

// FixtureSite describes the local site.
type FixtureSite struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// FixturePost is one seeded post with its meta.
type FixturePost struct {
	ID       int64             `yaml:"id"`
	Type     string            `yaml:"type"`
	Status   string            `yaml:"status"`
	Name     string            `yaml:"name"`
	Title    string            `yaml:"title"`
	Content  string            `yaml:"content"`
	URL      string            `yaml:"url"`
	Author   string            `yaml:"author"`
	Modified time.Time         `yaml:"modified"`
	Meta     map[string]string `yaml:"meta"`
}

// FixtureTransient is one seeded transient. TTL of zero never expires.
type FixtureTransient struct {
	Name  string        `yaml:"name"`
	Value string        `yaml:"value"`
	TTL   time.Duration `yaml:"ttl"`
}

// LoadFixtures reads fixtures from a YAML file.
func LoadFixtures(path string) (Fixtures, error) {
	// #nosec G304 -- operator-supplied fixture path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(raw)
}

// ParseFixtures decodes fixtures from YAML. Unknown fields are rejected.
func ParseFixtures(raw []byte) (Fixtures, error) {
	var fx Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	return fx, nil
}

// NewStoreFromFixtures builds a Store seeded with fx.
func NewStoreFromFixtures(fx Fixtures, clock embed.Clock) *Store {
	s := NewStore(embed.Site{Name: fx.Site.Name, URL: fx.Site.URL}, clock)
	for _, p := range fx.Posts {
		status := p.Status
		if status == "" {
			status = "publish"
		}
		postType := p.Type
		if postType == "" {
			postType = "post"
		}
		id := s.AddPost(embed.Post{
			ID:         p.ID,
			Type:       postType,
			Status:     status,
			Title:      p.Title,
			Content:    p.Content,
			URL:        p.URL,
			AuthorName: p.Author,
			Modified:   p.Modified.UTC(),
		}, p.Name)
		for k, v := range p.Meta {
			s.SetMeta(id, k, v)
		}
	}
	for _, t := range fx.Transients {
		row := transientRow{value: t.Value}
		if t.TTL > 0 {
			row.expiresAt = s.now().Add(t.TTL)
		}
		s.transients[t.Name] = row
	}
	return s
}
