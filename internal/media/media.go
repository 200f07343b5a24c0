// Package media looks up movie, music and book suggestions that chat
// partners can share.
package media

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Kind is a suggestion category.
type Kind string

const (
	KindMovie Kind = "movie"
	KindMusic Kind = "music"
	KindBook  Kind = "book"
)

// ErrUnknownKind is returned for kinds the source has nothing for.
var ErrUnknownKind = errors.New("media: unknown suggestion kind")

// Suggestion is one recommended title.
type Suggestion struct {
	Kind  Kind   `json:"kind" yaml:"-"`
	Title string `json:"title" yaml:"title"`
	Note  string `json:"note,omitempty" yaml:"note"`
}

// Suggester returns a suggestion of the requested kind.
type Suggester interface {
	Suggest(ctx context.Context, kind Kind) (Suggestion, error)
}

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog serves random suggestions from a fixed list.
type Catalog struct {
	entries map[Kind][]Suggestion
	intn    func(int) int
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("media: built-in catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("media: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML document mapping kinds to lists of titles.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw map[Kind][]Suggestion
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("media: parse catalog: %w", err)
	}
	for kind, list := range raw {
		for i := range list {
			list[i].Kind = kind
		}
	}
	return &Catalog{entries: raw, intn: rand.IntN}, nil
}

// Kinds returns the kinds the catalog can serve, sorted.
func (c *Catalog) Kinds() []Kind {
	kinds := make([]Kind, 0, len(c.entries))
	for k, list := range c.entries {
		if len(list) > 0 {
			kinds = append(kinds, k)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Suggest picks a random entry of kind.
func (c *Catalog) Suggest(_ context.Context, kind Kind) (Suggestion, error) {
	list := c.entries[kind]
	if len(list) == 0 {
		return Suggestion{}, ErrUnknownKind
	}
	return list[c.intn(len(list))], nil
}
