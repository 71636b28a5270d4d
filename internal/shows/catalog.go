// Package shows resolves persisted show ids to the shows configured for
// tracking.
package shows

import (
	"errors"
	"fmt"
	"sort"

	"showseed/internal/config"
)

// ErrShowNotFound is returned for ids missing from the catalog.
var ErrShowNotFound = errors.New("show not found")

// Show is one tracked series.
type Show struct {
	ID   int
	Name string
}

// Catalog is an immutable id to show index.
type Catalog struct {
	byID map[int]Show
}

// NewCatalog indexes shows. Later duplicates replace earlier ones.
func NewCatalog(list []Show) *Catalog {
	c := &Catalog{byID: make(map[int]Show, len(list))}
	for _, s := range list {
		c.byID[s.ID] = s
	}
	return c
}

// FromConfig builds a catalog from the [[shows]] entries.
func FromConfig(cfg *config.Config) *Catalog {
	if cfg == nil {
		return NewCatalog(nil)
	}
	list := make([]Show, 0, len(cfg.Shows))
	for _, s := range cfg.Shows {
		list = append(list, Show{ID: s.ID, Name: s.Name})
	}
	return NewCatalog(list)
}

func (c *Catalog) Lookup(id int) (Show, error) {
	if c != nil {
		if s, ok := c.byID[id]; ok {
			return s, nil
		}
	}
	return Show{}, fmt.Errorf("%w: id %d", ErrShowNotFound, id)
}

// All returns the shows ordered by id.
func (c *Catalog) All() []Show {
	if c == nil {
		return nil
	}
	out := make([]Show, 0, len(c.byID))
	for _, s := range c.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
