package shows_test

import (
	"errors"
	"testing"

	"showseed/internal/config"
	"showseed/internal/shows"
)

func TestCatalogFromConfig(t *testing.T) {
	cfg := &config.Config{Shows: []config.Show{{ID: 7, Name: "Seven"}, {ID: 3, Name: "Three"}}}
	c := shows.FromConfig(cfg)

	s, err := c.Lookup(7)
	if err != nil {
		t.Fatalf("Lookup(7): %v", err)
	}
	if s.Name != "Seven" {
		t.Fatalf("name = %q", s.Name)
	}
	if _, err := c.Lookup(99); !errors.Is(err, shows.ErrShowNotFound) {
		t.Fatalf("expected ErrShowNotFound, got %v", err)
	}
	all := c.All()
	if len(all) != 2 || all[0].ID != 3 {
		t.Fatalf("unexpected ordering: %+v", all)
	}
}

func TestNilCatalog(t *testing.T) {
	var c *shows.Catalog
	if _, err := c.Lookup(1); !errors.Is(err, shows.ErrShowNotFound) {
		t.Fatalf("expected ErrShowNotFound, got %v", err)
	}
}
