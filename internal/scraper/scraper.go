// Package scraper collects league team directories into TeamRow datasets.
package scraper

import (
	"context"

	"github.com/playmaker-hq/teamscout/internal/model"
)

// Scraper is one league directory source. Scrape returns the dataset and a
// result record; a non-nil error means nothing usable was produced (partial
// sources degrade inside the scraper, via fallbacks, instead).
type Scraper interface {
	ID() string
	Name() string
	Description() string
	SourceURL() string
	Scrape(ctx context.Context) ([]model.TeamRow, *model.ScrapeResult, error)
}

// Info is the metadata surface exposed by registry listings.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
}

// Registry maps scraper identifiers to instances, insertion-ordered.
// Constructed at startup; lookups are safe for concurrent use without
// locking.
type Registry struct {
	scrapers map[string]Scraper
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{scrapers: make(map[string]Scraper)}
}

// Register adds a scraper. Re-registering an ID replaces it in place.
func (r *Registry) Register(s Scraper) {
	if _, exists := r.scrapers[s.ID()]; !exists {
		r.order = append(r.order, s.ID())
	}
	r.scrapers[s.ID()] = s
}

// Get returns the scraper for an ID, or nil if unknown.
func (r *Registry) Get(id string) Scraper {
	return r.scrapers[id]
}

// Has reports whether the ID is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.scrapers[id]
	return ok
}

// IDs returns all registered identifiers in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// List returns metadata for every registered scraper, in registration order.
func (r *Registry) List() []Info {
	infos := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		s := r.scrapers[id]
		infos = append(infos, Info{
			ID:          s.ID(),
			Name:        s.Name(),
			Description: s.Description(),
			SourceURL:   s.SourceURL(),
		})
	}
	return infos
}
