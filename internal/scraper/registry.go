package scraper

import (
	"fmt"

	"reviewminer/internal/domain/review"
)

// Registry maps sources to their adapters.
type Registry struct {
	scrapers map[review.Source]Scraper
}

func NewRegistry(scrapers ...Scraper) *Registry {
	m := make(map[review.Source]Scraper, len(scrapers))
	for _, s := range scrapers {
		m[s.Source()] = s
	}
	return &Registry{scrapers: m}
}

func (r *Registry) Get(source review.Source) (Scraper, error) {
	s, ok := r.scrapers[source]
	if !ok {
		return nil, fmt.Errorf("no scraper registered for source %q", source)
	}
	return s, nil
}

func (r *Registry) Sources() []review.Source {
	out := make([]review.Source, 0, len(r.scrapers))
	for src := range r.scrapers {
		out = append(out, src)
	}
	return out
}
