package enricher

// DefaultRegistry returns a registry with every built-in enricher, in the
// order enrichment tasks conventionally run them: cheap lookups first, the
// LLM pass last.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewGeoEnricher)
	r.Register(NewSocialEnricher)
	r.Register(NewWebsiteEnricher)
	r.Register(NewSponsorEnricher)
	r.Register(NewValuationEnricher)
	r.Register(NewBrandEnricher)
	return r
}
