package enricher

// Factory builds a fresh enricher instance with the given configuration.
// Instances are per-run: the orchestrator creates one for each task and never
// shares it across tasks.
type Factory func(Config) Enricher

// Info is the metadata surface exposed by registry listings.
type Info struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Fields      []string `json:"fields_added"`
	Available   bool     `json:"available"`
}

// Registry maps enricher identifiers to factories. It is constructed at
// startup and passed into the orchestrator; registration after startup is
// not expected, so lookups are safe for concurrent use without locking.
type Registry struct {
	factories map[string]Factory
	order     []string // insertion order for deterministic listings
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the ID reported by a transiently built
// instance. Registering the same ID again replaces the previous factory.
func (r *Registry) Register(f Factory) {
	id := f(DefaultConfig()).ID()
	if _, exists := r.factories[id]; !exists {
		r.order = append(r.order, id)
	}
	r.factories[id] = f
}

// Get returns the factory for an ID, or nil if unknown.
func (r *Registry) Get(id string) Factory {
	return r.factories[id]
}

// Has reports whether the ID is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.factories[id]
	return ok
}

// Create builds an enricher by ID with the given configuration. It returns
// nil for an unknown ID; callers must check.
func (r *Registry) Create(id string, cfg Config) Enricher {
	f := r.factories[id]
	if f == nil {
		return nil
	}
	return f(cfg)
}

// IDs returns all registered identifiers in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// List returns metadata for every registered enricher, in registration
// order. Each enricher is instantiated transiently with default config just
// to read its static declarations and availability, which is why Available
// must be side-effect free.
func (r *Registry) List() []Info {
	infos := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		e := r.factories[id](DefaultConfig())
		infos = append(infos, Info{
			ID:          e.ID(),
			Name:        e.Name(),
			Description: e.Description(),
			Fields:      e.Fields(),
			Available:   e.Available(),
		})
	}
	return infos
}

// Describe returns metadata for one enricher, or false if unknown.
func (r *Registry) Describe(id string) (Info, bool) {
	f := r.factories[id]
	if f == nil {
		return Info{}, false
	}
	e := f(DefaultConfig())
	return Info{
		ID:          e.ID(),
		Name:        e.Name(),
		Description: e.Description(),
		Fields:      e.Fields(),
		Available:   e.Available(),
	}, true
}
