package swapper

import "github.com/puzpuzpuz/xsync/v4"

// Registry maps strategy names to Swapper implementations. Populated once
// at process start, read concurrently by reconciliation workers.
type Registry struct {
	swappers *xsync.Map[string, Swapper]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{swappers: xsync.NewMap[string, Swapper]()}
}

// Register binds a swapper under its name, replacing any previous binding.
func (r *Registry) Register(s Swapper) {
	r.swappers.Store(s.Name(), s)
}

// Get returns the swapper registered under name.
func (r *Registry) Get(name string) (Swapper, bool) {
	return r.swappers.Load(name)
}
