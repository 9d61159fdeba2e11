package sensor

// Registry is the ordered set of runtimes produced by one composition.
// It is filled by the composer and read-only afterwards.
type Registry struct {
	order    []string
	runtimes map[string]*Runtime
}

func NewRegistry() *Registry {
	return &Registry{runtimes: make(map[string]*Runtime)}
}

// Put adds rt. When the key already exists the new runtime replaces the old
// one in place, keeping the original position, and the old one is returned.
func (g *Registry) Put(rt *Runtime) (replaced *Runtime) {
	key := rt.Key()
	if old, ok := g.runtimes[key]; ok {
		g.runtimes[key] = rt
		return old
	}
	g.order = append(g.order, key)
	g.runtimes[key] = rt
	return nil
}

func (g *Registry) Get(key string) (*Runtime, bool) {
	if g == nil {
		return nil, false
	}
	rt, ok := g.runtimes[key]
	return rt, ok
}

func (g *Registry) Has(key string) bool {
	_, ok := g.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (g *Registry) Keys() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.order...)
}

// Runtimes returns the runtimes in insertion order.
func (g *Registry) Runtimes() []*Runtime {
	if g == nil {
		return nil
	}
	out := make([]*Runtime, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, g.runtimes[k])
	}
	return out
}

func (g *Registry) Len() int {
	if g == nil {
		return 0
	}
	return len(g.order)
}

// Latest returns the newest buffered value of key.
func (g *Registry) Latest(key string) (float64, bool) {
	rt, ok := g.Get(key)
	if !ok {
		return 0, false
	}
	return rt.Latest()
}
