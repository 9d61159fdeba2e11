package telemetry

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"
)

// SimulatedSource produces a bounded random walk per key for bench setups
// without crawlers. Every key starts at 2 and moves by at most ±2 per read,
// never dropping below Floor.
type SimulatedSource struct {
	mu    sync.Mutex
	prev  map[string]float64
	rng   *rand.Rand
	Floor float64
}

func NewSimulatedSource(seed uint64) *SimulatedSource {
	return &SimulatedSource{
		prev: make(map[string]float64),
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *SimulatedSource) Get(_ context.Context, key string) (string, bool, error) {
	return strconv.FormatFloat(s.Walk(key, s.Floor), 'f', 3, 64), true, nil
}

// Walk advances the walk for key and clamps it at floor. Sensors call it
// directly so that each one is floored at its own minimum.
func (s *SimulatedSource) Walk(key string, floor float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.prev[key]
	if !ok {
		prev = 2
	}
	v := prev + (s.rng.Float64()*4 - 2)
	if v < floor {
		v = floor
	}
	s.prev[key] = v
	return v
}
