// Package sensor holds the per-sensor runtime state shared between the
// collection and processing loops.
package sensor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/telemetry"
)

// walker is implemented by the simulated source.
type walker interface {
	Walk(key string, floor float64) float64
}

// CollectResult reports what a single Collect call did.
type CollectResult struct {
	Read      bool
	Overwrote bool
	Value     float64
	Err       error
}

// Runtime is the live state of one sensor: a single-slot pending cell written
// by the collector and a bounded window drained into by the processor.
// The pending cell and window share one mutex. The read counter is advanced
// by the collection tick only; reads themselves may finish on other
// goroutines, at most one at a time per runtime.
type Runtime struct {
	spec     Spec
	source   telemetry.Source
	capacity int

	counter  atomic.Int64
	inFlight atomic.Bool

	mu         sync.Mutex
	pending    float64
	hasPending bool
	window     []float64
	lastErr    error

	errored    atomic.Bool
	active     atomic.Bool
	overwrites atomic.Uint64
}

// NewRuntime creates a runtime with a window of at most capacity samples.
func NewRuntime(spec Spec, source telemetry.Source, capacity int) *Runtime {
	if capacity < 1 {
		capacity = 1
	}
	if spec.ReadRate < 1 {
		spec.ReadRate = 1
	}
	r := &Runtime{
		spec:     spec,
		source:   source,
		capacity: capacity,
		window:   make([]float64, 0, capacity),
	}
	r.active.Store(true)
	return r
}

func (r *Runtime) Spec() Spec { return r.spec }

func (r *Runtime) Key() string { return r.spec.Key }

func (r *Runtime) Capacity() int { return r.capacity }

func (r *Runtime) Active() bool { return r.active.Load() }

func (r *Runtime) SetActive(active bool) { r.active.Store(active) }

// Errored reports whether the most recent read failed.
func (r *Runtime) Errored() bool { return r.errored.Load() }

// Overwrites counts samples replaced in the pending cell before the
// processor consumed them.
func (r *Runtime) Overwrites() uint64 { return r.overwrites.Load() }

// Collect advances the read counter and, once every ReadRate calls, reads the
// source. A failed read sets the error flag and leaves both the pending cell
// and the window untouched.
func (r *Runtime) Collect(ctx context.Context) CollectResult {
	if !r.Due() {
		return CollectResult{}
	}
	return r.Read(ctx)
}

// Due advances the read counter and reports whether a read is due on this
// tick, resetting the counter when it is.
func (r *Runtime) Due() bool {
	if r.counter.Add(1) < int64(r.spec.ReadRate) {
		return false
	}
	r.counter.Store(0)
	return true
}

// TryBeginRead marks a read as in flight. It returns false when the previous
// read has not finished yet; EndRead clears the mark.
func (r *Runtime) TryBeginRead() bool { return r.inFlight.CompareAndSwap(false, true) }

func (r *Runtime) EndRead() { r.inFlight.Store(false) }

// Read samples the source once, regardless of the read counter.
func (r *Runtime) Read(ctx context.Context) CollectResult {
	v, err := r.read(ctx)
	if err != nil {
		r.errored.Store(true)
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
		return CollectResult{Read: true, Err: err}
	}
	r.errored.Store(false)
	overwrote := r.Offer(v)
	return CollectResult{Read: true, Overwrote: overwrote, Value: v}
}

// Offer places v in the pending cell, replacing any unconsumed value.
// It reports whether a value was replaced.
func (r *Runtime) Offer(v float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = nil
	overwrote := r.hasPending
	r.pending, r.hasPending = v, true
	if overwrote {
		r.overwrites.Add(1)
	}
	return overwrote
}

// Process drains the pending cell into the window, evicting the oldest
// sample once the window is full. It reports whether a sample was appended.
func (r *Runtime) Process() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasPending {
		return false
	}
	if len(r.window) >= r.capacity {
		n := copy(r.window, r.window[len(r.window)-r.capacity+1:])
		r.window = r.window[:n]
	}
	r.window = append(r.window, r.pending)
	r.hasPending = false
	return true
}

// Latest returns the newest buffered sample.
func (r *Runtime) Latest() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.window) == 0 {
		return 0, false
	}
	return r.window[len(r.window)-1], true
}

// Window returns a copy of the buffered samples, oldest first.
func (r *Runtime) Window() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.window...)
}

// Snapshot copies the runtime state under the lock.
func (r *Runtime) Snapshot() Snapshot {
	r.mu.Lock()
	window := append([]float64(nil), r.window...)
	lastErr := r.lastErr
	r.mu.Unlock()

	s := Snapshot{
		Key:      r.spec.Key,
		Title:    r.spec.Title,
		Unit:     r.spec.Unit,
		Label:    r.spec.Label,
		Min:      r.spec.Min,
		Max:      r.spec.Max,
		Window:   window,
		Error:    r.errored.Load(),
		Active:   r.active.Load(),
		HostData: r.spec.HostData,
		Sources:  r.spec.SourceKeys(),
	}
	if r.spec.Icon != 0 {
		s.Icon = string(r.spec.Icon)
	}
	if len(window) > 0 {
		latest := window[len(window)-1]
		s.Latest = &latest
		c := r.Gradient(latest)
		s.Color = &c
	}
	if lastErr != nil {
		s.LastError = lastErr.Error()
	}
	return s
}

// Gradient maps value onto a blue-to-red ramp across [Min, Max].
func (r *Runtime) Gradient(value float64) Color {
	span := r.spec.Max - r.spec.Min
	ratio := 0.0
	if span > 0 {
		ratio = (value - r.spec.Min) / span
	}
	ratio = max(0, min(1, ratio))
	return Color{R: uint8(255 * ratio), G: 0, B: uint8(255 * (1 - ratio))}
}

func (r *Runtime) read(ctx context.Context) (float64, error) {
	if w, ok := r.source.(walker); ok {
		return w.Walk(r.spec.Key, r.spec.Min), nil
	}
	switch {
	case r.spec.Formula != nil:
		return r.spec.Formula.Eval(ctx, func(ctx context.Context, key string) (float64, error) {
			return telemetry.ReadFloat(ctx, r.source, key)
		})
	case len(r.spec.RedisKeys) > 0:
		var (
			best  float64
			found bool
			last  error
		)
		for _, key := range r.spec.RedisKeys {
			v, err := telemetry.ReadFloat(ctx, r.source, key)
			if err != nil {
				last = err
				continue
			}
			if !found || v > best {
				best, found = v, true
			}
		}
		if !found {
			return 0, cerrors.ErrNoData.WithCause(last).WithMessage("no valid data in any of %d keys", len(r.spec.RedisKeys))
		}
		return best, nil
	case r.spec.RedisKey != "":
		return telemetry.ReadFloat(ctx, r.source, r.spec.RedisKey)
	}
	return 0, cerrors.ErrInvalidSource.WithMessage("sensor %q has no source", r.spec.Key)
}

// Snapshot is a point-in-time copy of a runtime, safe to hand to other
// goroutines and to serialize.
type Snapshot struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Unit      string    `json:"unit"`
	Label     string    `json:"label,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Latest    *float64  `json:"latest,omitempty"`
	Color     *Color    `json:"color,omitempty"`
	Window    []float64 `json:"window"`
	Error     bool      `json:"error"`
	LastError string    `json:"last_error,omitempty"`
	Active    bool      `json:"active"`
	HostData  bool      `json:"host_data"`
	Sources   []string  `json:"sources"`
}
