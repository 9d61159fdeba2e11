// Package history keeps a rolling 24h record of per-sensor peaks: samples are
// accumulated between flushes and each flush appends one peak per sensor.
package history

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/metrics"
	"github.com/gadgetini/display-agent/internal/sensor"
	"github.com/gadgetini/display-agent/internal/utilities"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Mirror receives every persisted snapshot.
type Mirror interface {
	Upload(ctx context.Context, snapshot []byte) error
}

type Options struct {
	Path     string
	Interval time.Duration
	Capacity int
	Clock    func() time.Time
	Mirror   Mirror
	Logger   *log.Logger
}

type Option func(*Options)

func WithPath(path string) Option {
	return func(o *Options) { o.Path = path }
}

func WithInterval(d time.Duration) Option {
	return func(o *Options) { o.Interval = d }
}

func WithCapacity(n int) Option {
	return func(o *Options) { o.Capacity = n }
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Clock = now }
}

func WithMirror(m Mirror) Option {
	return func(o *Options) { o.Mirror = m }
}

func WithLogger(l *log.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Store is safe for concurrent use.
type Store struct {
	path     string
	interval time.Duration
	capacity int
	now      func() time.Time
	mirror   Mirror
	logger   *log.Logger

	mu     sync.Mutex
	series map[string][]float64
	accum  map[string][]float64
	last   time.Time

	uploads sync.WaitGroup
}

// New creates a store and loads any existing history file.
func New(opts ...Option) *Store {
	o := &Options{
		Path:     constants.DefaultHistoryFile,
		Interval: constants.DefaultHistoryInterval,
		Capacity: constants.DefaultHistoryCapacity,
		Clock:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = log.Component("history")
	}
	if o.Capacity < 1 {
		o.Capacity = constants.DefaultHistoryCapacity
	}
	s := &Store{
		path:     o.Path,
		interval: o.Interval,
		capacity: o.Capacity,
		now:      o.Clock,
		mirror:   o.Mirror,
		logger:   o.Logger,
		series:   make(map[string][]float64),
		accum:    make(map[string][]float64),
	}
	s.last = s.now()
	s.Load()
	return s
}

// Accumulate records one sample for the current interval.
func (s *Store) Accumulate(key string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	s.mu.Lock()
	s.accum[key] = append(s.accum[key], value)
	s.mu.Unlock()
}

// Tick flushes when a full interval has passed since the last flush.
func (s *Store) Tick() bool {
	return s.TickAt(s.now())
}

func (s *Store) TickAt(now time.Time) bool {
	s.mu.Lock()
	due := now.Sub(s.last) >= s.interval
	if due {
		s.last = now
	}
	s.mu.Unlock()
	if !due {
		return false
	}
	if err := s.Flush(); err != nil {
		s.logger.Error("history flush failed", zap.Error(err))
	}
	return true
}

// Flush appends the peak of every key with at least one pending sample,
// evicts beyond capacity, clears the accumulators and persists.
func (s *Store) Flush() error {
	_, span := otel.Tracer("history").Start(context.Background(), "history.flush")
	defer span.End()

	s.mu.Lock()
	flushed := s.flushLocked()
	s.mu.Unlock()
	span.SetAttributes(attribute.Int("history.keys_flushed", flushed))

	err := s.Save()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.HistoryFlushes.WithLabelValues("error").Inc()
		return err
	}
	metrics.HistoryFlushes.WithLabelValues("ok").Inc()
	return nil
}

func (s *Store) flushLocked() int {
	flushed := 0
	for key, samples := range s.accum {
		if len(samples) == 0 {
			continue
		}
		peak := math.Round(slices.Max(samples)*100) / 100
		series := append(s.series[key], peak)
		if len(series) > s.capacity {
			series = slices.Clone(series[len(series)-s.capacity:])
		}
		s.series[key] = series
		s.accum[key] = samples[:0]
		flushed++
	}
	return flushed
}

// Get returns a copy of the series for key, oldest first.
func (s *Store) Get(key string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.series[key])
}

// Keys returns the recorded keys, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.series))
	for k := range s.series {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	slices.Sort(keys)
	return keys
}

// Snapshot returns a deep copy of all series.
func (s *Store) Snapshot() map[string][]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]float64, len(s.series))
	for k, v := range s.series {
		out[k] = slices.Clone(v)
	}
	return out
}

func (s *Store) Capacity() int { return s.capacity }

// Save writes the full snapshot atomically and hands it to the mirror.
func (s *Store) Save() error {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return cerrors.ErrHistoryPersist.WithCause(err).WithMessage("failed to encode history: %v", err)
	}
	if err := utilities.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return cerrors.ErrHistoryPersist.WithCause(err).WithMessage("failed to write history %s: %v", s.path, err)
	}
	if s.mirror != nil {
		s.uploads.Add(1)
		go func() {
			defer s.uploads.Done()
			ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultHistoryS3UploadTimeout)
			defer cancel()
			if err := s.mirror.Upload(ctx, data); err != nil {
				s.logger.Warn("history mirror upload failed", zap.Error(err))
			}
		}()
	}
	return nil
}

// Load replaces the in-memory series with the file content. A missing or
// corrupt file leaves the store empty; series longer than capacity keep
// their most recent entries.
func (s *Store) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("history file unreadable, starting empty", zap.String("path", s.path), zap.Error(err))
		}
		return
	}
	var raw map[string][]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("history file corrupt, starting empty", zap.String("path", s.path), zap.Error(err))
		return
	}
	series := make(map[string][]float64, len(raw))
	for k, v := range raw {
		if len(v) > s.capacity {
			v = v[len(v)-s.capacity:]
		}
		series[k] = slices.Clone(v)
	}
	s.mu.Lock()
	s.series = series
	s.mu.Unlock()
}

// OnProcessed accumulates the newest buffered value of every sensor and
// flushes when due.
func (s *Store) OnProcessed(reg *sensor.Registry, now time.Time) {
	for _, rt := range reg.Runtimes() {
		if v, ok := rt.Latest(); ok {
			s.Accumulate(rt.Key(), v)
		}
	}
	s.TickAt(now)
}

// Close flushes pending samples, persists and waits for mirror uploads.
func (s *Store) Close() error {
	s.mu.Lock()
	pending := false
	for _, samples := range s.accum {
		if len(samples) > 0 {
			pending = true
			break
		}
	}
	s.mu.Unlock()

	var err error
	if pending {
		err = s.Flush()
	} else {
		err = s.Save()
	}
	s.uploads.Wait()
	return err
}
