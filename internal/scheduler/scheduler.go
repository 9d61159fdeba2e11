// Package scheduler drives the two sensor loops: collection reads sources
// into each sensor's pending cell, processing drains pending cells into
// windows and notifies observers. A third loop recomposes the registry when
// the device configuration or the profile file changes.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/deviceconf"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/metrics"
	"github.com/gadgetini/display-agent/internal/profile"
	"github.com/gadgetini/display-agent/internal/sensor"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Observer is notified after every processing tick with the composition that
// was processed.
type Observer interface {
	OnProcessed(res *profile.Result, now time.Time)
}

type ObserverFunc func(res *profile.Result, now time.Time)

func (f ObserverFunc) OnProcessed(res *profile.Result, now time.Time) { f(res, now) }

// RegistryObserverFunc adapts observers that only need the registry.
type RegistryObserverFunc func(reg *sensor.Registry, now time.Time)

func (f RegistryObserverFunc) OnProcessed(res *profile.Result, now time.Time) { f(res.Registry, now) }

// Composer rebuilds compositions on reload.
type Composer interface {
	Compose(cfg profile.DeviceConfig) (*profile.Result, error)
	Digest(product string) (uint64, error)
}

// DeviceConfig is the reloadable device configuration.
type DeviceConfig interface {
	profile.DeviceConfig
	Reload() (bool, error)
	SectionDigest(section string) uint64
}

type Options struct {
	FPS             int
	ReadTimeout     time.Duration
	ReadConcurrency int
	ReloadInterval  time.Duration
	Composer        Composer
	Config          DeviceConfig
	Observers       []Observer
	Clock           func() time.Time
	Logger          *log.Logger
}

type Option func(*Options)

func WithFPS(fps int) Option {
	return func(o *Options) { o.FPS = fps }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) { o.ReadTimeout = d }
}

func WithReadConcurrency(n int) Option {
	return func(o *Options) { o.ReadConcurrency = n }
}

// WithReload enables the reload loop.
func WithReload(composer Composer, cfg DeviceConfig, every time.Duration) Option {
	return func(o *Options) { o.Composer, o.Config, o.ReloadInterval = composer, cfg, every }
}

func WithObserver(obs Observer) Option {
	return func(o *Options) { o.Observers = append(o.Observers, obs) }
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Clock = now }
}

func WithLogger(l *log.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

type Scheduler struct {
	period          time.Duration
	readTimeout     time.Duration
	readConcurrency int
	reloadInterval  time.Duration
	composer        Composer
	config          DeviceConfig
	observers       []Observer
	now             func() time.Time
	logger          *log.Logger

	current       atomic.Pointer[profile.Result]
	productDigest uint64

	readSlots chan struct{}
	reads     sync.WaitGroup
}

// New creates a scheduler running initial until the first swap.
func New(initial *profile.Result, opts ...Option) *Scheduler {
	o := &Options{
		FPS:             constants.DefaultFPS,
		ReadTimeout:     constants.DefaultSourceReadTimeout,
		ReadConcurrency: constants.DefaultSourceReadConcurrency,
		ReloadInterval:  constants.DefaultReloadInterval,
		Clock:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.FPS < 1 {
		o.FPS = constants.DefaultFPS
	}
	if o.ReadConcurrency < 1 {
		o.ReadConcurrency = 1
	}
	if o.Logger == nil {
		o.Logger = log.Component("scheduler")
	}
	s := &Scheduler{
		period:          time.Second / time.Duration(o.FPS),
		readTimeout:     o.ReadTimeout,
		readConcurrency: o.ReadConcurrency,
		reloadInterval:  o.ReloadInterval,
		composer:        o.Composer,
		config:          o.Config,
		observers:       o.Observers,
		now:             o.Clock,
		logger:          o.Logger,
		readSlots:       make(chan struct{}, o.ReadConcurrency),
	}
	if s.config != nil {
		s.productDigest = s.config.SectionDigest(deviceconf.SectionProduct)
	}
	s.Swap(initial)
	return s
}

// Current returns the composition in use.
func (s *Scheduler) Current() *profile.Result {
	return s.current.Load()
}

// Swap replaces the whole composition atomically and returns the old one.
// Loops pick it up on their next tick.
func (s *Scheduler) Swap(res *profile.Result) *profile.Result {
	old := s.current.Swap(res)
	if res != nil {
		metrics.RegistrySize.Set(float64(res.Registry.Len()))
		metrics.RegistrySwaps.WithLabelValues(strconv.FormatBool(res.Fallback)).Inc()
	}
	return old
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.every(ctx, s.period, func() { s.CollectOnce(ctx) })
		return nil
	})
	g.Go(func() error {
		s.every(ctx, s.period, func() { s.ProcessOnce(s.now()) })
		return nil
	})
	if s.composer != nil && s.config != nil && s.reloadInterval > 0 {
		g.Go(func() error {
			s.every(ctx, s.reloadInterval, func() {
				if _, err := s.ReloadOnce(); err != nil {
					s.logger.Error("reload failed", zap.Error(err))
				}
			})
			return nil
		})
	}
	err := g.Wait()
	s.WaitReads()
	return err
}

func (s *Scheduler) every(ctx context.Context, d time.Duration, fn func()) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// CollectOnce runs one collection tick over every active sensor. Each due
// sensor gets its own read goroutine, with at most readConcurrency reads
// running at once. The tick does not wait for them, and a sensor whose
// previous read is still running skips this tick.
func (s *Scheduler) CollectOnce(ctx context.Context) {
	res := s.Current()
	if res == nil {
		return
	}
	for _, rt := range res.Registry.Runtimes() {
		if !rt.Active() || !rt.Due() {
			continue
		}
		if !rt.TryBeginRead() {
			metrics.SensorReads.WithLabelValues(rt.Key(), "busy").Inc()
			continue
		}
		s.reads.Add(1)
		go func() {
			defer s.reads.Done()
			defer rt.EndRead()
			select {
			case s.readSlots <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-s.readSlots }()
			s.collect(ctx, rt)
		}()
	}
}

// WaitReads blocks until every read started by CollectOnce has finished.
func (s *Scheduler) WaitReads() {
	s.reads.Wait()
}

func (s *Scheduler) collect(ctx context.Context, rt *sensor.Runtime) {
	if s.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.readTimeout)
		defer cancel()
	}
	start := time.Now()
	wasErrored := rt.Errored()
	res := rt.Read(ctx)
	metrics.ReadDuration.Observe(time.Since(start).Seconds())
	switch {
	case res.Err == nil:
		metrics.SensorReads.WithLabelValues(rt.Key(), "ok").Inc()
		if wasErrored {
			s.logger.WithSensor(rt.Key()).Info("sensor recovered")
		}
	case errors.Is(res.Err, cerrors.ErrReadTimeout):
		metrics.SensorReads.WithLabelValues(rt.Key(), "timeout").Inc()
	default:
		metrics.SensorReads.WithLabelValues(rt.Key(), "error").Inc()
	}
	if res.Err != nil && !wasErrored {
		s.logger.WithSensor(rt.Key()).Warn("sensor read failed", zap.Error(res.Err))
	}
	if res.Overwrote {
		metrics.PendingOverwrites.WithLabelValues(rt.Key()).Inc()
	}
}

// ProcessOnce drains every pending cell and notifies observers.
func (s *Scheduler) ProcessOnce(now time.Time) {
	res := s.Current()
	if res == nil {
		return
	}
	for _, rt := range res.Registry.Runtimes() {
		rt.Process()
	}
	for _, obs := range s.observers {
		s.notify(obs, res, now)
	}
}

func (s *Scheduler) notify(obs Observer, res *profile.Result, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Sprintf("observer %T panicked: %v", obs, r), zap.ByteString("stack", debug.Stack()))
		}
	}()
	obs.OnProcessed(res, now)
}

// ReloadOnce re-reads the device configuration and recomposes when the
// product table, the product's profile file or the product itself changed.
func (s *Scheduler) ReloadOnce() (bool, error) {
	if s.composer == nil || s.config == nil {
		return false, nil
	}
	if _, err := s.config.Reload(); err != nil {
		s.logger.Warn("device config reload failed, keeping previous values", zap.Error(err))
	}

	cur := s.Current()
	product := s.config.Product()
	productDigest := s.config.SectionDigest(deviceconf.SectionProduct)
	fileDigest, derr := s.composer.Digest(product)

	changed := cur == nil ||
		product != cur.Product ||
		productDigest != s.productDigest ||
		(derr == nil && fileDigest != cur.Digest) ||
		(derr != nil && !cur.Fallback)
	if !changed {
		return false, nil
	}

	next, err := s.composer.Compose(s.config)
	if err != nil {
		return false, errors.Wrap(err, "failed to recompose profile")
	}
	s.productDigest = productDigest
	s.Swap(next)
	s.logger.Info("registry recomposed",
		zap.String("product", next.Product),
		zap.Bool("fallback", next.Fallback),
		zap.Int("sensors", next.Registry.Len()),
		zap.Int("viewers", len(next.Viewers)))
	return true, nil
}
