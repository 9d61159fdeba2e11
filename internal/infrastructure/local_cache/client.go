package local_cache

import (
	"sync"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
)

// Options sizes the cache. Telemetry values are short strings, each stored
// with cost 1, so MaxCost is effectively the number of sensor keys kept.
type Options struct {
	NumCounters            int64
	MaxCost                int64
	BufferItems            int64
	TtlTickerDurationInSec int64
	IgnoreInternalCost     bool
	Metrics                bool
	OnEvict                func(item *ristretto.Item)
	OnReject               func(item *ristretto.Item)
}

type Option func(*Options)

func WithMaxKeys(n int64) Option {
	return func(o *Options) {
		o.MaxCost = n
		o.NumCounters = n * 10
	}
}

func WithBufferItems(n int64) Option {
	return func(o *Options) { o.BufferItems = n }
}

func WithMetrics() Option {
	return func(o *Options) { o.Metrics = true }
}

func WithOnEvict(f func(item *ristretto.Item)) Option {
	return func(o *Options) { o.OnEvict = f }
}

func WithOnReject(f func(item *ristretto.Item)) Option {
	return func(o *Options) { o.OnReject = f }
}

func WithTtlTickerDurationInSec(d int64) Option {
	return func(o *Options) { o.TtlTickerDurationInSec = d }
}

func defaultOptions() Options {
	return Options{
		NumCounters:            10_000,
		MaxCost:                1_000,
		BufferItems:            64,
		TtlTickerDurationInSec: 1,
		IgnoreInternalCost:     true,
	}
}

// New builds a standalone cache with the same defaults as the singleton.
func New(opts ...Option) (*ristretto.Cache, error) {
	conf := defaultOptions()
	for _, fn := range opts {
		fn(&conf)
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:            conf.NumCounters,
		MaxCost:                conf.MaxCost,
		BufferItems:            conf.BufferItems,
		Metrics:                conf.Metrics,
		OnEvict:                conf.OnEvict,
		OnReject:               conf.OnReject,
		IgnoreInternalCost:     conf.IgnoreInternalCost,
		TtlTickerDurationInSec: conf.TtlTickerDurationInSec,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create local cache")
	}
	return c, nil
}

var (
	once    sync.Once
	cache   *ristretto.Cache
	initErr error
)

// NewLocalCache builds the singleton. The first call fixes the config.
func NewLocalCache(opts ...Option) error {
	once.Do(func() {
		cache, initErr = New(opts...)
	})
	return initErr
}

func Cache() *ristretto.Cache {
	if cache == nil {
		panic("local cache not initialized; call NewLocalCache first")
	}
	return cache
}
