package redis_client

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/gadgetini/display-agent/internal/config"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/utilities"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Options struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	PoolSize     int
	MinIdleConns int
	TLSConfig    *tls.Config
}

type Option func(*Options)

func WithAddr(addr string) Option {
	return func(o *Options) { o.Addr = addr }
}

func WithPassword(password string) Option {
	return func(o *Options) { o.Password = password }
}

func WithDB(db int) Option {
	return func(o *Options) { o.DB = db }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) { o.ReadTimeout = d }
}

func WithPoolSize(size, minIdle int) Option {
	return func(o *Options) { o.PoolSize, o.MinIdleConns = size, minIdle }
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *Options) { o.TLSConfig = cfg }
}

// The sensor hub publishes a few dozen keys; a small pool is plenty.
func defaultOptionsFromViper() Options {
	return Options{
		Addr:         utilities.ReadString(config.RedisAddr, constants.RedisDefaultAddr),
		Password:     viper.GetString(config.RedisPassword),
		DB:           viper.GetInt(config.RedisDB),
		DialTimeout:  utilities.ReadDuration(config.RedisDialTimeout, constants.RedisDefaultDialTimeout),
		ReadTimeout:  utilities.ReadDuration(config.SourceReadTimeout, constants.DefaultSourceReadTimeout),
		PoolSize:     constants.DefaultSourceReadConcurrency * 2,
		MinIdleConns: 1,
	}
}

var (
	once    sync.Once
	client  *redis.Client
	initErr error
)

// NewRedisClient connects the singleton and pings it. The first call fixes the
// configuration; later calls return the first call's outcome.
func NewRedisClient(ctx context.Context, optFns ...Option) error {
	once.Do(func() {
		conf := defaultOptionsFromViper()
		for _, fn := range optFns {
			if fn != nil {
				fn(&conf)
			}
		}

		c := redis.NewClient(&redis.Options{
			Addr:         conf.Addr,
			Password:     conf.Password,
			DB:           conf.DB,
			DialTimeout:  conf.DialTimeout,
			ReadTimeout:  conf.ReadTimeout,
			PoolSize:     conf.PoolSize,
			MinIdleConns: conf.MinIdleConns,
			TLSConfig:    conf.TLSConfig,
		})

		pingCtx, cancel := context.WithTimeout(ctx, conf.DialTimeout)
		defer cancel()
		if err := c.Ping(pingCtx).Err(); err != nil {
			_ = c.Close()
			initErr = errors.Wrapf(err, "failed to connect to redis at %s", conf.Addr)
			return
		}
		client = c
	})
	return initErr
}

func Client() *redis.Client {
	if client == nil {
		panic("redis client not initialized; call NewRedisClient first")
	}
	return client
}

func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}
