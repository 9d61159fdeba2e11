package s3_client

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gadgetini/display-agent/internal/config"
	"github.com/gadgetini/display-agent/internal/utilities"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var (
	client *s3.Client
	once   sync.Once
)

type Options struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	Endpoint         string // e.g. "https://minio.rack.local:9000"
	UsePathStyle     bool
	HTTPClient       *http.Client
	RetryMaxAttempts int
	RetryMaxBackoff  time.Duration
}

// Client returns the singleton S3 client (after NewS3Client).
func Client() *s3.Client {
	if client == nil {
		panic("s3 client not initialized; call NewS3Client first")
	}
	return client
}

type Option func(*Options)

func WithRegion(r string) Option { return func(o *Options) { o.Region = r } }

func WithStaticCredentials(id, secret, token string) Option {
	return func(o *Options) { o.AccessKeyID, o.SecretAccessKey, o.SessionToken = id, secret, token }
}

func WithEndpoint(endpoint string, pathStyle bool) Option {
	return func(o *Options) { o.Endpoint, o.UsePathStyle = endpoint, pathStyle }
}

func WithHTTPClient(h *http.Client) Option { return func(o *Options) { o.HTTPClient = h } }

func WithRetry(maxAttempts int, maxBackoff time.Duration) Option {
	return func(o *Options) { o.RetryMaxAttempts, o.RetryMaxBackoff = maxAttempts, maxBackoff }
}

// OptionsFromViper reads the [s3] table. Self-signed on-prem object stores
// are common next to the racks, hence the insecure switch.
func OptionsFromViper() []Option {
	opts := []Option{
		WithRegion(utilities.ReadString(config.S3Region, "us-east-1")),
		WithStaticCredentials(viper.GetString(config.S3AccessKey), viper.GetString(config.S3SecretKey), ""),
		WithRetry(3, 5*time.Second),
	}
	if ep := viper.GetString(config.S3Endpoint); ep != "" {
		opts = append(opts, WithEndpoint(ep, utilities.ReadBool(config.S3UsePathStyle, true)))
	}
	if utilities.ReadBool(config.S3TLSInsecureSkipVerify, false) {
		opts = append(opts, WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402
			},
		}))
	}
	return opts
}

func NewS3Client(ctx context.Context, opts ...Option) error {
	conf := Options{}
	for _, fn := range opts {
		fn(&conf)
	}

	awsCfg, err := loadAWSConfig(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "failed to load aws config")
	}

	once.Do(func() {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = conf.UsePathStyle
			if conf.Endpoint != "" {
				o.BaseEndpoint = aws.String(conf.Endpoint)
			}
		})
	})
	return nil
}

func loadAWSConfig(ctx context.Context, o Options) (aws.Config, error) {
	var lo []func(*awscfg.LoadOptions) error

	if o.Region != "" {
		lo = append(lo, awscfg.WithRegion(o.Region))
	}
	if o.HTTPClient != nil {
		lo = append(lo, awscfg.WithHTTPClient(o.HTTPClient))
	}
	if o.AccessKeyID != "" {
		creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, o.SessionToken))
		lo = append(lo, awscfg.WithCredentialsProvider(creds))
	}
	if o.RetryMaxAttempts > 0 {
		lo = append(lo, awscfg.WithRetryer(func() aws.Retryer {
			r := retry.AddWithMaxAttempts(retry.NewStandard(), o.RetryMaxAttempts)
			if o.RetryMaxBackoff > 0 {
				r = retry.AddWithMaxBackoffDelay(r, o.RetryMaxBackoff)
			}
			return r
		}))
	}

	return awscfg.LoadDefaultConfig(ctx, lo...)
}
