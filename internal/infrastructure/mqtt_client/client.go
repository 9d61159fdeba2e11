package mqtt_client

import (
	"crypto/tls"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gadgetini/display-agent/internal/config"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/utilities"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func isSecureScheme(u string) bool {
	s := strings.ToLower(u)
	return strings.HasPrefix(s, "mqtts://") || strings.HasPrefix(s, "ssl://") ||
		strings.HasPrefix(s, "tls://") || strings.HasPrefix(s, "wss://")
}

var defaultPublishHandler mqtt.MessageHandler = func(_ mqtt.Client, msg mqtt.Message) {
	log.Component("mqtt").Debug("unrouted mqtt message", zap.String("topic", msg.Topic()))
}

var defaultConnLostHandler mqtt.ConnectionLostHandler = func(_ mqtt.Client, err error) {
	log.Component("mqtt").Warn("mqtt connection lost", zap.Error(err))
}

var defaultReconnectHandler mqtt.ReconnectHandler = func(_ mqtt.Client, _ *mqtt.ClientOptions) {
	log.Component("mqtt").Info("mqtt reconnecting")
}

type Options struct {
	PublishHandler        mqtt.MessageHandler
	ConnectionLostHandler mqtt.ConnectionLostHandler
	ReconnectHandler      mqtt.ReconnectHandler

	// OnConnect runs after every successful (re)connect; subscriptions are
	// restored there.
	OnConnect            mqtt.OnConnectHandler
	CleanSession         bool
	AutoReconnect        bool
	ConnectRetry         bool
	ResumeSubs           bool
	TLSInsecureSkip      bool
	WriteTimeout         time.Duration
	KeepAlive            time.Duration
	PingTimeout          time.Duration
	MaxReconnectInterval time.Duration
	ConnectTimeout       time.Duration
	ConnectRetryInterval time.Duration

	TLSConfig *tls.Config
}

type Option func(*Options)

func WithPublishHandler(h mqtt.MessageHandler) Option {
	return func(o *Options) { o.PublishHandler = h }
}

func WithConnectionLostHandler(h mqtt.ConnectionLostHandler) Option {
	return func(o *Options) { o.ConnectionLostHandler = h }
}

func WithReconnectHandler(h mqtt.ReconnectHandler) Option {
	return func(o *Options) { o.ReconnectHandler = h }
}

func WithOnConnect(h mqtt.OnConnectHandler) Option {
	return func(o *Options) { o.OnConnect = h }
}

func WithCleanSession(v bool) Option {
	return func(o *Options) { o.CleanSession = v }
}

func WithAutoReconnect(v bool) Option {
	return func(o *Options) { o.AutoReconnect = v }
}

func WithTLSInsecureSkipVerify(v bool) Option {
	return func(o *Options) { o.TLSInsecureSkip = v }
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectTimeout = d }
}

func WithKeepAlive(d time.Duration) Option {
	return func(o *Options) { o.KeepAlive = d }
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *Options) { o.TLSConfig = cfg }
}

func defaultOptionsFromViper() Options {
	return Options{
		PublishHandler:        defaultPublishHandler,
		ConnectionLostHandler: defaultConnLostHandler,
		ReconnectHandler:      defaultReconnectHandler,
		CleanSession:          utilities.ReadBool(config.MqttCleanSession, true),
		AutoReconnect:         utilities.ReadBool(config.MqttAutoReconnect, true),
		ConnectRetry:          utilities.ReadBool(config.MqttConnectRetry, true),
		ResumeSubs:            utilities.ReadBool(config.MqttResumeSubs, true),
		TLSInsecureSkip:       utilities.ReadBool(config.MqttTLSInsecureSkipVerify, false),
		WriteTimeout:          utilities.ReadDuration(config.MqttWriteTimeout, constants.MqttDefaultWriteTimeout),
		KeepAlive:             utilities.ReadDuration(config.MqttKeepAliveDuration, constants.MqttDefaultKeepAlive),
		PingTimeout:           utilities.ReadDuration(config.MqttPingTimeout, constants.MqttDefaultPingTimeout),
		MaxReconnectInterval:  utilities.ReadDuration(config.MqttMaxConnectInterval, constants.MqttDefaultMaxReconnectInterval),
		ConnectTimeout:        utilities.ReadDuration(config.MqttConnectTimeout, constants.MqttDefaultConnectTimeout),
		ConnectRetryInterval:  utilities.ReadDuration(config.MqttConnectRetryInterval, constants.MqttDefaultConnectRetryInterval),
	}
}

// ClientOptions turns Options into paho options for the given broker.
func ClientOptions(endpoint, clientID string, conf Options) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(endpoint).
		SetClientID(clientID).
		SetDefaultPublishHandler(conf.PublishHandler).
		SetConnectionLostHandler(conf.ConnectionLostHandler).
		SetReconnectingHandler(conf.ReconnectHandler).
		SetCleanSession(conf.CleanSession).
		SetAutoReconnect(conf.AutoReconnect).
		SetConnectRetry(conf.ConnectRetry).
		SetConnectRetryInterval(conf.ConnectRetryInterval).
		SetMaxReconnectInterval(conf.MaxReconnectInterval).
		SetWriteTimeout(conf.WriteTimeout).
		SetKeepAlive(conf.KeepAlive).
		SetPingTimeout(conf.PingTimeout).
		SetResumeSubs(conf.ResumeSubs).
		SetConnectTimeout(conf.ConnectTimeout)
	if conf.OnConnect != nil {
		opts.SetOnConnectHandler(conf.OnConnect)
	}
	switch {
	case conf.TLSConfig != nil:
		opts.SetTLSConfig(conf.TLSConfig)
	case isSecureScheme(endpoint):
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: conf.TLSInsecureSkip}) // #nosec G402
	}
	return opts
}

var (
	once    sync.Once
	client  mqtt.Client
	initErr error
)

// NewMQTTClient connects the singleton client. With ConnectRetry enabled paho
// keeps retrying in the background, so a timeout here is not fatal.
func NewMQTTClient(endpoint, clientID string, optFns ...Option) error {
	once.Do(func() {
		conf := defaultOptionsFromViper()
		for _, fn := range optFns {
			if fn != nil {
				fn(&conf)
			}
		}

		c := mqtt.NewClient(ClientOptions(endpoint, clientID, conf))
		tok := c.Connect()
		if !tok.WaitTimeout(conf.ConnectTimeout) {
			if !conf.ConnectRetry {
				initErr = errors.Errorf("mqtt connect timeout after %s", conf.ConnectTimeout)
				return
			}
			log.Component("mqtt").Warn("mqtt broker not reachable yet, retrying in background",
				zap.String("endpoint", endpoint))
		} else if err := tok.Error(); err != nil {
			initErr = errors.Wrapf(err, "mqtt connect to %s", endpoint)
			return
		}
		client = c
	})
	return initErr
}

func Client() mqtt.Client {
	if client == nil {
		panic("mqtt client not initialized")
	}
	return client
}

// Disconnect waits up to quiesce for in-flight work.
func Disconnect(quiesce time.Duration) {
	if client == nil {
		return
	}
	client.Disconnect(uint(quiesce.Milliseconds()))
}
