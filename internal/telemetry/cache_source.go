package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "telemetry:"

// CacheSource serves readings pushed into a local ristretto cache. Every
// value expires after ttl so a silent publisher turns into read errors
// rather than a frozen graph.
type CacheSource struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCacheSource(cache *ristretto.Cache, ttl time.Duration) *CacheSource {
	return &CacheSource{cache: cache, ttl: ttl}
}

// Ingest stores a reading. Writes are buffered by ristretto and become
// visible shortly after; call Wait when read-after-write is required.
func (s *CacheSource) Ingest(key, value string) bool {
	return s.cache.SetWithTTL(cacheKeyPrefix+key, value, int64(len(value)+len(key)), s.ttl)
}

// Wait blocks until buffered writes are applied.
func (s *CacheSource) Wait() {
	s.cache.Wait()
}

func (s *CacheSource) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.cache.Get(cacheKeyPrefix + key)
	if !ok {
		return "", false, nil
	}
	str, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("unexpected cached type %T for %q", v, key)
	}
	return str, true, nil
}

// MQTTSource feeds a CacheSource from an MQTT topic tree. A message on
// "<prefix>/<key>" stores its payload under key.
type MQTTSource struct {
	*CacheSource
	client mqtt.Client
	prefix string
	qos    byte
}

func NewMQTTSource(client mqtt.Client, cache *CacheSource, prefix string) *MQTTSource {
	return &MQTTSource{
		CacheSource: cache,
		client:      client,
		prefix:      strings.TrimSuffix(prefix, "/"),
		qos:         1,
	}
}

// Subscribe registers the topic handler. It returns once the broker has
// acknowledged the subscription or the timeout elapsed.
func (s *MQTTSource) Subscribe(timeout time.Duration) error {
	topic := s.prefix + "/#"
	tok := s.client.Subscribe(topic, s.qos, s.handle)
	if !tok.WaitTimeout(timeout) {
		return errors.Errorf("mqtt subscribe to %s timed out after %s", topic, timeout)
	}
	if err := tok.Error(); err != nil {
		return errors.Wrapf(err, "failed to subscribe to %s", topic)
	}
	log.Default().Info(fmt.Sprintf("Subscribed to telemetry topic [%s]", topic))
	return nil
}

// Unsubscribe removes the topic handler.
func (s *MQTTSource) Unsubscribe(timeout time.Duration) {
	tok := s.client.Unsubscribe(s.prefix + "/#")
	tok.WaitTimeout(timeout)
}

func (s *MQTTSource) handle(_ mqtt.Client, msg mqtt.Message) {
	key, ok := s.keyFromTopic(msg.Topic())
	if !ok {
		return
	}
	if !s.Ingest(key, strings.TrimSpace(string(msg.Payload()))) {
		log.Default().Debug("Telemetry value dropped by cache admission", zap.String("key", key))
	}
}

func (s *MQTTSource) keyFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, s.prefix+"/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}
