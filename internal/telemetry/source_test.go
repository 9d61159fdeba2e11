package telemetry

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgraph-io/ristretto"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFloat(t *testing.T) {
	src := NewStaticSource(map[string]string{
		"coolant_temp": " 31.5 ",
		"air_humit":    "n/a",
	})
	ctx := context.Background()

	v, err := ReadFloat(ctx, src, "coolant_temp")
	require.NoError(t, err)
	assert.Equal(t, 31.5, v)

	_, err = ReadFloat(ctx, src, "air_humit")
	assert.ErrorIs(t, err, cerrors.ErrMalformedReport)

	_, err = ReadFloat(ctx, src, "missing")
	assert.ErrorIs(t, err, cerrors.ErrNoData)
}

func TestReadFloat_Timeout(t *testing.T) {
	slow := SourceFunc(func(ctx context.Context, key string) (string, bool, error) {
		<-ctx.Done()
		return "", false, ctx.Err()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := ReadFloat(ctx, slow, "coolant_temp")
	assert.ErrorIs(t, err, cerrors.ErrReadTimeout)
}

func TestReadFloat_NetworkTimeout(t *testing.T) {
	src := SourceFunc(func(context.Context, string) (string, bool, error) {
		return "", false, &net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded}
	})
	_, err := ReadFloat(context.Background(), src, "coolant_temp")
	assert.ErrorIs(t, err, cerrors.ErrReadTimeout)

	refused := SourceFunc(func(context.Context, string) (string, bool, error) {
		return "", false, &net.OpError{Op: "dial", Net: "tcp", Err: os.ErrPermission}
	})
	_, err = ReadFloat(context.Background(), refused, "coolant_temp")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cerrors.ErrReadTimeout)
}

func TestRedisSource(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("coolant_temp_inlet1", "27.25"))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	src := NewRedisSource(client)

	val, found, err := src.Get(context.Background(), "coolant_temp_inlet1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "27.25", val)

	_, found, err = src.Get(context.Background(), "coolant_temp_inlet9")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheSource_IngestAndExpire(t *testing.T) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	require.NoError(t, err)
	defer cache.Close()

	src := NewCacheSource(cache, 50*time.Millisecond)
	src.Ingest("air_temp", "24.0")
	src.Wait()

	val, found, err := src.Get(context.Background(), "air_temp")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "24.0", val)

	time.Sleep(100 * time.Millisecond)
	_, found, _ = src.Get(context.Background(), "air_temp")
	assert.False(t, found, "expired values must read as missing")
}

func TestMQTTSource_KeyFromTopic(t *testing.T) {
	s := &MQTTSource{prefix: "gadgetini/telemetry"}

	key, ok := s.keyFromTopic("gadgetini/telemetry/gpu0_gpu_temp")
	assert.True(t, ok)
	assert.Equal(t, "gpu0_gpu_temp", key)

	_, ok = s.keyFromTopic("gadgetini/telemetry/")
	assert.False(t, ok)

	_, ok = s.keyFromTopic("other/gpu0_gpu_temp")
	assert.False(t, ok)
}

func TestSimulatedSource_Floor(t *testing.T) {
	src := NewSimulatedSource(7)
	src.Floor = 1.5
	for i := 0; i < 200; i++ {
		raw, found, err := src.Get(context.Background(), "air_temp")
		require.NoError(t, err)
		require.True(t, found)
		v, err := strconv.ParseFloat(raw, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 1.5)
	}
}
