package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/deviceconf"
	"github.com/gadgetini/display-agent/internal/profile"
	"github.com/gadgetini/display-agent/internal/sensor"
	"github.com/gadgetini/display-agent/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultFor(src telemetry.Source, keys ...string) *profile.Result {
	reg := sensor.NewRegistry()
	for _, k := range keys {
		reg.Put(sensor.NewRuntime(sensor.Spec{Key: k, RedisKey: k, ReadRate: 1}, src, 5))
	}
	return &profile.Result{Product: "dg5w", Registry: reg}
}

func TestCollectAndProcess(t *testing.T) {
	src := telemetry.NewStaticSource(map[string]string{"a": "1", "b": "2"})
	var seen []*profile.Result
	s := New(resultFor(src, "a", "b"), WithObserver(ObserverFunc(func(res *profile.Result, _ time.Time) {
		seen = append(seen, res)
	})))

	s.CollectOnce(context.Background())
	s.WaitReads()
	s.ProcessOnce(time.Now())

	reg := s.Current().Registry
	va, ok := reg.Latest("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, va)
	vb, _ := reg.Latest("b")
	assert.Equal(t, 2.0, vb)
	require.Len(t, seen, 1)
	assert.Same(t, s.Current(), seen[0])
}

func TestCollectSkipsInactive(t *testing.T) {
	src := telemetry.NewStaticSource(map[string]string{"a": "1"})
	s := New(resultFor(src, "a"))
	rt, _ := s.Current().Registry.Get("a")
	rt.SetActive(false)

	s.CollectOnce(context.Background())
	s.WaitReads()
	s.ProcessOnce(time.Now())
	_, ok := rt.Latest()
	assert.False(t, ok)
}

func TestCollectTimesOutSlowReads(t *testing.T) {
	slow := telemetry.SourceFunc(func(ctx context.Context, _ string) (string, bool, error) {
		<-ctx.Done()
		return "", false, ctx.Err()
	})
	s := New(resultFor(slow, "a"), WithReadTimeout(20*time.Millisecond))

	start := time.Now()
	s.CollectOnce(context.Background())
	s.WaitReads()
	assert.Less(t, time.Since(start), time.Second)

	rt, _ := s.Current().Registry.Get("a")
	assert.True(t, rt.Errored())
	assert.Contains(t, rt.Snapshot().LastError, "timed out")
}

func TestCollectBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	src := telemetry.SourceFunc(func(context.Context, string) (string, bool, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return "1", true, nil
	})
	s := New(resultFor(src, "a", "b", "c", "d", "e", "f"), WithReadConcurrency(2))
	s.CollectOnce(context.Background())
	s.WaitReads()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSlowSensorDoesNotThrottleOthers(t *testing.T) {
	var slowReads, fastReads atomic.Int32
	src := telemetry.SourceFunc(func(ctx context.Context, key string) (string, bool, error) {
		if key == "slow" {
			slowReads.Add(1)
			<-ctx.Done()
			return "", false, ctx.Err()
		}
		fastReads.Add(1)
		return "1", true, nil
	})
	s := New(resultFor(src, "slow", "fast"), WithFPS(15), WithReadTimeout(500*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	// 2s at 15 ticks per second is about 30 reads.
	assert.GreaterOrEqual(t, fastReads.Load(), int32(20))
	assert.Less(t, slowReads.Load(), fastReads.Load())

	slow, _ := s.Current().Registry.Get("slow")
	assert.True(t, slow.Errored())
	fast, _ := s.Current().Registry.Get("fast")
	assert.False(t, fast.Errored())
}

func TestCollectOnceDoesNotWaitForReads(t *testing.T) {
	release := make(chan struct{})
	src := telemetry.SourceFunc(func(context.Context, string) (string, bool, error) {
		<-release
		return "1", true, nil
	})
	s := New(resultFor(src, "a"), WithReadTimeout(0))

	start := time.Now()
	s.CollectOnce(context.Background())
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// The previous read is still running, so this tick skips the sensor.
	s.CollectOnce(context.Background())
	close(release)
	s.WaitReads()
	s.ProcessOnce(time.Now())

	rt, _ := s.Current().Registry.Get("a")
	assert.Equal(t, []float64{1}, rt.Window())
	assert.Zero(t, rt.Overwrites())
}

func TestSwapIsPickedUpOnNextTick(t *testing.T) {
	src := telemetry.NewStaticSource(map[string]string{"a": "1", "z": "9"})
	s := New(resultFor(src, "a"))
	old := s.Swap(resultFor(src, "z"))
	require.NotNil(t, old)

	s.CollectOnce(context.Background())
	s.WaitReads()
	s.ProcessOnce(time.Now())
	v, ok := s.Current().Registry.Latest("z")
	require.True(t, ok)
	assert.Equal(t, 9.0, v)
	_, ok = old.Registry.Latest("a")
	assert.False(t, ok)
}

func TestObserverPanicDoesNotStopOthers(t *testing.T) {
	called := false
	s := New(resultFor(nil),
		WithObserver(ObserverFunc(func(*profile.Result, time.Time) { panic("boom") })),
		WithObserver(RegistryObserverFunc(func(*sensor.Registry, time.Time) { called = true })),
	)
	assert.NotPanics(t, func() { s.ProcessOnce(time.Now()) })
	assert.True(t, called)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := telemetry.NewStaticSource(map[string]string{"a": "4"})
	var mu sync.Mutex
	ticks := 0
	s := New(resultFor(src, "a"), WithFPS(100), WithObserver(ObserverFunc(func(*profile.Result, time.Time) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	mu.Lock()
	assert.Greater(t, ticks, 0)
	mu.Unlock()
	v, ok := s.Current().Registry.Latest("a")
	require.True(t, ok)
	assert.Equal(t, 4.0, v)
}

const reloadProfile = `{
  "sensors": [{"key": "coolant_temp", "title": "Coolant", "unit": "C", "min": 0, "max": 50, "redis_key": "coolant_temp"}],
  "sensor_templates": [{"key": "gpu{i}_temp", "title": "GPU{i}", "unit": "C", "min": 0, "max": 100, "redis_key": "gpu{i}_temp", "count": "gpu_count"}],
  "viewers": [{"key": "main", "type": "SensorViewer", "params": {"title": "Main", "sensor_key": "coolant_temp", "sub1_key": "coolant_temp", "sub2_key": "coolant_temp"}}]
}`

func TestReloadOnlyOnRelevantChanges(t *testing.T) {
	dir := t.TempDir()
	profilePath := filepath.Join(dir, "dg5w.json")
	devicePath := filepath.Join(dir, "device.toml")
	require.NoError(t, os.WriteFile(profilePath, []byte(reloadProfile), 0o644))
	require.NoError(t, os.WriteFile(devicePath, []byte("[product]\nname = \"dg5w\"\ngpu_count = 2\n"), 0o644))

	cfg := deviceconf.New(devicePath)
	_, err := cfg.Reload()
	require.NoError(t, err)
	composer := profile.NewComposer(profile.WithProfileDir(dir))
	initial, err := composer.Compose(cfg)
	require.NoError(t, err)
	require.Equal(t, 3, initial.Registry.Len())

	s := New(initial, WithReload(composer, cfg, time.Second))

	swapped, err := s.ReloadOnce()
	require.NoError(t, err)
	assert.False(t, swapped, "nothing changed")

	require.NoError(t, os.WriteFile(devicePath, []byte("[display]\nmain = \"off\"\n[product]\nname = \"dg5w\"\ngpu_count = 2\n"), 0o644))
	swapped, err = s.ReloadOnce()
	require.NoError(t, err)
	assert.False(t, swapped, "display toggles apply without recomposing")
	assert.Same(t, initial, s.Current())

	require.NoError(t, os.WriteFile(devicePath, []byte("[product]\nname = \"dg5w\"\ngpu_count = 4\n"), 0o644))
	swapped, err = s.ReloadOnce()
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, 5, s.Current().Registry.Len())

	require.NoError(t, os.WriteFile(profilePath, []byte(`{"sensors": [`), 0o644))
	swapped, err = s.ReloadOnce()
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.True(t, s.Current().Fallback)

	swapped, err = s.ReloadOnce()
	require.NoError(t, err)
	assert.False(t, swapped, "broken file unchanged, stay on fallback")
}

func TestReloadUnknownProductKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	devicePath := filepath.Join(dir, "device.toml")
	require.NoError(t, os.WriteFile(devicePath, []byte("[product]\nname = \"dg5w\"\n"), 0o644))
	cfg := deviceconf.New(devicePath)
	_, err := cfg.Reload()
	require.NoError(t, err)

	composer := profile.NewComposer(profile.WithProfileDir(dir))
	initial, err := composer.Compose(cfg)
	require.NoError(t, err)
	s := New(initial, WithReload(composer, cfg, time.Second))

	require.NoError(t, os.WriteFile(devicePath, []byte("[product]\nname = \"zz9\"\n"), 0o644))
	swapped, err := s.ReloadOnce()
	assert.False(t, swapped)
	assert.True(t, errors.Is(err, cerrors.ErrUnknownProduct))
	assert.Same(t, initial, s.Current())
}
