package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gadgetini/display-agent/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock, string) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "history.json")
	opts = append([]Option{WithPath(path), WithClock(clock.now), WithInterval(10 * time.Minute), WithCapacity(3)}, opts...)
	return New(opts...), clock, path
}

func TestFlushRecordsRoundedPeak(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.Accumulate("coolant_temp", 30.111)
	s.Accumulate("coolant_temp", 34.567)
	s.Accumulate("coolant_temp", 29)
	require.NoError(t, s.Flush())

	assert.Equal(t, []float64{34.57}, s.Get("coolant_temp"))
	assert.Equal(t, []string{"coolant_temp"}, s.Keys())

	require.NoError(t, s.Flush())
	assert.Equal(t, []float64{34.57}, s.Get("coolant_temp"), "keys without samples are not appended")
}

func TestCapacityEvictsOldest(t *testing.T) {
	s, _, _ := newTestStore(t)
	for i := 1; i <= 5; i++ {
		s.Accumulate("k", float64(i))
		require.NoError(t, s.Flush())
		assert.LessOrEqual(t, len(s.Get("k")), 3)
	}
	assert.Equal(t, []float64{3, 4, 5}, s.Get("k"))
}

func TestTickWaitsForInterval(t *testing.T) {
	s, clock, _ := newTestStore(t)
	s.Accumulate("k", 1)

	clock.advance(9 * time.Minute)
	assert.False(t, s.Tick())
	assert.Empty(t, s.Get("k"))

	clock.advance(time.Minute)
	assert.True(t, s.Tick())
	assert.Equal(t, []float64{1}, s.Get("k"))

	clock.advance(time.Minute)
	assert.False(t, s.Tick())
}

func TestPersistenceRoundTrip(t *testing.T) {
	s, _, path := newTestStore(t)
	s.Accumulate("a", 1.5)
	s.Accumulate("b", -2)
	require.NoError(t, s.Flush())
	s.Accumulate("a", 2.25)
	require.NoError(t, s.Flush())

	reloaded := New(WithPath(path), WithCapacity(3))
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "history.json", entries[0].Name())
}

func TestLoadTruncatesToCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	data, err := json.Marshal(map[string][]float64{"k": {1, 2, 3, 4, 5}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s := New(WithPath(path), WithCapacity(2))
	assert.Equal(t, []float64{4, 5}, s.Get("k"))
}

func TestLoadCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(WithPath(path))
	assert.Empty(t, s.Keys())
}

func TestOnProcessedAccumulatesLatest(t *testing.T) {
	s, clock, _ := newTestStore(t)
	reg := sensor.NewRegistry()
	rt := sensor.NewRuntime(sensor.Spec{Key: "coolant_temp", RedisKey: "coolant_temp", ReadRate: 1}, nil, 10)
	empty := sensor.NewRuntime(sensor.Spec{Key: "never_read", RedisKey: "x", ReadRate: 1}, nil, 10)
	reg.Put(rt)
	reg.Put(empty)

	for _, v := range []float64{31, 36, 33} {
		rt.Offer(v)
		rt.Process()
		s.OnProcessed(reg, clock.now())
	}
	clock.advance(10 * time.Minute)
	s.OnProcessed(reg, clock.now())

	assert.Equal(t, []float64{36}, s.Get("coolant_temp"))
	assert.Empty(t, s.Get("never_read"))
}

func TestCloseFlushesPending(t *testing.T) {
	s, _, path := newTestStore(t)
	s.Accumulate("k", 7)
	require.NoError(t, s.Close())

	reloaded := New(WithPath(path))
	assert.Equal(t, []float64{7}, reloaded.Get("k"))
}

type fakeS3 struct {
	mu     sync.Mutex
	bodies [][]byte
	bucket string
	key    string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body := make([]byte, *in.ContentLength)
	_, _ = in.Body.Read(body)
	f.bodies = append(f.bodies, body)
	f.bucket, f.key = *in.Bucket, *in.Key
	return &s3.PutObjectOutput{}, nil
}

func TestMirrorReceivesSnapshots(t *testing.T) {
	fake := &fakeS3{}
	s, _, _ := newTestStore(t, WithMirror(NewS3Mirror(fake, "racks", "node1/history.json")))
	s.Accumulate("k", 1)
	require.NoError(t, s.Close())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.bodies, 1)
	assert.JSONEq(t, `{"k":[1]}`, string(fake.bodies[0]))
	assert.Equal(t, "racks", fake.bucket)
	assert.Equal(t, "node1/history.json", fake.key)
}
