package display

import (
	"sync"
	"testing"
	"time"

	"github.com/gadgetini/display-agent/internal/deviceconf"
	"github.com/gadgetini/display-agent/internal/profile"
	"github.com/gadgetini/display-agent/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLeakAlertDebounce(t *testing.T) {
	a := NewLeakAlert(5 * time.Second)

	_, to := a.Update(true, t0)
	assert.Equal(t, AlertSuspect, to)
	_, to = a.Update(true, t0.Add(4*time.Second))
	assert.Equal(t, AlertSuspect, to)
	assert.False(t, a.Active())

	from, to := a.Update(true, t0.Add(5*time.Second))
	assert.Equal(t, AlertSuspect, from)
	assert.Equal(t, AlertActive, to)
	assert.Equal(t, t0, *a.Since())

	_, to = a.Update(false, t0.Add(6*time.Second))
	assert.Equal(t, AlertNormal, to)
	assert.Nil(t, a.Since())
}

func TestLeakAlertFlickerNeverActivates(t *testing.T) {
	a := NewLeakAlert(5 * time.Second)
	now := t0
	for i := 0; i < 20; i++ {
		a.Update(true, now)
		now = now.Add(3 * time.Second)
		a.Update(false, now)
		assert.False(t, a.Active())
	}
}

func TestRotationWraps(t *testing.T) {
	r := NewRotation(3)
	var got []int
	for i := 0; i < 10; i++ {
		got = append(got, r.Tick(3))
	}
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1, 2, 2, 2, 0}, got)
}

func TestRotationFirstTickNeverAdvances(t *testing.T) {
	r := NewRotation(1)
	assert.Equal(t, 0, r.Tick(4))
	assert.Equal(t, 1, r.Tick(4))
}

func TestRotationEmptyAndShrinking(t *testing.T) {
	r := NewRotation(2)
	assert.Equal(t, NoViewer, r.Tick(0))

	var got []int
	for i := 0; i < 4; i++ {
		got = append(got, r.Tick(3))
	}
	assert.Equal(t, []int{0, 1, 1, 2}, got)

	assert.Equal(t, 1, r.Tick(2), "index clamped to the shorter list")
	assert.Equal(t, NoViewer, r.Tick(0))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []LeakEvent
}

func (p *recordingPublisher) PublishLeak(ev LeakEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func testResult(t *testing.T) (*profile.Result, *sensor.Runtime) {
	t.Helper()
	reg := sensor.NewRegistry()
	leak := sensor.NewRuntime(sensor.Spec{Key: "coolant_leak", RedisKey: "coolant_leak", ReadRate: 1}, nil, 10)
	reg.Put(leak)
	viewers := []profile.Viewer{
		{Key: "chassis_info", Type: profile.TypeSensorViewer},
		{Key: "xpu_info", Type: profile.TypeSensorViewer},
		{Key: "cpu_info", Type: profile.TypeSensorViewer},
	}
	return &profile.Result{Product: "dg5w", LeakSensor: "coolant_leak", Registry: reg, Viewers: viewers}, leak
}

func TestControllerFiltersAndRotates(t *testing.T) {
	res, _ := testResult(t)
	cfg := deviceconf.FromMap(map[string]map[string]any{"display": {
		"chassis_info": "on", "xpu_info": "off", "cpu_info": "on", "orientation": "horizontal",
	}})
	c := NewController(WithToggles(cfg), WithFPS(2), WithRotationInterval(time.Second), WithAddress(func() string { return "10.0.0.7" }))

	c.OnProcessed(res, t0)
	st := c.Current()
	assert.Equal(t, ModeViewer, st.Mode)
	assert.Equal(t, []string{"chassis_info", "cpu_info"}, st.EnabledViewers)
	assert.Equal(t, "chassis_info", st.Viewer.Key)
	assert.Equal(t, "10.0.0.7", st.IPAddress)
	assert.Equal(t, "horizontal", st.Orientation)

	c.OnProcessed(res, t0)
	c.OnProcessed(res, t0)
	assert.Equal(t, "cpu_info", c.Current().Viewer.Key)
	assert.Equal(t, 0, c.Current().Frame)
}

func TestControllerSkipsViewersWithoutToggle(t *testing.T) {
	res, _ := testResult(t)
	cfg := deviceconf.FromMap(map[string]map[string]any{"display": {"cpu_info": "on"}})
	c := NewController(WithToggles(cfg))

	c.OnProcessed(res, t0)
	st := c.Current()
	assert.Equal(t, []string{"cpu_info"}, st.EnabledViewers)
	assert.Equal(t, "cpu_info", st.Viewer.Key)
}

func TestControllerIdleWithoutViewers(t *testing.T) {
	res, _ := testResult(t)
	res.Viewers = nil
	c := NewController()
	c.OnProcessed(res, t0)
	assert.Equal(t, ModeIdle, c.Current().Mode)
	assert.Equal(t, NoViewer, c.Current().Index)
	assert.Nil(t, c.Current().Viewer)
}

func TestControllerLeakOverridesRotation(t *testing.T) {
	res, leak := testResult(t)
	pub := &recordingPublisher{}
	c := NewController(WithPublisher(pub), WithLeakThreshold(5*time.Second), WithIdentity("rack-7", "v1"))

	leak.Offer(1)
	leak.Process()
	c.OnProcessed(res, t0)
	assert.Equal(t, ModeViewer, c.Current().Mode)
	assert.Equal(t, "suspect", c.Current().Leak.State)

	c.OnProcessed(res, t0.Add(5*time.Second))
	assert.Equal(t, ModeAlert, c.Current().Mode)
	assert.True(t, c.Current().Leak.Active)

	leak.Offer(0.2)
	leak.Process()
	c.OnProcessed(res, t0.Add(6*time.Second))
	assert.Equal(t, ModeViewer, c.Current().Mode)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 3)
	assert.Equal(t, "active", pub.events[1].To)
	assert.Equal(t, "rack-7", pub.events[1].AgentID)
	assert.Equal(t, "normal", pub.events[2].To)
}

func TestLeakSignal(t *testing.T) {
	res, leak := testResult(t)
	assert.False(t, LeakSignal(res.Registry, "coolant_leak"))
	assert.False(t, LeakSignal(res.Registry, "missing"))
	assert.False(t, LeakSignal(nil, "coolant_leak"))

	leak.Offer(0.5)
	leak.Process()
	assert.False(t, LeakSignal(res.Registry, "coolant_leak"))

	leak.Offer(0.7)
	leak.Process()
	assert.True(t, LeakSignal(res.Registry, "coolant_leak"))
}
