// Package display decides what the panel shows: the leak alert overrides
// everything, otherwise enabled viewers rotate on a fixed cadence.
package display

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/metrics"
	"github.com/gadgetini/display-agent/internal/profile"
	"github.com/gadgetini/display-agent/internal/sensor"
	"go.uber.org/zap"
)

const (
	ModeAlert  = "alert"
	ModeViewer = "viewer"
	ModeIdle   = "idle"
)

// Toggles is the device configuration as seen by the controller.
type Toggles interface {
	ViewerEnabled(key string) bool
	Orientation() string
}

type LeakStatus struct {
	State  string     `json:"state"`
	Active bool       `json:"active"`
	Sensor string     `json:"sensor"`
	Since  *time.Time `json:"since,omitempty"`
}

// State is what the renderer draws next.
type State struct {
	Mode           string          `json:"mode"`
	Viewer         *profile.Viewer `json:"viewer,omitempty"`
	Index          int             `json:"index"`
	EnabledCount   int             `json:"enabled_count"`
	EnabledViewers []string        `json:"enabled_viewers"`
	Frame          int             `json:"frame"`
	Leak           LeakStatus      `json:"leak"`
	Product        string          `json:"product"`
	Fallback       bool            `json:"fallback"`
	Orientation    string          `json:"orientation"`
	IPAddress      string          `json:"ip_address"`
	Version        string          `json:"version"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Options struct {
	Toggles          Toggles
	Publisher        AlertPublisher
	Address          func() string
	AgentID          string
	Version          string
	FPS              int
	RotationInterval time.Duration
	LeakThreshold    time.Duration
	Logger           *log.Logger
}

type Option func(*Options)

func WithToggles(t Toggles) Option {
	return func(o *Options) { o.Toggles = t }
}

func WithPublisher(p AlertPublisher) Option {
	return func(o *Options) { o.Publisher = p }
}

func WithAddress(fn func() string) Option {
	return func(o *Options) { o.Address = fn }
}

func WithIdentity(agentID, version string) Option {
	return func(o *Options) { o.AgentID, o.Version = agentID, version }
}

func WithFPS(fps int) Option {
	return func(o *Options) { o.FPS = fps }
}

func WithRotationInterval(d time.Duration) Option {
	return func(o *Options) { o.RotationInterval = d }
}

func WithLeakThreshold(d time.Duration) Option {
	return func(o *Options) { o.LeakThreshold = d }
}

func WithLogger(l *log.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Controller owns the leak alert and rotation machines for the process
// lifetime; registry swaps only change what they are applied to.
type Controller struct {
	toggles      Toggles
	publisher    AlertPublisher
	address      func() string
	agentID      string
	version      string
	fps          int
	addressEvery int
	logger       *log.Logger

	mu       sync.Mutex
	leak     *LeakAlert
	rotation *Rotation
	ticks    int
	ip       string

	current atomic.Pointer[State]
}

func NewController(opts ...Option) *Controller {
	o := &Options{
		FPS:              constants.DefaultFPS,
		RotationInterval: constants.DefaultRotationInterval,
		LeakThreshold:    constants.DefaultLeakThreshold,
		Version:          constants.AgentDefaultVersion,
		Address:          func() string { return "" },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.FPS < 1 {
		o.FPS = constants.DefaultFPS
	}
	if o.Logger == nil {
		o.Logger = log.Component("display")
	}
	every := int(o.RotationInterval.Seconds() * float64(o.FPS))
	c := &Controller{
		toggles:      o.Toggles,
		publisher:    o.Publisher,
		address:      o.Address,
		agentID:      o.AgentID,
		version:      o.Version,
		fps:          o.FPS,
		addressEvery: max(1, int(constants.DefaultReloadInterval.Seconds()*float64(o.FPS))),
		logger:       o.Logger,
		leak:         NewLeakAlert(o.LeakThreshold),
		rotation:     NewRotation(every),
	}
	c.current.Store(&State{Mode: ModeIdle, Index: NoViewer, Version: o.Version, EnabledViewers: []string{}})
	return c
}

// Current returns the latest published state. The returned value must not be
// modified.
func (c *Controller) Current() *State {
	return c.current.Load()
}

// Enabled filters viewers by their display toggle.
func (c *Controller) Enabled(viewers []profile.Viewer) []profile.Viewer {
	if c.toggles == nil {
		return viewers
	}
	out := make([]profile.Viewer, 0, len(viewers))
	for _, v := range viewers {
		if c.toggles.ViewerEnabled(v.Key) {
			out = append(out, v)
		}
	}
	return out
}

// OnProcessed runs once per processing tick.
func (c *Controller) OnProcessed(res *profile.Result, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ticks%c.addressEvery == 0 {
		c.ip = c.address()
	}
	frame := c.ticks % c.fps
	c.ticks++

	enabled := c.Enabled(res.Viewers)
	signal := LeakSignal(res.Registry, res.LeakSensor)
	from, to := c.leak.Update(signal, now)
	if from != to {
		c.onTransition(res, from, to, now)
	}
	index := c.rotation.Tick(len(enabled))

	st := &State{
		Index:          index,
		EnabledCount:   len(enabled),
		EnabledViewers: make([]string, 0, len(enabled)),
		Frame:          frame,
		Leak: LeakStatus{
			State:  to.String(),
			Active: c.leak.Active(),
			Sensor: res.LeakSensor,
			Since:  c.leak.Since(),
		},
		Product:   res.Product,
		Fallback:  res.Fallback,
		IPAddress: c.ip,
		Version:   c.version,
		UpdatedAt: now,
	}
	if c.toggles != nil {
		st.Orientation = c.toggles.Orientation()
	}
	for _, v := range enabled {
		st.EnabledViewers = append(st.EnabledViewers, v.Key)
	}
	switch {
	case c.leak.Active():
		st.Mode = ModeAlert
	case index == NoViewer:
		st.Mode = ModeIdle
	default:
		st.Mode = ModeViewer
	}
	if index != NoViewer {
		v := enabled[index]
		st.Viewer = &v
	}
	c.current.Store(st)
	metrics.EnabledViewers.Set(float64(len(enabled)))
}

func (c *Controller) onTransition(res *profile.Result, from, to AlertState, now time.Time) {
	fields := []zap.Field{zap.String("sensor_key", res.LeakSensor), zap.String("from", from.String()), zap.String("to", to.String())}
	switch to {
	case AlertActive:
		c.logger.Error("coolant leak detected", fields...)
	case AlertSuspect:
		c.logger.Warn("coolant leak suspected", fields...)
	default:
		c.logger.Info("coolant leak alert cleared", fields...)
	}
	metrics.BoolGauge(metrics.LeakActive, to == AlertActive)

	if c.publisher == nil {
		return
	}
	err := c.publisher.PublishLeak(LeakEvent{
		AgentID:   c.agentID,
		Product:   res.Product,
		Sensor:    res.LeakSensor,
		From:      from.String(),
		To:        to.String(),
		Active:    to == AlertActive,
		Timestamp: now,
	})
	if err != nil {
		c.logger.Warn("failed to publish leak event", zap.Error(err))
	}
}

// LeakSignal reports whether the leak sensor's newest value rounds to a
// non-zero integer. A missing sensor or an empty window is no leak.
func LeakSignal(reg *sensor.Registry, key string) bool {
	v, ok := reg.Latest(key)
	if !ok {
		return false
	}
	return math.RoundToEven(v) != 0
}
