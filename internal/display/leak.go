package display

import "time"

// AlertState is the leak alert's debounce state.
type AlertState int

const (
	AlertNormal AlertState = iota
	AlertSuspect
	AlertActive
)

func (s AlertState) String() string {
	switch s {
	case AlertSuspect:
		return "suspect"
	case AlertActive:
		return "active"
	default:
		return "normal"
	}
}

// LeakAlert debounces the leak signal: it becomes active only after the
// signal has been continuously true for threshold, and drops back to normal
// on the first false.
type LeakAlert struct {
	threshold  time.Duration
	dwellStart *time.Time
	active     bool
}

func NewLeakAlert(threshold time.Duration) *LeakAlert {
	return &LeakAlert{threshold: threshold}
}

// Update feeds one observation and returns the previous and new states.
func (a *LeakAlert) Update(signal bool, now time.Time) (from, to AlertState) {
	from = a.State()
	if !signal {
		a.dwellStart, a.active = nil, false
		return from, AlertNormal
	}
	if a.dwellStart == nil {
		start := now
		a.dwellStart = &start
	}
	if now.Sub(*a.dwellStart) >= a.threshold {
		a.active = true
	}
	return from, a.State()
}

func (a *LeakAlert) State() AlertState {
	switch {
	case a.active:
		return AlertActive
	case a.dwellStart != nil:
		return AlertSuspect
	default:
		return AlertNormal
	}
}

func (a *LeakAlert) Active() bool { return a.active }

// Since returns when the current dwell started, nil in the normal state.
func (a *LeakAlert) Since() *time.Time {
	if a.dwellStart == nil {
		return nil
	}
	t := *a.dwellStart
	return &t
}
