package display

// NoViewer is the rotation index when there is nothing to show.
const NoViewer = -1

// Rotation cycles through n viewers, advancing every interval ticks. The
// first tick never advances.
type Rotation struct {
	index    int
	interval int
	ticks    int
}

func NewRotation(interval int) *Rotation {
	if interval < 1 {
		interval = 1
	}
	return &Rotation{interval: interval}
}

// Tick advances the clock by one tick against a list of n viewers and returns
// the current index. A shrinking list clamps the index to its last element.
func (r *Rotation) Tick(n int) int {
	t := r.ticks
	r.ticks++
	if n <= 0 {
		r.index = NoViewer
		return r.index
	}
	if r.index < 0 {
		r.index = 0
	}
	if r.index >= n {
		r.index = n - 1
	}
	if t != 0 && t%r.interval == 0 {
		r.index = (r.index + 1) % n
	}
	return r.index
}

func (r *Rotation) Index() int { return r.index }

func (r *Rotation) Interval() int { return r.interval }
