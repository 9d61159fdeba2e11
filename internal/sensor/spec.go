package sensor

import (
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/formula"
)

// Spec is the immutable description of one sensor as composed from a
// profile. Exactly one of RedisKey, RedisKeys or Formula is set.
type Spec struct {
	Key       string
	Title     string
	Unit      string
	Min       float64
	Max       float64
	ReadRate  int
	RedisKey  string
	RedisKeys []string
	Formula   *formula.Program
	Icon      rune
	Label     string

	// HostData marks values reported by the host rather than chassis
	// sensors. It is passed through to the renderer.
	HostData bool
}

// Validate checks the source selection and the read rate.
func (s Spec) Validate() error {
	sources := 0
	if s.RedisKey != "" {
		sources++
	}
	if len(s.RedisKeys) > 0 {
		sources++
	}
	if s.Formula != nil {
		sources++
	}
	if sources != 1 {
		return cerrors.ErrInvalidSource.WithMessage("sensor %q declares %d sources", s.Key, sources)
	}
	if s.Key == "" {
		return cerrors.ErrInvalidProfile.WithMessage("sensor without key")
	}
	if s.ReadRate < 1 {
		return cerrors.ErrInvalidProfile.WithMessage("sensor %q has read_rate %d, must be at least 1", s.Key, s.ReadRate)
	}
	return nil
}

// SourceKeys lists every telemetry key the sensor reads.
func (s Spec) SourceKeys() []string {
	switch {
	case s.Formula != nil:
		return s.Formula.Keys()
	case len(s.RedisKeys) > 0:
		return append([]string(nil), s.RedisKeys...)
	case s.RedisKey != "":
		return []string{s.RedisKey}
	}
	return nil
}

// Color is an 8-bit RGB triple.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}
