// Package telemetry defines the key-value reading source the sensors sample
// from and its backends.
package telemetry

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/pkg/errors"
)

// Source returns the raw string stored under key. A missing key is reported
// with found=false and a nil error; err is reserved for transport failures.
type Source interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, key string) (string, bool, error)

func (f SourceFunc) Get(ctx context.Context, key string) (string, bool, error) {
	return f(ctx, key)
}

// ReadFloat reads key and parses it as a float. Missing keys, unparseable
// values and transport errors are all reported as errors; callers treat them
// identically.
func ReadFloat(ctx context.Context, src Source, key string) (float64, error) {
	raw, found, err := src.Get(ctx, key)
	if err != nil {
		if isTimeout(err) {
			return 0, cerrors.ErrReadTimeout.WithCause(err).WithMessage("read of %q timed out", key)
		}
		return 0, errors.Wrapf(err, "failed to read %q", key)
	}
	if !found {
		return 0, cerrors.ErrNoData.WithMessage("key %q not found", key)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, cerrors.ErrMalformedReport.WithCause(err).WithMessage("key %q holds non-numeric value %q", key, raw)
	}
	return v, nil
}

// isTimeout reports context deadlines and network timeouts, which is how
// go-redis surfaces a read cut short by the deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
