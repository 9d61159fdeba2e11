package restful

import (
	"context"

	"github.com/gadgetini/display-agent/internal/display"
	"github.com/gadgetini/display-agent/internal/profile"
	"go.opentelemetry.io/otel/trace"
)

// ResultProvider exposes the registry and viewers currently in use.
type ResultProvider interface {
	Current() *profile.Result
}

type HistoryReader interface {
	Get(key string) []float64
	Keys() []string
	Capacity() int
}

type StateProvider interface {
	Current() *display.State
}

type ViewerToggles interface {
	ViewerEnabled(key string) bool
}

// BaseInput carries the router span into the service.
type BaseInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
}

func currentResult(p ResultProvider) *profile.Result {
	if p == nil {
		return nil
	}
	res := p.Current()
	if res == nil || res.Registry == nil {
		return nil
	}
	return res
}
