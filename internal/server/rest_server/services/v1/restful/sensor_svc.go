package restful

import (
	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/sensor"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type ISensorService interface {
	ListSensors(ctx *gin.Context, input *ListSensorsInput) (*api_response.BaseOutput, *cerrors.AppError)
	GetSensor(ctx *gin.Context, input *GetSensorInput) (*api_response.BaseOutput, *cerrors.AppError)
}

type SensorService struct {
	logger  *log.Logger
	results ResultProvider
}

func NewSensorService(options ...func(*SensorService)) *SensorService {
	svc := &SensorService{}
	for _, opt := range options {
		opt(svc)
	}
	svc.logger = log.Component("sensor_service")
	return svc
}

func WithSensorResults(p ResultProvider) func(*SensorService) {
	return func(s *SensorService) { s.results = p }
}

type ListSensorsInput struct {
	BaseInput
	// WithWindow includes the live graph window of every sensor.
	WithWindow bool
}

type ListSensorsOutput struct {
	Product  string            `json:"product"`
	Fallback bool              `json:"fallback"`
	Sensors  []sensor.Snapshot `json:"sensors"`
}

type GetSensorInput struct {
	BaseInput
	Key string
}

func (svc *SensorService) ListSensors(ctx *gin.Context, input *ListSensorsInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "list-sensors")
	defer span.End()

	res := currentResult(svc.results)
	if res == nil {
		return nil, cerrors.ErrRegistryNotReady
	}

	runtimes := res.Registry.Runtimes()
	out := ListSensorsOutput{
		Product:  res.Product,
		Fallback: res.Fallback,
		Sensors:  make([]sensor.Snapshot, 0, len(runtimes)),
	}
	for _, rt := range runtimes {
		snap := rt.Snapshot()
		if !input.WithWindow {
			snap.Window = nil
		}
		out.Sensors = append(out.Sensors, snap)
	}
	span.SetAttributes(attribute.Int("sensors", len(out.Sensors)))

	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    out,
		Count:   len(out.Sensors),
	}, nil
}

func (svc *SensorService) GetSensor(ctx *gin.Context, input *GetSensorInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "get-sensor")
	defer span.End()
	span.SetAttributes(attribute.String("sensor", input.Key))

	res := currentResult(svc.results)
	if res == nil {
		return nil, cerrors.ErrRegistryNotReady
	}
	rt, ok := res.Registry.Get(input.Key)
	if !ok {
		return nil, cerrors.ErrSensorNotFound.WithMessage("sensor %q not found", input.Key)
	}

	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    rt.Snapshot(),
	}, nil
}
