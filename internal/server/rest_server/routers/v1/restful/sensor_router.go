package restful

import (
	"context"
	"strconv"

	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/infrastructure/tracer_client"
	"github.com/gadgetini/display-agent/internal/server/rest_server/services/v1/restful"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type SensorRouter struct {
	svc    restful.ISensorService
	logger *log.Logger
	tracer trace.Tracer
}

func NewSensorRouter(svc restful.ISensorService) *SensorRouter {
	return &SensorRouter{
		svc:    svc,
		logger: log.Component("sensor_router"),
		tracer: tracer_client.Tracer("sensors"),
	}
}

func (r *SensorRouter) Routes(engine *gin.RouterGroup) {
	routes := engine.Group("/sensors")
	routes.GET("", r.list)
	routes.GET("/:"+constants.APIFieldSensorKey, r.get)
}

// list accepts ?window=true to include the graph windows.
func (r *SensorRouter) list(ctx *gin.Context) {
	withWindow, _ := strconv.ParseBool(ctx.Query("window"))
	serve(ctx, r.tracer, r.logger, func(rootCtx context.Context) (*api_response.BaseOutput, *cerrors.AppError) {
		return r.svc.ListSensors(ctx, &restful.ListSensorsInput{
			BaseInput:  restful.BaseInput{TracerCtx: rootCtx, Tracer: r.tracer},
			WithWindow: withWindow,
		})
	})
}

func (r *SensorRouter) get(ctx *gin.Context) {
	serve(ctx, r.tracer, r.logger, func(rootCtx context.Context) (*api_response.BaseOutput, *cerrors.AppError) {
		return r.svc.GetSensor(ctx, &restful.GetSensorInput{
			BaseInput: restful.BaseInput{TracerCtx: rootCtx, Tracer: r.tracer},
			Key:       ctx.Param(constants.APIFieldSensorKey),
		})
	})
}
