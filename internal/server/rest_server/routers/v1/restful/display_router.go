package restful

import (
	"context"

	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/infrastructure/tracer_client"
	"github.com/gadgetini/display-agent/internal/server/rest_server/services/v1/restful"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type DisplayRouter struct {
	svc    restful.IDisplayService
	logger *log.Logger
	tracer trace.Tracer
}

func NewDisplayRouter(svc restful.IDisplayService) *DisplayRouter {
	return &DisplayRouter{
		svc:    svc,
		logger: log.Component("display_router"),
		tracer: tracer_client.Tracer("display"),
	}
}

func (r *DisplayRouter) Routes(engine *gin.RouterGroup) {
	engine.GET("/display", r.display)
	engine.GET("/viewers", r.viewers)
}

func (r *DisplayRouter) display(ctx *gin.Context) {
	serve(ctx, r.tracer, r.logger, func(rootCtx context.Context) (*api_response.BaseOutput, *cerrors.AppError) {
		return r.svc.GetDisplay(ctx, &restful.GetDisplayInput{
			BaseInput: restful.BaseInput{TracerCtx: rootCtx, Tracer: r.tracer},
		})
	})
}

func (r *DisplayRouter) viewers(ctx *gin.Context) {
	serve(ctx, r.tracer, r.logger, func(rootCtx context.Context) (*api_response.BaseOutput, *cerrors.AppError) {
		return r.svc.ListViewers(ctx, &restful.ListViewersInput{
			BaseInput: restful.BaseInput{TracerCtx: rootCtx, Tracer: r.tracer},
		})
	})
}
