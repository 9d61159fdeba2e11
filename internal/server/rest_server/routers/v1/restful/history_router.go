package restful

import (
	"context"

	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/infrastructure/tracer_client"
	"github.com/gadgetini/display-agent/internal/server/rest_server/services/v1/restful"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type HistoryRouter struct {
	svc    restful.IHistoryService
	logger *log.Logger
	tracer trace.Tracer
}

func NewHistoryRouter(svc restful.IHistoryService) *HistoryRouter {
	return &HistoryRouter{
		svc:    svc,
		logger: log.Component("history_router"),
		tracer: tracer_client.Tracer("history"),
	}
}

func (r *HistoryRouter) Routes(engine *gin.RouterGroup) {
	routes := engine.Group("/history")
	routes.GET("", r.list)
	routes.GET("/:"+constants.APIFieldSensorKey, r.get)
}

func (r *HistoryRouter) list(ctx *gin.Context) {
	serve(ctx, r.tracer, r.logger, func(rootCtx context.Context) (*api_response.BaseOutput, *cerrors.AppError) {
		return r.svc.ListHistory(ctx, &restful.ListHistoryInput{
			BaseInput: restful.BaseInput{TracerCtx: rootCtx, Tracer: r.tracer},
		})
	})
}

func (r *HistoryRouter) get(ctx *gin.Context) {
	serve(ctx, r.tracer, r.logger, func(rootCtx context.Context) (*api_response.BaseOutput, *cerrors.AppError) {
		return r.svc.GetHistory(ctx, &restful.GetHistoryInput{
			BaseInput: restful.BaseInput{TracerCtx: rootCtx, Tracer: r.tracer},
			Key:       ctx.Param(constants.APIFieldSensorKey),
		})
	})
}
