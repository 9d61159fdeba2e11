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

type HealthcheckRouter struct {
	svc    restful.IHealthcheckService
	logger *log.Logger
	tracer trace.Tracer
}

func NewHealthcheckRouter(svc restful.IHealthcheckService) *HealthcheckRouter {
	return &HealthcheckRouter{
		svc:    svc,
		logger: log.Component("healthcheck_router"),
		tracer: tracer_client.Tracer("healthcheck"),
	}
}

func (r *HealthcheckRouter) Routes(engine *gin.RouterGroup) {
	routes := engine.Group("/health")
	routes.GET("", r.healthcheck)
}

func (r *HealthcheckRouter) healthcheck(ctx *gin.Context) {
	serve(ctx, r.tracer, r.logger, func(rootCtx context.Context) (*api_response.BaseOutput, *cerrors.AppError) {
		return r.svc.Healthcheck(ctx, &restful.HealthcheckInput{
			BaseInput: restful.BaseInput{TracerCtx: rootCtx, Tracer: r.tracer},
		})
	})
}
