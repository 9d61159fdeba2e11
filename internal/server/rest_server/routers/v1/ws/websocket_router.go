package ws

import (
	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/infrastructure/tracer_client"
	"github.com/gadgetini/display-agent/internal/server/rest_server/services/v1/ws"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type WebsocketRouter struct {
	svc    ws.IWebsocketService
	logger *log.Logger
	tracer trace.Tracer
}

func NewWebsocketRouter(svc ws.IWebsocketService) *WebsocketRouter {
	return &WebsocketRouter{
		svc:    svc,
		logger: log.Component("websocket_router"),
		tracer: tracer_client.Tracer("websocket_router"),
	}
}

func (r *WebsocketRouter) Routes(engine *gin.RouterGroup) {
	routes := engine.Group("")
	routes.GET("", r.subscribe)
}

func (r *WebsocketRouter) subscribe(ctx *gin.Context) {
	rootCtx, span := r.tracer.Start(ctx, ctx.Request.URL.Path, trace.WithAttributes(attribute.KeyValue{
		Key:   constants.APIFieldRequestID,
		Value: attribute.StringValue(ctx.GetString(constants.APIFieldRequestID)),
	}))
	defer span.End()

	r.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	).Debug("Received new websocket handshake for the display feed")

	_, appErr := r.svc.Subscribe(ctx, rootCtx, r.tracer)
	if appErr == nil || ctx.Writer.Written() {
		// The upgrader answers failed handshakes itself.
		return
	}
	resp := api_response.New[any](ctx)
	resp.Populate(appErr.Code, appErr.Message, nil, nil, nil)
	ctx.JSON(cerrors.HTTPStatusOf(appErr), resp)
}
