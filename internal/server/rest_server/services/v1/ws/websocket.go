package ws

import (
	"context"

	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/feed"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type IWebsocketService interface {
	Subscribe(ctx *gin.Context, tracerCtx context.Context, tracer trace.Tracer) (*api_response.BaseOutput, *cerrors.AppError)
}

type WebsocketService struct {
	hub    *feed.Hub
	logger *log.Logger
}

func NewWebsocketService(options ...func(*WebsocketService)) *WebsocketService {
	svc := &WebsocketService{}
	for _, opt := range options {
		opt(svc)
	}
	svc.logger = log.Component("websocket_service")
	return svc
}

func WithFeedHub(hub *feed.Hub) func(*WebsocketService) {
	return func(c *WebsocketService) {
		c.hub = hub
	}
}

// Subscribe upgrades the connection and attaches it to the display feed. On
// success the response has already been written by the upgrade.
func (svc *WebsocketService) Subscribe(
	ctx *gin.Context,
	tracerCtx context.Context,
	tracer trace.Tracer,
) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := tracer.Start(tracerCtx, "upgrade-connection")
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)
	if svc.hub == nil {
		return nil, cerrors.ErrRegistryNotReady.WithMessage("display feed is not running")
	}

	connID, err := svc.hub.ServeWS(ctx.Writer, ctx.Request)
	if err != nil {
		lg.Error(err.Error())
		return nil, cerrors.ErrGenericBadRequest.WithCause(err)
	}
	lg.Info("feed client subscribed", zap.String("client_id", connID.String()))

	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
	}, nil
}
