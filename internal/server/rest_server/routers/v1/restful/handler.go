package restful

import (
	"context"
	"net/http"

	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type serviceCall func(rootCtx context.Context) (*api_response.BaseOutput, *cerrors.AppError)

// serve runs one service call inside a request span and writes the envelope.
func serve(ctx *gin.Context, tracer trace.Tracer, logger *log.Logger, call serviceCall) {
	rootCtx, span := tracer.Start(ctx, ctx.Request.URL.Path, trace.WithAttributes(attribute.KeyValue{
		Key:   constants.APIFieldRequestID,
		Value: attribute.StringValue(ctx.GetString(constants.APIFieldRequestID)),
	}))
	defer span.End()

	resp := api_response.New[any](ctx)
	lg := logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)

	_, cSpan := tracer.Start(rootCtx, "handler")
	result, appErr := call(rootCtx)
	cSpan.End()
	if appErr != nil {
		span.SetStatus(codes.Error, appErr.Error())
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			lg.Error(appErr.Error(), zap.Error(appErr.Cause))
		} else {
			lg.Debug(appErr.Error())
		}
		resp.Populate(appErr.Code, appErr.Message, nil, nil, nil)
		ctx.JSON(cerrors.HTTPStatusOf(appErr), resp)
		return
	}

	resp.Populate(result.Code, result.Message, result.Data, result.Meta, result.Count)
	ctx.JSON(http.StatusOK, resp)
}
