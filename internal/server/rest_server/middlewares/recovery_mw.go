package middlewares

import (
	"runtime/debug"

	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func RecoveryMW() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				log.Default().Error("panic while serving request",
					zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
					zap.Any("panic", p),
					zap.ByteString("stack", debug.Stack()),
				)
				resp := api_response.Error[any](ctx, cerrors.ErrGenericInternalServer.Code, cerrors.ErrGenericInternalServer.Message)
				ctx.AbortWithStatusJSON(cerrors.ErrGenericInternalServer.HTTPStatus, resp)
			}
		}()
		ctx.Next()
	}
}
