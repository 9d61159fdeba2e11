package middlewares

import (
	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gin-gonic/gin"
)

func NoRouteMW() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		resp := api_response.Error[any](ctx, cerrors.ErrGenericUnknownAPIPath.Code, cerrors.ErrGenericUnknownAPIPath.Message)
		ctx.AbortWithStatusJSON(cerrors.ErrGenericUnknownAPIPath.HTTPStatus, resp)
	}
}
