package middlewares

import (
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDMW keeps a caller supplied X-Request-ID and mints one otherwise.
func RequestIDMW() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestID := ctx.GetHeader(constants.HeaderXRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		ctx.Set(constants.APIFieldRequestID, requestID)
		ctx.Header(constants.HeaderXRequestID, requestID)
		ctx.Next()
	}
}
