package constants

const (
	APIFieldRequestID = "request_id"
	APIFieldSensorKey = "sensor_key"
)

const (
	ContentTypeJSON = "application/json"
)

const (
	HeaderAccept                   = "Accept"
	HeaderAuthorization            = "Authorization"
	HeaderContentLength            = "Content-Length"
	HeaderContentType              = "Content-Type"
	HeaderOrigin                   = "Origin"
	HeaderAccessControlAllowHeader = "Access-Control-Allow-Headers"
	HeaderXRequestID               = "X-Request-ID"
	HeaderXRequestedWith           = "X-Requested-With"
)
