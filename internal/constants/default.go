package constants

import "time"

const (
	AgentDefaultHTTPPort       = 8080
	AgentDefaultGRPCPort       = 7070
	AgentDefaultMonitoringPort = 6060
	AgentDefaultVersion        = "gadgetini v0.3"
)

const (
	GraceWaitPeriod = 10 * time.Second
)

const (
	// GraphSize is the pixel width of the live graph; the window keeps a few
	// columns free for the axis.
	GraphSize                     = 145
	DefaultFPS                    = 15
	DefaultWindowSize             = GraphSize - 5
	DefaultRotationInterval       = 5 * time.Second
	DefaultReloadInterval         = 5 * time.Second
	DefaultFeedInterval           = time.Second
	DefaultProfileDir             = "profiles"
	DefaultDeviceConfig           = "conf/device.toml"
	DefaultProduct                = "dg5w"
	DefaultLeakSensorKey          = "coolant_leak"
	DefaultLeakThreshold          = 5 * time.Second
	DefaultReadRate               = 1
	DefaultSourceKind             = "redis"
	DefaultSourceReadTimeout      = 500 * time.Millisecond
	DefaultSourceReadConcurrency  = 4
	DefaultHistoryFile            = "history.json"
	DefaultHistoryInterval        = 10 * time.Minute
	DefaultHistoryCapacity        = GraphSize - 1
	DefaultHistoryS3Key           = "history/history.json"
	DefaultHistoryS3UploadTimeout = 10 * time.Second
)

const (
	RedisDefaultAddr        = "localhost:6379"
	RedisDefaultDialTimeout = 5 * time.Second
)

const (
	MqttDefaultWriteTimeout         = 10 * time.Second
	MqttDefaultKeepAlive            = 30 * time.Second
	MqttDefaultPingTimeout          = 5 * time.Second
	MqttDefaultMaxReconnectInterval = 30 * time.Second
	MqttDefaultConnectTimeout       = 10 * time.Second
	MqttDefaultConnectRetryInterval = 10 * time.Second
	MqttDefaultTelemetryTopic       = "gadgetini/telemetry"
	MqttDefaultTelemetryTTL         = 30 * time.Second
	MqttDefaultAlertTopic           = "gadgetini/alerts/leak"
)
