package config

const (
	AgentID               = "agent.id"
	AgentVersion          = "agent.version"
	AgentEnableMonitoring = "agent.enable_monitoring"
	AgentMonitoringPort   = "agent.monitoring_port"
	AgentLogLevel         = "agent.log_level"
	AgentHTTPPort         = "agent.http_port"
	AgentHTTPMode         = "agent.http_mode"
	AgentEnableHTTP       = "agent.enable_http"
	AgentGRPCPort         = "agent.grpc_port"
	AgentEnableGRPC       = "agent.enable_grpc"
	AgentTLSCertFile      = "agent.tls_cert_file"
	AgentTLSKeyFile       = "agent.tls_key_file"
	AgentTLSClientCAFile  = "agent.tls_client_ca_file"
	AgentEnableMQTT       = "agent.enable_mqtt"
	AgentEnableTracing    = "agent.enable_tracing"
	AgentEnableS3         = "agent.enable_s3"
)

const (
	DisplayFPS              = "display.fps"
	DisplayWindowSize       = "display.window_size"
	DisplayRotationInterval = "display.rotation_interval"
	DisplayReloadInterval   = "display.reload_interval"
	DisplayProfileDir       = "display.profile_dir"
	DisplayDeviceConfig     = "display.device_config"
	DisplayFeedInterval     = "display.feed_interval"
)

const (
	SourceKind            = "source.kind"
	SourceReadTimeout     = "source.read_timeout"
	SourceReadConcurrency = "source.read_concurrency"
	SourceSeed            = "source.seed"
	SourceStaticValues    = "source.static_values"
)

const (
	RedisAddr        = "redis.addr"
	RedisPassword    = "redis.password"
	RedisDB          = "redis.db"
	RedisDialTimeout = "redis.dial_timeout"
)

const (
	HistoryFile     = "history.file"
	HistoryInterval = "history.interval"
	HistoryCapacity = "history.capacity"
	HistoryS3Bucket = "history.s3_bucket"
	HistoryS3Key    = "history.s3_key"
)

const (
	LeakThreshold = "leak.threshold"
)

const (
	MqttEndpoint              = "mqtt.endpoint"
	MqttCleanSession          = "mqtt.clean_session"
	MqttClientId              = "mqtt.client_id"
	MqttAutoReconnect         = "mqtt.auto_reconnect"
	MqttConnectRetry          = "mqtt.connect_retry"
	MqttMaxConnectInterval    = "mqtt.max_connect_interval"
	MqttWriteTimeout          = "mqtt.write_timeout"
	MqttPingTimeout           = "mqtt.ping_timeout"
	MqttKeepAliveDuration     = "mqtt.keep_alive_duration"
	MqttResumeSubs            = "mqtt.resume_subs"
	MqttConnectTimeout        = "mqtt.connect_timeout"
	MqttConnectRetryInterval  = "mqtt.connect_retry_interval"
	MqttTLSInsecureSkipVerify = "mqtt.tls_insecure_skip_verify"
	MqttTelemetryTopic        = "mqtt.telemetry_topic"
	MqttTelemetryTTL          = "mqtt.telemetry_ttl"
	MqttAlertTopic            = "mqtt.alert_topic"
)

const (
	S3Region                = "s3.region"
	S3Endpoint              = "s3.endpoint"
	S3AccessKey             = "s3.access_key"
	S3SecretKey             = "s3.secret_key"
	S3UsePathStyle          = "s3.use_path_style"
	S3TLSInsecureSkipVerify = "s3.tls_insecure_skip_verify"
)

const (
	TracingEndpoint    = "tracing.endpoint"
	TracingInsecure    = "tracing.insecure"
	TracingServiceName = "tracing.service_name"
)
