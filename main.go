package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/config"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/deviceconf"
	"github.com/gadgetini/display-agent/internal/display"
	"github.com/gadgetini/display-agent/internal/feed"
	"github.com/gadgetini/display-agent/internal/history"
	"github.com/gadgetini/display-agent/internal/infrastructure/local_cache"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/infrastructure/mqtt_client"
	"github.com/gadgetini/display-agent/internal/infrastructure/redis_client"
	"github.com/gadgetini/display-agent/internal/infrastructure/s3_client"
	"github.com/gadgetini/display-agent/internal/infrastructure/tracer_client"
	"github.com/gadgetini/display-agent/internal/profile"
	"github.com/gadgetini/display-agent/internal/scheduler"
	"github.com/gadgetini/display-agent/internal/server/grpc_server"
	"github.com/gadgetini/display-agent/internal/server/monitoring"
	"github.com/gadgetini/display-agent/internal/server/rest_server"
	"github.com/gadgetini/display-agent/internal/server/rest_server/routers"
	"github.com/gadgetini/display-agent/internal/server/rest_server/services/v1/restful"
	"github.com/gadgetini/display-agent/internal/server/rest_server/services/v1/ws"
	"github.com/gadgetini/display-agent/internal/telemetry"
	"github.com/gadgetini/display-agent/internal/utilities"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	SourceKindRedis     = "redis"
	SourceKindMQTT      = "mqtt"
	SourceKindSimulated = "simulated"
	SourceKindStatic    = "static"
)

var (
	once sync.Once

	// telemetrySub is re-subscribed on every broker (re)connect.
	telemetrySub atomic.Pointer[telemetry.MQTTSource]
)

func mirrorEnvCase() {
	for _, kv := range os.Environ() {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		k, v := kv[:i], kv[i+1:]
		_ = os.Setenv(strings.ToUpper(k), v)
		_ = os.Setenv(strings.ToLower(k), v)
	}
}

func loadDotenvIfExists(filename string, overload bool) (bool, error) {
	if _, err := os.Stat(filename); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if overload {
		return true, godotenv.Overload(filename)
	}
	return true, godotenv.Load(filename)
}

func readConfigIfExists(path string, merge bool) (bool, error) {
	viper.SetConfigFile(path)
	var err error
	if merge {
		err = viper.MergeInConfig()
	} else {
		err = viper.ReadInConfig()
	}
	if err == nil {
		return true, nil
	}
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) || os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func detectProfile() string {
	for _, k := range []string{"APP_ENV", "app_env"} {
		if v, ok := os.LookupEnv(k); ok {
			return strings.ToLower(v)
		}
	}
	return "dev"
}

func Load() error {
	envFound, err := loadDotenvIfExists(".env", false)
	if err != nil {
		return err
	}
	if envFound {
		mirrorEnvCase()
	}
	profile := detectProfile()

	pfFound, err := loadDotenvIfExists("."+profile+".env", true)
	if err != nil {
		return err
	}
	if pfFound {
		mirrorEnvCase()
	}

	cfgFound, err := readConfigIfExists("conf/config.toml", false)
	if err != nil {
		return err
	}

	if !envFound && !cfgFound {
		return errors.New("no configuration sources found: missing both .env and conf/config.toml")
	}

	if _, err := readConfigIfExists("conf/"+profile+".config.toml", true); err != nil {
		return err
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	return nil
}

func sourceKind() string {
	return strings.ToLower(utilities.ReadString(config.SourceKind, constants.DefaultSourceKind))
}

func agentID() string {
	if id := viper.GetString(config.AgentID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "gadgetini"
}

func init() {
	once.Do(func() {
		err := Load()
		if err != nil {
			panic(fmt.Sprintf("Failed to setup service configuration: %v", err))
		}

		// Init default logger
		err = log.InitDefault()
		if err != nil {
			panic(err)
		}

		if viper.GetBool(config.AgentEnableS3) {
			log.Default().Info("Started initializing client connection to external S3 storage")
			err = s3_client.NewS3Client(context.Background(), s3_client.OptionsFromViper()...)
			if err != nil {
				log.Default().Fatal(fmt.Sprintf("Failed to initialize client connection to external S3 storage: %v", err))
			}
			log.Default().Info("Finished initializing client connection to external S3 storage")
		}

		if viper.GetBool(config.AgentEnableMQTT) || sourceKind() == SourceKindMQTT {
			log.Default().Info("Started initializing client connection to MQTT broker")
			err = mqtt_client.NewMQTTClient(
				viper.GetString(config.MqttEndpoint),
				utilities.ReadString(config.MqttClientId, agentID()),
				mqtt_client.WithOnConnect(func(_ mqtt.Client) {
					if sub := telemetrySub.Load(); sub != nil {
						if sErr := sub.Subscribe(constants.MqttDefaultConnectTimeout); sErr != nil {
							log.Default().Error(sErr.Error())
						}
					}
				}),
			)
			if err != nil {
				log.Default().Fatal(fmt.Sprintf("Failed to initialize client connection to MQTT broker: %v", err))
			}
			log.Default().Info("Finished initializing client connection to MQTT broker")
		}

		if sourceKind() == SourceKindRedis {
			log.Default().Info("Started initializing client connection to redis")
			err = redis_client.NewRedisClient(context.Background())
			if err != nil {
				log.Default().Fatal(fmt.Sprintf("Failed to initialize client connection to redis: %v", err))
			}
			log.Default().Info("Finished initializing client connection to redis")
		}

		if viper.GetBool(config.AgentEnableTracing) {
			log.Default().Info("Started initializing OTEL tracer")
			_, err = tracer_client.NewTracerClient(
				tracer_client.WithEndpoint(viper.GetString(config.TracingEndpoint)),
				tracer_client.WithInsecure(viper.GetBool(config.TracingInsecure)),
				tracer_client.WithServiceName(utilities.ReadString(config.TracingServiceName, "display-agent")),
				tracer_client.WithInstance(agentID(), utilities.ReadString(config.AgentVersion, constants.AgentDefaultVersion)),
			)
			if err != nil {
				log.Default().Fatal(fmt.Sprintf("Failed to initialize OTEL tracer: %v", err))
			}
			log.Default().Info("Finished initializing OTEL tracer")
		}

		log.Default().Info("Started initializing local cache")
		err = local_cache.NewLocalCache()
		if err != nil {
			log.Default().Fatal(fmt.Sprintf("Failed to initialize local cache: %v", err))
		}
		log.Default().Info("Finished initializing local cache")
		log.Default().Info("Finished initializing connection to external services")
	})
}

// newSource picks the telemetry backend named by source.kind.
func newSource() (telemetry.Source, error) {
	switch kind := sourceKind(); kind {
	case SourceKindRedis:
		return telemetry.NewRedisSource(redis_client.Client()), nil
	case SourceKindMQTT:
		cache := telemetry.NewCacheSource(local_cache.Cache(),
			utilities.ReadDuration(config.MqttTelemetryTTL, constants.MqttDefaultTelemetryTTL))
		src := telemetry.NewMQTTSource(mqtt_client.Client(), cache,
			utilities.ReadString(config.MqttTelemetryTopic, constants.MqttDefaultTelemetryTopic))
		telemetrySub.Store(src)
		err := utilities.RetryWithBackoff(context.Background(), func() error {
			return src.Subscribe(constants.MqttDefaultConnectTimeout)
		}, 3, 500*time.Millisecond, 2*time.Second)
		if err != nil {
			// The broker may still be coming up; OnConnect subscribes later.
			log.Default().Warn("Telemetry subscription deferred", zap.Error(err))
		}
		return src, nil
	case SourceKindSimulated:
		seed := uint64(viper.GetInt64(config.SourceSeed))
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		return telemetry.NewSimulatedSource(seed), nil
	case SourceKindStatic:
		return telemetry.NewStaticSource(viper.GetStringMapString(config.SourceStaticValues)), nil
	default:
		return nil, cerrors.ErrSourceKind.WithMessage("unknown telemetry source kind %q", kind)
	}
}

func newHistory() *history.Store {
	opts := []history.Option{
		history.WithPath(utilities.ReadString(config.HistoryFile, constants.DefaultHistoryFile)),
		history.WithInterval(utilities.ReadDuration(config.HistoryInterval, constants.DefaultHistoryInterval)),
		history.WithCapacity(utilities.ReadInt(config.HistoryCapacity, constants.DefaultHistoryCapacity)),
	}
	if bucket := viper.GetString(config.HistoryS3Bucket); bucket != "" && viper.GetBool(config.AgentEnableS3) {
		key := utilities.ReadString(config.HistoryS3Key, constants.DefaultHistoryS3Key)
		opts = append(opts, history.WithMirror(history.NewS3Mirror(s3_client.Client(), bucket, key)))
	}
	return history.New(opts...)
}

func newController(devCfg *deviceconf.Config) *display.Controller {
	opts := []display.Option{
		display.WithToggles(devCfg),
		display.WithAddress(utilities.DisplayAddress),
		display.WithIdentity(agentID(), utilities.ReadString(config.AgentVersion, constants.AgentDefaultVersion)),
		display.WithFPS(utilities.ReadInt(config.DisplayFPS, constants.DefaultFPS)),
		display.WithRotationInterval(utilities.ReadDuration(config.DisplayRotationInterval, constants.DefaultRotationInterval)),
		display.WithLeakThreshold(utilities.ReadDuration(config.LeakThreshold, constants.DefaultLeakThreshold)),
	}
	if viper.GetBool(config.AgentEnableMQTT) {
		opts = append(opts, display.WithPublisher(display.NewMQTTAlertPublisher(
			mqtt_client.Client(),
			utilities.ReadString(config.MqttAlertTopic, constants.MqttDefaultAlertTopic),
			1,
			utilities.ReadDuration(config.MqttWriteTimeout, constants.MqttDefaultWriteTimeout),
		)))
	}
	return display.NewController(opts...)
}

func main() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	defer func() { _ = log.Sync() }()

	// Device configuration
	devCfg := deviceconf.New(utilities.ReadString(config.DisplayDeviceConfig, constants.DefaultDeviceConfig))
	if _, err := devCfg.Reload(); err != nil {
		log.Default().Warn("Device configuration unreadable, using defaults", zap.Error(err))
	}

	// Telemetry source and initial composition
	source, err := newSource()
	if err != nil {
		log.Default().Fatal(fmt.Sprintf("Failed to initialize telemetry source: %v", err))
	}
	composer := profile.NewComposer(
		profile.WithProfileDir(utilities.ReadString(config.DisplayProfileDir, constants.DefaultProfileDir)),
		profile.WithSource(source),
		profile.WithWindowSize(utilities.ReadInt(config.DisplayWindowSize, constants.DefaultWindowSize)),
	)
	initial, err := composer.Compose(devCfg)
	if err != nil {
		log.Default().Fatal(fmt.Sprintf("Failed to compose display profile: %v", err))
	}
	log.Default().Info("Display profile composed",
		zap.String("product", initial.Product),
		zap.Bool("fallback", initial.Fallback),
		zap.Int("sensors", initial.Registry.Len()),
		zap.Int("viewers", len(initial.Viewers)),
	)

	historyStore := newHistory()
	controller := newController(devCfg)
	sched := scheduler.New(initial,
		scheduler.WithFPS(utilities.ReadInt(config.DisplayFPS, constants.DefaultFPS)),
		scheduler.WithReadTimeout(utilities.ReadDuration(config.SourceReadTimeout, constants.DefaultSourceReadTimeout)),
		scheduler.WithReadConcurrency(utilities.ReadInt(config.SourceReadConcurrency, constants.DefaultSourceReadConcurrency)),
		scheduler.WithReload(composer, devCfg, utilities.ReadDuration(config.DisplayReloadInterval, constants.DefaultReloadInterval)),
		scheduler.WithObserver(scheduler.RegistryObserverFunc(historyStore.OnProcessed)),
		scheduler.WithObserver(controller),
	)
	hub := feed.NewHub(controller,
		feed.WithInterval(utilities.ReadDuration(config.DisplayFeedInterval, constants.DefaultFeedInterval)))

	parentCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(parentCtx)

	// Acquisition, processing and reload loops
	g.Go(func() error {
		return sched.Run(ctx)
	})

	// Display feed
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// Init GRPC server
	g.Go(func() error {
		if !utilities.ReadBool(config.AgentEnableGRPC, true) {
			return nil
		}
		return grpc_server.NewGRPCServer(ctx, nil)
	})

	// Init profiling
	g.Go(func() error {
		if viper.GetBool(config.AgentEnableMonitoring) {
			if mErr := monitoring.NewMonitoringServer(ctx); mErr != nil {
				return mErr
			}
		}
		return nil
	})

	// Init HTTP server
	g.Go(func() error {
		if !utilities.ReadBool(config.AgentEnableHTTP, true) {
			return nil
		}
		appState := routers.NewAppState()

		v1RestState := routers.NewV1RestState()
		v1RestState.SetHealthcheckService(restful.NewHealthcheckService(
			restful.WithHealthResults(sched),
			restful.WithHealthVersion(utilities.ReadString(config.AgentVersion, constants.AgentDefaultVersion)),
		))
		v1RestState.SetSensorService(restful.NewSensorService(restful.WithSensorResults(sched)))
		v1RestState.SetHistoryService(restful.NewHistoryService(restful.WithHistoryReader(historyStore)))
		v1RestState.SetDisplayService(restful.NewDisplayService(
			restful.WithDisplayState(controller),
			restful.WithDisplayResults(sched),
			restful.WithViewerToggles(devCfg),
		))
		appState.SetV1RestState(v1RestState)

		websocketState := routers.NewWebsocketState()
		websocketState.SetWebsocketService(ws.NewWebsocketService(ws.WithFeedHub(hub)))
		appState.SetWebsocketState(websocketState)

		return rest_server.NewHTTPServer(ctx, routers.NewRootRouter(appState).InitRouters)
	})

	shutdown := func() {
		if cErr := historyStore.Close(); cErr != nil {
			log.Default().Error(errors.Wrap(cErr, "failed to persist history on shutdown").Error())
		}
		if sub := telemetrySub.Load(); sub != nil {
			sub.Unsubscribe(time.Second)
		}
		if viper.GetBool(config.AgentEnableMQTT) || sourceKind() == SourceKindMQTT {
			mqtt_client.Disconnect(250 * time.Millisecond)
		}
		_ = redis_client.Close()
		shutdownCtx, sCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer sCancel()
		_ = tracer_client.Shutdown(shutdownCtx)
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- g.Wait()
	}()

	select {
	case sig := <-sigCh:
		log.Default().Debug(fmt.Sprintf("Signal received: %v", sig))
		cancel()

		select {
		case err = <-waitCh:
			log.Default().Info("All tasks exited, shutting down agent")
		case sig2 := <-sigCh:
			log.Default().Debug(fmt.Sprintf("Second signal received: %v", sig2))
		case <-time.After(constants.GraceWaitPeriod):
			log.Default().Info("Grace period timed out, forcing exit")
		}
		shutdown()

	case err = <-waitCh:
		log.Default().Info(fmt.Sprintf("Services finished early with error: %v", err))
		shutdown()
	}
}
