package rest_server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gadgetini/display-agent/internal/config"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/server/rest_server/middlewares"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	PathMetrics = "/metrics"
	PathFeed    = "/ws"
)

func getHTTPPort() int {
	port := viper.GetInt(config.AgentHTTPPort)
	if port <= 0 {
		return constants.AgentDefaultHTTPPort
	}
	return port
}

// NewEngine builds the gin engine with the agent's middleware stack and
// the given routes.
func NewEngine(registerRoutes func(engine *gin.Engine)) *gin.Engine {
	if mode := viper.GetString(config.AgentHTTPMode); mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{constants.HeaderAccessControlAllowHeader, constants.HeaderOrigin, constants.HeaderAccept,
			constants.HeaderXRequestedWith, constants.HeaderContentType, constants.HeaderAuthorization, constants.HeaderXRequestID},
		ExposeHeaders: []string{constants.HeaderContentLength, constants.HeaderXRequestID},
	}))
	router.Use(
		middlewares.RecoveryMW(),
		middlewares.RequestIDMW(),
		middlewares.RequestLoggingMW(log.Component("http"), PathMetrics, PathFeed),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{PathFeed, PathMetrics})),
	)
	router.NoRoute(middlewares.NoRouteMW())

	if registerRoutes != nil {
		registerRoutes(router)
	}
	return router
}

// NewHTTPServer serves the renderer API until ctx is done.
func NewHTTPServer(ctx context.Context, registerRoutes func(engine *gin.Engine)) error {
	log.Default().Info("Initializing HTTP server")

	serverAddr := fmt.Sprintf("0.0.0.0:%d", getHTTPPort())
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           NewEngine(registerRoutes),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		log.Default().Info(fmt.Sprintf("HTTP server listening on %s", serverAddr))
		if viper.GetString(config.AgentTLSCertFile) != "" && viper.GetString(config.AgentTLSKeyFile) != "" {
			err = srv.ListenAndServeTLS(viper.GetString(config.AgentTLSCertFile), viper.GetString(config.AgentTLSKeyFile))
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Default().Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Default().Info("Graceful stop timed out, forcing shutdown")
			_ = srv.Close()
		}
		return nil
	case err := <-errCh:
		return errors.Wrap(err, "failed to start HTTP server")
	}
}
