package routers

import (
	"github.com/gadgetini/display-agent/internal/metrics"
	"github.com/gadgetini/display-agent/internal/server/rest_server/routers/v1/restful"
	"github.com/gadgetini/display-agent/internal/server/rest_server/routers/v1/ws"
	"github.com/gin-gonic/gin"
)

type RootRouter struct {
	appState *AppState
}

func NewRootRouter(appState *AppState) *RootRouter {
	return &RootRouter{
		appState: appState,
	}
}

func (rr *RootRouter) InitRouters(engine *gin.Engine) {
	// http
	rootAPIRouter := engine.Group("/api")
	v1Router := rootAPIRouter.Group("/v1")
	{
		v1 := rr.appState.GetV1RestState()

		healthcheckRouter := restful.NewHealthcheckRouter(v1.GetHealthcheckService())
		healthcheckRouter.Routes(v1Router)

		sensorRouter := restful.NewSensorRouter(v1.GetSensorService())
		sensorRouter.Routes(v1Router)

		historyRouter := restful.NewHistoryRouter(v1.GetHistoryService())
		historyRouter.Routes(v1Router)

		displayRouter := restful.NewDisplayRouter(v1.GetDisplayService())
		displayRouter.Routes(v1Router)
	}

	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	// websocket
	if rr.appState.GetWebsocketState() != nil {
		rootWSRouter := engine.Group("/ws")
		websocketRouter := ws.NewWebsocketRouter(rr.appState.GetWebsocketState().GetWebsocketService())
		websocketRouter.Routes(rootWSRouter)
	}
}
