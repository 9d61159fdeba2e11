package routers

import (
	"github.com/gadgetini/display-agent/internal/server/rest_server/services/v1/restful"
	"github.com/gadgetini/display-agent/internal/server/rest_server/services/v1/ws"
)

type V1Rest struct {
	healthcheck *restful.HealthcheckService
	sensors     *restful.SensorService
	history     *restful.HistoryService
	display     *restful.DisplayService
}

func NewV1RestState() *V1Rest {
	return &V1Rest{}
}

func (svc *V1Rest) SetHealthcheckService(healthcheck *restful.HealthcheckService) {
	svc.healthcheck = healthcheck
}

func (svc *V1Rest) GetHealthcheckService() *restful.HealthcheckService {
	return svc.healthcheck
}

func (svc *V1Rest) SetSensorService(sensors *restful.SensorService) {
	svc.sensors = sensors
}

func (svc *V1Rest) GetSensorService() *restful.SensorService {
	return svc.sensors
}

func (svc *V1Rest) SetHistoryService(history *restful.HistoryService) {
	svc.history = history
}

func (svc *V1Rest) GetHistoryService() *restful.HistoryService {
	return svc.history
}

func (svc *V1Rest) SetDisplayService(display *restful.DisplayService) {
	svc.display = display
}

func (svc *V1Rest) GetDisplayService() *restful.DisplayService {
	return svc.display
}

type Websocket struct {
	websocket *ws.WebsocketService
}

func NewWebsocketState() *Websocket {
	return &Websocket{}
}

func (svc *Websocket) SetWebsocketService(websocket *ws.WebsocketService) {
	svc.websocket = websocket
}

func (svc *Websocket) GetWebsocketService() *ws.WebsocketService {
	return svc.websocket
}

type AppState struct {
	v1Rest    *V1Rest
	websocket *Websocket
}

func NewAppState() *AppState {
	return &AppState{}
}

func (svc *AppState) SetV1RestState(v1Rest *V1Rest) {
	svc.v1Rest = v1Rest
}

func (svc *AppState) GetV1RestState() *V1Rest {
	return svc.v1Rest
}

func (svc *AppState) GetWebsocketState() *Websocket {
	return svc.websocket
}

func (svc *AppState) SetWebsocketState(ws *Websocket) {
	svc.websocket = ws
}
