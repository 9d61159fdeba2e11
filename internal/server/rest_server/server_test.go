package rest_server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gadgetini/display-agent/internal/deviceconf"
	"github.com/gadgetini/display-agent/internal/display"
	"github.com/gadgetini/display-agent/internal/profile"
	"github.com/gadgetini/display-agent/internal/server/rest_server"
	"github.com/gadgetini/display-agent/internal/server/rest_server/routers"
	"github.com/gadgetini/display-agent/internal/server/rest_server/services/v1/restful"
	"github.com/gadgetini/display-agent/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedResult struct{ res *profile.Result }

func (f fixedResult) Current() *profile.Result { return f.res }

type fixedState struct{ st *display.State }

func (f fixedState) Current() *display.State { return f.st }

type fakeHistory map[string][]float64

func (f fakeHistory) Get(key string) []float64 { return f[key] }
func (f fakeHistory) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	return keys
}
func (f fakeHistory) Capacity() int { return 144 }

type envelope struct {
	RequestID string          `json:"request_id"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Count     int             `json:"count"`
	Data      json.RawMessage `json:"data"`
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	schema, err := profile.Fallback("dg5w")
	require.NoError(t, err)
	res, err := profile.NewComposer(profile.WithSource(telemetry.NewStaticSource(nil))).
		ComposeSchema(schema, deviceconf.FromMap(nil))
	require.NoError(t, err)
	res.Product = "dg5w"

	rt, ok := res.Registry.Get("coolant_temp")
	require.True(t, ok)
	rt.Offer(31.5)
	rt.Process()

	toggles := deviceconf.FromMap(map[string]map[string]any{"display": {"chassis_info": "off"}})
	results := fixedResult{res: res}

	v1 := routers.NewV1RestState()
	v1.SetHealthcheckService(restful.NewHealthcheckService(restful.WithHealthResults(results)))
	v1.SetSensorService(restful.NewSensorService(restful.WithSensorResults(results)))
	v1.SetHistoryService(restful.NewHistoryService(restful.WithHistoryReader(fakeHistory{
		"coolant_temp": {30.1, 31.5},
	})))
	v1.SetDisplayService(restful.NewDisplayService(
		restful.WithDisplayState(fixedState{st: &display.State{Mode: display.ModeIdle, Index: display.NoViewer, Product: "dg5w"}}),
		restful.WithDisplayResults(results),
		restful.WithViewerToggles(toggles),
	))
	appState := routers.NewAppState()
	appState.SetV1RestState(v1)

	return rest_server.NewEngine(routers.NewRootRouter(appState).InitRouters)
}

func get(t *testing.T, engine *gin.Engine, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	engine.ServeHTTP(w, req)
	var env envelope
	if w.Code != http.StatusOK || path != rest_server.PathMetrics {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestSensors(t *testing.T) {
	engine := newEngine(t)

	w, env := get(t, engine, "/api/v1/sensors")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", env.Code)
	assert.Equal(t, 4, env.Count)

	var list restful.ListSensorsOutput
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, "dg5w", list.Product)
	require.Len(t, list.Sensors, 4)
	for _, s := range list.Sensors {
		assert.Nil(t, s.Window)
	}

	w, env = get(t, engine, "/api/v1/sensors/coolant_temp")
	require.Equal(t, http.StatusOK, w.Code)
	var snap struct {
		Key    string   `json:"key"`
		Latest *float64 `json:"latest"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "coolant_temp", snap.Key)
	require.NotNil(t, snap.Latest)
	assert.Equal(t, 31.5, *snap.Latest)
}

func TestSensors_NotFound(t *testing.T) {
	w, env := get(t, newEngine(t), "/api/v1/sensors/gpu9_temp")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "430000", env.Code)
	assert.Contains(t, env.Message, "gpu9_temp")
}

func TestHistory(t *testing.T) {
	engine := newEngine(t)

	w, env := get(t, engine, "/api/v1/history/coolant_temp")
	require.Equal(t, http.StatusOK, w.Code)
	var out restful.GetHistoryOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, []float64{30.1, 31.5}, out.Peaks)
	assert.Equal(t, 144, out.Capacity)

	w, env = get(t, engine, "/api/v1/history/chassis_temp")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "430001", env.Code)
}

func TestViewersAndDisplay(t *testing.T) {
	engine := newEngine(t)

	w, env := get(t, engine, "/api/v1/viewers")
	require.Equal(t, http.StatusOK, w.Code)
	var viewers []struct {
		Key     string `json:"key"`
		Enabled bool   `json:"enabled"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &viewers))
	require.Len(t, viewers, 1)
	assert.Equal(t, "chassis_info", viewers[0].Key)
	assert.False(t, viewers[0].Enabled)

	w, env = get(t, engine, "/api/v1/display")
	require.Equal(t, http.StatusOK, w.Code)
	var st display.State
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, display.ModeIdle, st.Mode)
	assert.Equal(t, display.NoViewer, st.Index)
}

func TestMetrics(t *testing.T) {
	w, _ := get(t, newEngine(t), rest_server.PathMetrics)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gadgetini_")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestUnknownPathAndRequestID(t *testing.T) {
	engine := newEngine(t)

	w, env := get(t, engine, "/api/v2/nothing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "400004", env.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/display", nil)
	req.Header.Set("X-Request-ID", "7c9e6679-7425-40de-944b-e07fc1f90ae7")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", rec.Header().Get("X-Request-ID"))
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", body.RequestID)
}

func TestFeedRouteWithoutHub(t *testing.T) {
	// No websocket state registered: the path is unknown.
	w, env := get(t, newEngine(t), rest_server.PathFeed)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "400004", env.Code)
}
