package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/deviceconf"
	"github.com/gadgetini/display-agent/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProfile = `{
  // JSONC: comments and trailing commas are fine
  "sensors": [
    {"key": "coolant_temp", "title": "Coolant Temperature", "unit": "°C", "min": 25, "max": 50, "redis_key": "coolant_temp", "icon": "0xf0510"},
    {"key": "coolant_leak", "title": "Coolant Leak", "unit": "", "min": 0, "max": 1, "redis_key": "coolant_leak"},
    {"key": "mem_util", "title": "Memory Utilization", "unit": "%", "min": 0, "max": 100,
     "formula": "float(r.get('mem_usage')) / float(r.get('mem_total')) * 100"},
  ],
  "sensor_templates": [
    {"key": "gpu{i}_temp", "title": "GPU{i} Temperature", "unit": "°C", "min": 10, "max": 120,
     "redis_keys": ["gpu{i}_core_temp", "gpu{i}_mem_temp"], "count": "gpu_count"},
  ],
  "color_palettes": {
    "GPU": [[255, 0, 0], [0, 255, 0]],
  },
  "viewers": [
    {"key": "chassis_info", "type": "SensorViewer",
     "params": {"title": "Chassis", "sensor_key": "coolant_temp", "sub1_key": "mem_util", "sub2_key": "coolant_temp", "fixed_min": 0, "fixed_max": 100}},
    {"key": "gpu_temps", "type": "MultiSensorViewer", "expand": "gpu_count",
     "params": {"title": "GPU Temps", "sensor_keys": "gpu{i}_temp", "colors": "$GPU", "labels": "G{i}"}},
    {"key": "daily", "type": "DailyViewer",
     "params": {"title": "24h", "sensor_keys": ["coolant_temp"], "colors": [[1, 2, 3]], "labels": ["CT"]}},
    {"key": "bogus", "type": "HologramViewer", "params": {}},
    {"key": "dangling", "type": "DualSensorViewer", "params": {"panels": [{"title": "x", "sensor_key": "nope"}]}},
  ],
}`

func testConfig(gpus int) *deviceconf.Config {
	return deviceconf.FromMap(map[string]map[string]any{
		"product": {"name": "dg5w", "gpu_count": gpus},
	})
}

func TestParseAcceptsJSONC(t *testing.T) {
	s, err := Parse([]byte(testProfile))
	require.NoError(t, err)
	assert.Len(t, s.Sensors, 3)
	assert.Len(t, s.SensorTemplates, 1)
	assert.Equal(t, "gpu_count", s.SensorTemplates[0].Count)
	assert.Len(t, s.Viewers, 5)

	_, err = Parse([]byte(`{"sensors": [`))
	assert.True(t, errors.Is(err, cerrors.ErrInvalidProfile))
}

func TestLoadSensorsExpandsTemplates(t *testing.T) {
	s, err := Parse([]byte(testProfile))
	require.NoError(t, err)

	reg, errs := NewComposer().LoadSensors(s, testConfig(3))
	require.Empty(t, errs)
	assert.Equal(t, []string{"coolant_temp", "coolant_leak", "mem_util", "gpu0_temp", "gpu1_temp", "gpu2_temp"}, reg.Keys())

	rt, ok := reg.Get("gpu2_temp")
	require.True(t, ok)
	assert.Equal(t, "GPU2 Temperature", rt.Spec().Title)
	assert.Equal(t, []string{"gpu2_core_temp", "gpu2_mem_temp"}, rt.Spec().RedisKeys)

	ct, _ := reg.Get("coolant_temp")
	assert.Equal(t, rune(0xf0510), ct.Spec().Icon)

	mem, _ := reg.Get("mem_util")
	assert.Equal(t, []string{"mem_total", "mem_usage"}, mem.Spec().SourceKeys())
}

func TestLoadSensorsMissingCountIsZero(t *testing.T) {
	s, err := Parse([]byte(testProfile))
	require.NoError(t, err)

	reg, errs := NewComposer().LoadSensors(s, deviceconf.FromMap(nil))
	assert.Empty(t, errs)
	assert.Equal(t, 3, reg.Len())
}

func TestLoadSensorsCollisionKeepsFirstPosition(t *testing.T) {
	s := &Schema{
		Sensors: []SensorEntry{
			{Key: "a", RedisKey: "a_first", ReadRate: 1},
			{Key: "b", RedisKey: "b", ReadRate: 1},
			{Key: "a", RedisKey: "a_second", ReadRate: 1},
		},
	}
	reg, errs := NewComposer().LoadSensors(s, nil)
	require.Empty(t, errs)
	assert.Equal(t, []string{"a", "b"}, reg.Keys())
	rt, _ := reg.Get("a")
	assert.Equal(t, "a_second", rt.Spec().RedisKey)
}

func TestLoadSensorsSkipsBadEntries(t *testing.T) {
	s := &Schema{
		Sensors: []SensorEntry{
			{Key: "no_source"},
			{Key: "two_sources", RedisKey: "x", Formula: "1"},
			{Key: "bad_formula", Formula: "r.get("},
			{Key: "bad_icon", RedisKey: "x", Icon: "0xzz"},
			{Key: "ok", RedisKey: "ok"},
		},
	}
	reg, errs := NewComposer().LoadSensors(s, nil)
	assert.Len(t, errs, 4)
	assert.Equal(t, []string{"ok"}, reg.Keys())
	rt, _ := reg.Get("ok")
	assert.Equal(t, 1, rt.Spec().ReadRate)
}

func TestLoadViewersResolvesParams(t *testing.T) {
	s, err := Parse([]byte(testProfile))
	require.NoError(t, err)
	cfg := testConfig(3)
	c := NewComposer()

	reg, _ := c.LoadSensors(s, cfg)
	viewers, errs := c.LoadViewers(s, cfg, reg)
	assert.Len(t, errs, 2)
	require.Len(t, viewers, 3)

	assert.Equal(t, "chassis_info", viewers[0].Key)
	sv := viewers[0].Params.(*SensorViewerParams)
	require.NotNil(t, sv.FixedMax)
	assert.Equal(t, 100.0, *sv.FixedMax)

	multi := viewers[1].Params.(*MultiSensorViewerParams)
	assert.Equal(t, []string{"gpu0_temp", "gpu1_temp", "gpu2_temp"}, multi.SensorKeys)
	assert.Equal(t, []string{"G0", "G1", "G2"}, multi.Labels)
	assert.Equal(t, []sensor.Color{{R: 255}, {G: 255}, {R: 255}}, multi.Colors)

	daily := viewers[2].Params.(*DailyViewerParams)
	assert.Equal(t, []sensor.Color{{R: 1, G: 2, B: 3}}, daily.Colors)
}

func TestLoadViewersTruncatesPalette(t *testing.T) {
	s, err := Parse([]byte(testProfile))
	require.NoError(t, err)
	cfg := testConfig(1)
	c := NewComposer()

	reg, _ := c.LoadSensors(s, cfg)
	viewers, _ := c.LoadViewers(s, cfg, reg)
	require.Len(t, viewers, 3)
	multi := viewers[1].Params.(*MultiSensorViewerParams)
	assert.Equal(t, []sensor.Color{{R: 255}}, multi.Colors)
}

func TestLoadViewersRejectsUnknownParams(t *testing.T) {
	s := &Schema{
		Sensors: []SensorEntry{{Key: "a", RedisKey: "a", ReadRate: 1}},
		Viewers: []ViewerEntry{
			{Key: "v", Type: TypeSensorViewer, Params: map[string]any{
				"title": "t", "sensor_key": "a", "sub1_key": "a", "sub2_key": "a", "sparkles": true,
			}},
			{Key: "w", Type: TypeMultiSensorViewer, Params: map[string]any{
				"title": "t", "sensor_keys": []any{"a"}, "colors": "$MISSING", "labels": []any{"a"},
			}},
		},
	}
	c := NewComposer()
	reg, _ := c.LoadSensors(s, nil)
	viewers, errs := c.LoadViewers(s, nil, reg)
	assert.Empty(t, viewers)
	require.Len(t, errs, 2)
	assert.True(t, errors.Is(errs[0], cerrors.ErrInvalidProfile))
	assert.True(t, errors.Is(errs[1], cerrors.ErrUnknownPalette))
}

func TestLoadViewersKeepsDuplicateKeys(t *testing.T) {
	s := &Schema{
		Sensors: []SensorEntry{{Key: "a", RedisKey: "a", ReadRate: 1}},
		Viewers: []ViewerEntry{
			{Key: "v", Type: TypeSensorViewer, Params: map[string]any{
				"title": "first", "sensor_key": "a", "sub1_key": "a", "sub2_key": "a",
			}},
			{Key: "v", Type: TypeSensorViewer, Params: map[string]any{
				"title": "second", "sensor_key": "a", "sub1_key": "a", "sub2_key": "a",
			}},
		},
	}
	c := NewComposer()
	reg, _ := c.LoadSensors(s, nil)
	viewers, errs := c.LoadViewers(s, nil, reg)
	assert.Empty(t, errs)
	require.Len(t, viewers, 2)
	assert.Equal(t, "first", viewers[0].Params.(*SensorViewerParams).Title)
	assert.Equal(t, "second", viewers[1].Params.(*SensorViewerParams).Title)

	require.Len(t, Validate(s, nil), 1)
	assert.EqualError(t, Validate(s, nil)[0], `viewers[1] "v": duplicate viewer key`)
}

func TestComposeUsesProfileFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dg5w.json"), []byte(testProfile), 0o644))

	res, err := NewComposer(WithProfileDir(dir)).Compose(testConfig(2))
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "dg5w", res.Product)
	assert.Equal(t, "coolant_leak", res.LeakSensor)
	assert.NotZero(t, res.Digest)
	assert.Equal(t, 5, res.Registry.Len())
	assert.Len(t, res.Viewers, 3)
}

func TestComposeFallsBack(t *testing.T) {
	tests := []struct {
		name string
		body *string
	}{
		{"missing file", nil},
		{"corrupt file", ptr(`{"sensors": [{"key": 1}`)},
		{"no sensors", ptr(`{"sensors": [], "viewers": []}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.body != nil {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "dg5w.json"), []byte(*tt.body), 0o644))
			}
			res, err := NewComposer(WithProfileDir(dir)).Compose(testConfig(0))
			require.NoError(t, err)
			assert.True(t, res.Fallback)
			assert.Equal(t, []string{"coolant_temp", "chassis_temp", "chassis_humid", "coolant_leak"}, res.Registry.Keys())
			require.Len(t, res.Viewers, 1)
			assert.Equal(t, "chassis_info", res.Viewers[0].Key)
		})
	}
}

func TestComposeUnknownProduct(t *testing.T) {
	cfg := deviceconf.FromMap(map[string]map[string]any{"product": {"name": "dg9x"}})
	_, err := NewComposer(WithProfileDir(t.TempDir())).Compose(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrUnknownProduct))
}

func TestFallbackProfilesCompose(t *testing.T) {
	for _, product := range []string{"dg5w", "dg5r"} {
		s, err := Fallback(product)
		require.NoError(t, err)
		res, err := NewComposer().ComposeSchema(s, nil)
		require.NoError(t, err)
		assert.Empty(t, res.Errors, product)
		assert.Len(t, res.Viewers, 1, product)
	}
}

func TestValidate(t *testing.T) {
	s, err := Parse([]byte(testProfile))
	require.NoError(t, err)
	s.Viewers = append(s.Viewers, ViewerEntry{Key: "chassis_info", Type: TypeSensorViewer, Params: map[string]any{"colors": "$NOPE"}})

	errs := Validate(s, deviceconf.FromMap(nil))
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	assert.Contains(t, msgs, `sensor_templates[0]: count key "gpu_count" missing from [product]`)
	assert.Contains(t, msgs, `viewers[3] "bogus": unknown viewer type "HologramViewer"`)
	assert.Contains(t, msgs, `viewers[4] "dangling": unknown sensor "nope"`)
	assert.Contains(t, msgs, `viewers[5] "chassis_info": duplicate viewer key`)
	assert.Contains(t, msgs, `viewers[5] "chassis_info": unknown color palette "NOPE"`)
}

func ptr(s string) *string { return &s }

func TestShippedProfilesCompose(t *testing.T) {
	cfg := deviceconf.FromMap(map[string]map[string]any{
		"product": {"cpu_count": 2, "gpu_count": 8, "loop_count": 2},
	})
	tests := []struct {
		product string
		sensors int
		viewers int
	}{
		{"dg5w", 6 + 2 + 8 + 8, 5},
		{"dg5r", 4 + 3*2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.product, func(t *testing.T) {
			schema, _, err := LoadFile(filepath.Join("..", "..", "profiles", tt.product+".json"))
			require.NoError(t, err)

			res, err := NewComposer().ComposeSchema(schema, cfg)
			require.NoError(t, err)
			assert.Empty(t, res.Errors)
			assert.Equal(t, tt.sensors, res.Registry.Len())
			assert.Len(t, res.Viewers, tt.viewers)
			assert.Equal(t, "coolant_leak", res.LeakSensor)
		})
	}
}
