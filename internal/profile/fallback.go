package profile

import (
	"strings"

	"github.com/gadgetini/display-agent/internal/cerrors"
)

const celsius = "°C"

// Fallback returns the built-in minimal profile of product: the chassis
// climate and coolant sensors every unit has, one viewer, and the leak sensor.
func Fallback(product string) (*Schema, error) {
	switch strings.ToLower(product) {
	case "dg5w":
		return &Schema{
			Sensors: []SensorEntry{
				{Key: "coolant_temp", Title: "Coolant Temperature", Unit: celsius, Min: 25, Max: 50, ReadRate: 1, RedisKey: "coolant_temp"},
				{Key: "chassis_temp", Title: "Chassis Temperature", Unit: celsius, Min: -20, Max: 60, ReadRate: 1, RedisKey: "air_temp"},
				{Key: "chassis_humid", Title: "Chassis Humidity", Unit: "%", Min: 0, Max: 100, ReadRate: 1, RedisKey: "air_humit"},
				leakSensor(),
			},
			Viewers: []ViewerEntry{
				{Key: "chassis_info", Type: TypeSensorViewer, Params: map[string]any{
					"title": "Chassis Info", "sensor_key": "coolant_temp", "sub1_key": "chassis_temp", "sub2_key": "chassis_humid",
				}},
			},
		}, nil
	case "dg5r":
		return &Schema{
			Sensors: []SensorEntry{
				{Key: "coolant_inlet1", Title: "Coolant Inlet1", Unit: celsius, Min: 15, Max: 50, ReadRate: 1, RedisKey: "coolant_temp_inlet1"},
				{Key: "coolant_outlet1", Title: "Coolant Outlet1", Unit: celsius, Min: 15, Max: 60, ReadRate: 1, RedisKey: "coolant_temp_outlet1"},
				{Key: "coolant_delta1", Title: "Coolant ΔT1", Unit: celsius, Min: 0, Max: 20, ReadRate: 1, RedisKey: "coolant_delta_t1"},
				{Key: "chassis_temp", Title: "Air Temperature", Unit: celsius, Min: -20, Max: 60, ReadRate: 1, RedisKey: "air_temp"},
				{Key: "chassis_humid", Title: "Chassis Humidity", Unit: "%", Min: 0, Max: 100, ReadRate: 1, RedisKey: "air_humit"},
				leakSensor(),
			},
			Viewers: []ViewerEntry{
				{Key: "coolant_loop1", Type: TypeSensorViewer, Params: map[string]any{
					"title": "Coolant Loop1", "sensor_key": "coolant_inlet1", "sub1_key": "coolant_outlet1", "sub2_key": "coolant_delta1",
				}},
			},
		}, nil
	}
	return nil, cerrors.ErrUnknownProduct.WithMessage("no built-in profile for product %q", product)
}

func leakSensor() SensorEntry {
	return SensorEntry{Key: "coolant_leak", Title: "Coolant Leak", Unit: "", Min: 0, Max: 1, ReadRate: 1, RedisKey: "coolant_leak"}
}
