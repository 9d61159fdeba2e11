// Package profile turns a declarative display profile into a live sensor
// registry and an ordered list of typed viewers.
package profile

import (
	"encoding/json"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"
)

// SensorEntry is one element of "sensors".
type SensorEntry struct {
	Key       string   `json:"key"`
	Title     string   `json:"title"`
	Unit      string   `json:"unit"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	ReadRate  int      `json:"read_rate,omitempty"`
	RedisKey  string   `json:"redis_key,omitempty"`
	RedisKeys []string `json:"redis_keys,omitempty"`
	Formula   string   `json:"formula,omitempty"`
	Icon      string   `json:"icon,omitempty"`
	Label     string   `json:"label,omitempty"`
	HostData  int      `json:"host_data,omitempty"`
}

// SensorTemplate is a SensorEntry repeated Count times, where Count names a
// key of the [product] table and "{i}" is replaced by the index.
type SensorTemplate struct {
	SensorEntry
	Count string `json:"count"`
}

// ViewerEntry is one element of "viewers". Params stay untyped until
// resolution, since "{i}" and "$PALETTE" strings change their shape.
type ViewerEntry struct {
	Key    string         `json:"key"`
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
	Expand string         `json:"expand,omitempty"`
}

// Schema is a parsed profile file.
type Schema struct {
	Sensors         []SensorEntry      `json:"sensors"`
	SensorTemplates []SensorTemplate   `json:"sensor_templates,omitempty"`
	Viewers         []ViewerEntry      `json:"viewers"`
	ColorPalettes   map[string][][]int `json:"color_palettes,omitempty"`
	LeakSensor      string             `json:"leak_sensor,omitempty"`
}

// Parse decodes a profile. Comments and trailing commas are accepted.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(jsonc.ToJSON(data), &s); err != nil {
		return nil, cerrors.ErrInvalidProfile.WithCause(err).WithMessage("invalid profile: %v", err)
	}
	return &s, nil
}

// LoadFile reads and parses path, returning the xxhash of the raw bytes. The
// digest is set whenever the file could be read, even if it does not parse.
func LoadFile(path string) (*Schema, uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to read profile %s", path)
	}
	digest := xxhash.Sum64(data)
	s, err := Parse(data)
	if err != nil {
		return nil, digest, errors.Wrapf(err, "failed to parse profile %s", path)
	}
	return s, digest, nil
}
