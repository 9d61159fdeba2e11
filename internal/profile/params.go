package profile

import (
	"fmt"
	"reflect"

	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/sensor"
	"github.com/go-viper/mapstructure/v2"
)

// Viewer type names accepted in profiles.
const (
	TypeSensorViewer        = "SensorViewer"
	TypeMultiSensorViewer   = "MultiSensorViewer"
	TypeDailyViewer         = "DailyViewer"
	TypeDualSensorViewer    = "DualSensorViewer"
	TypeCoolantDetailViewer = "CoolantDetailViewer"
	TypeTempUtilViewer      = "TempUtilViewer"
)

// Params is the typed parameter set of one viewer type.
type Params interface {
	// SensorKeys lists every registry key the viewer draws from.
	SensorKeys() []string
	Validate() error
}

type SensorViewerParams struct {
	Title         string   `json:"title"`
	SensorKey     string   `json:"sensor_key"`
	Sub1Key       string   `json:"sub1_key"`
	Sub2Key       string   `json:"sub2_key"`
	FixedMin      *float64 `json:"fixed_min,omitempty"`
	FixedMax      *float64 `json:"fixed_max,omitempty"`
	Sub1Autoscale bool     `json:"sub1_autoscale,omitempty"`
	Sub2Autoscale bool     `json:"sub2_autoscale,omitempty"`
}

func (p *SensorViewerParams) SensorKeys() []string {
	return []string{p.SensorKey, p.Sub1Key, p.Sub2Key}
}

func (p *SensorViewerParams) Validate() error {
	if p.SensorKey == "" || p.Sub1Key == "" || p.Sub2Key == "" {
		return fmt.Errorf("sensor_key, sub1_key and sub2_key are required")
	}
	if p.FixedMin != nil && p.FixedMax != nil && *p.FixedMin >= *p.FixedMax {
		return fmt.Errorf("fixed_min must be below fixed_max")
	}
	return nil
}

// SeriesParams is shared by viewers that draw several sensors with a legend.
type SeriesParams struct {
	Title      string         `json:"title"`
	SensorKeys []string       `json:"sensor_keys"`
	Colors     []sensor.Color `json:"colors"`
	Labels     []string       `json:"labels"`
}

func (p *SeriesParams) keys() []string { return p.SensorKeys }

func (p *SeriesParams) validate() error {
	return validateSeries(p.SensorKeys, p.Colors, p.Labels)
}

type MultiSensorViewerParams SeriesParams

func (p *MultiSensorViewerParams) SensorKeys() []string { return (*SeriesParams)(p).keys() }

func (p *MultiSensorViewerParams) Validate() error { return (*SeriesParams)(p).validate() }

// DailyViewerParams draws the recorded history of its sensors.
type DailyViewerParams SeriesParams

func (p *DailyViewerParams) SensorKeys() []string { return (*SeriesParams)(p).keys() }

func (p *DailyViewerParams) Validate() error { return (*SeriesParams)(p).validate() }

type Panel struct {
	Title     string `json:"title"`
	SensorKey string `json:"sensor_key"`
}

type DualSensorViewerParams struct {
	Panels []Panel `json:"panels"`
}

func (p *DualSensorViewerParams) SensorKeys() []string {
	keys := make([]string, 0, len(p.Panels))
	for _, panel := range p.Panels {
		keys = append(keys, panel.SensorKey)
	}
	return keys
}

func (p *DualSensorViewerParams) Validate() error {
	if len(p.Panels) == 0 {
		return fmt.Errorf("panels must not be empty")
	}
	return nil
}

type CoolantLoop struct {
	Title      string         `json:"title"`
	SensorKeys []string       `json:"sensor_keys"`
	DeltaKey   string         `json:"delta_key"`
	Colors     []sensor.Color `json:"colors"`
	Labels     []string       `json:"labels"`
}

type CoolantDetailViewerParams struct {
	Loops []CoolantLoop `json:"loops"`
}

func (p *CoolantDetailViewerParams) SensorKeys() []string {
	var keys []string
	for _, l := range p.Loops {
		keys = append(keys, l.SensorKeys...)
		keys = append(keys, l.DeltaKey)
	}
	return keys
}

func (p *CoolantDetailViewerParams) Validate() error {
	if len(p.Loops) == 0 {
		return fmt.Errorf("loops must not be empty")
	}
	for i, l := range p.Loops {
		if err := validateSeries(l.SensorKeys, l.Colors, l.Labels); err != nil {
			return fmt.Errorf("loops[%d]: %w", i, err)
		}
	}
	return nil
}

type TempUtilViewerParams struct {
	TempTitle  string         `json:"temp_title"`
	UtilTitle  string         `json:"util_title"`
	SensorKeys []string       `json:"sensor_keys"`
	Colors     []sensor.Color `json:"colors"`
	Labels     []string       `json:"labels"`
	UtilKeys   []string       `json:"util_keys"`
}

func (p *TempUtilViewerParams) SensorKeys() []string {
	return append(append([]string(nil), p.SensorKeys...), p.UtilKeys...)
}

func (p *TempUtilViewerParams) Validate() error {
	if err := validateSeries(p.SensorKeys, p.Colors, p.Labels); err != nil {
		return err
	}
	if len(p.UtilKeys) != len(p.SensorKeys) {
		return fmt.Errorf("util_keys has %d entries, sensor_keys has %d", len(p.UtilKeys), len(p.SensorKeys))
	}
	return nil
}

// validateSeries requires one color and one label per sensor; viewers index
// them in parallel.
func validateSeries(keys []string, colors []sensor.Color, labels []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("sensor_keys must not be empty")
	}
	if len(colors) < len(keys) {
		return fmt.Errorf("%d colors for %d sensors", len(colors), len(keys))
	}
	if len(labels) < len(keys) {
		return fmt.Errorf("%d labels for %d sensors", len(labels), len(keys))
	}
	return nil
}

func newParams(viewerType string) (Params, bool) {
	switch viewerType {
	case TypeSensorViewer:
		return &SensorViewerParams{}, true
	case TypeMultiSensorViewer:
		return &MultiSensorViewerParams{}, true
	case TypeDailyViewer:
		return &DailyViewerParams{}, true
	case TypeDualSensorViewer:
		return &DualSensorViewerParams{}, true
	case TypeCoolantDetailViewer:
		return &CoolantDetailViewerParams{}, true
	case TypeTempUtilViewer:
		return &TempUtilViewerParams{}, true
	}
	return nil, false
}

// decodeParams turns resolved params into the typed struct of viewerType.
// Unknown params are rejected.
func decodeParams(viewerType string, raw map[string]any) (Params, error) {
	p, ok := newParams(viewerType)
	if !ok {
		return nil, cerrors.ErrUnknownViewer.WithMessage("unknown viewer type %q", viewerType)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		DecodeHook:  mapstructure.DecodeHookFuncType(colorHook),
		Result:      p,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, cerrors.ErrInvalidProfile.WithCause(err).WithMessage("invalid %s params: %v", viewerType, err)
	}
	if err := p.Validate(); err != nil {
		return nil, cerrors.ErrInvalidProfile.WithCause(err).WithMessage("invalid %s params: %v", viewerType, err)
	}
	return p, nil
}

var colorType = reflect.TypeOf(sensor.Color{})

// colorHook decodes [r, g, b] lists into sensor.Color.
func colorHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != colorType || from.Kind() != reflect.Slice {
		return data, nil
	}
	list, ok := data.([]any)
	if !ok || len(list) != 3 {
		return nil, fmt.Errorf("color must be an [r, g, b] list, got %v", data)
	}
	var rgb [3]uint8
	for i, ch := range list {
		f, ok := ch.(float64)
		if !ok {
			if n, isInt := ch.(int); isInt {
				f, ok = float64(n), true
			}
		}
		if !ok || f < 0 || f > 255 {
			return nil, fmt.Errorf("color channel %v out of range", ch)
		}
		rgb[i] = uint8(f)
	}
	return sensor.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}
