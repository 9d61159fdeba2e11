package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/formula"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/sensor"
	"github.com/gadgetini/display-agent/internal/telemetry"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DeviceConfig is what composition needs from the device configuration.
type DeviceConfig interface {
	Counts
	Product() string
}

// Viewer is a resolved, typed viewer definition.
type Viewer struct {
	Key    string `json:"key"`
	Type   string `json:"type"`
	Params Params `json:"params"`
}

// Result is one composition: the registry and viewers built together, plus
// where they came from.
type Result struct {
	Product    string
	Path       string
	Digest     uint64
	Fallback   bool
	LeakSensor string
	Registry   *sensor.Registry
	Viewers    []Viewer
	Errors     []error
}

type Options struct {
	ProfileDir string
	Source     telemetry.Source
	WindowSize int
	Logger     *log.Logger
}

type Option func(*Options)

func WithProfileDir(dir string) Option {
	return func(o *Options) { o.ProfileDir = dir }
}

func WithSource(src telemetry.Source) Option {
	return func(o *Options) { o.Source = src }
}

func WithWindowSize(n int) Option {
	return func(o *Options) { o.WindowSize = n }
}

func WithLogger(l *log.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Composer builds registries and viewer lists from profile files.
type Composer struct {
	dir    string
	source telemetry.Source
	window int
	logger *log.Logger
}

func NewComposer(opts ...Option) *Composer {
	o := &Options{
		ProfileDir: constants.DefaultProfileDir,
		WindowSize: constants.DefaultWindowSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = log.Component("profile")
	}
	if o.Source == nil {
		o.Source = telemetry.NewStaticSource(nil)
	}
	return &Composer{dir: o.ProfileDir, source: o.Source, window: o.WindowSize, logger: o.Logger}
}

// PathFor returns the profile file of product.
func (c *Composer) PathFor(product string) string {
	return filepath.Join(c.dir, strings.ToLower(product)+".json")
}

// Digest hashes the current profile file of product without parsing it.
func (c *Composer) Digest(product string) (uint64, error) {
	data, err := os.ReadFile(c.PathFor(product))
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}

// Compose builds the registry and viewers for the configured product. The
// profile file is tried first; when it cannot be read, fails catastrophically
// or yields no sensors the built-in profile of the product is used instead.
// An error is returned only when neither works.
func (c *Composer) Compose(cfg DeviceConfig) (*Result, error) {
	product := cfg.Product()
	path := c.PathFor(product)

	schema, digest, err := LoadFile(path)
	if err == nil {
		res, cerr := c.ComposeSchema(schema, cfg)
		if cerr == nil && res.Registry.Len() > 0 {
			res.Product, res.Path, res.Digest = product, path, digest
			return res, nil
		}
		err = cerr
		if err == nil {
			err = cerrors.ErrInvalidProfile.WithMessage("profile %s produced no sensors", path)
		}
	}
	c.logger.Warn("falling back to built-in profile",
		zap.String("product", product), zap.String("path", path), zap.Error(err))

	fb, ferr := Fallback(product)
	if ferr != nil {
		return nil, errors.Wrapf(ferr, "profile %s unusable (%v)", path, err)
	}
	res, cerr := c.ComposeSchema(fb, cfg)
	if cerr != nil {
		return nil, errors.Wrapf(cerr, "failed to compose built-in profile for %s", product)
	}
	res.Product, res.Path, res.Digest, res.Fallback = product, path, digest, true
	return res, nil
}

// ComposeSchema composes an already parsed schema. Per-entry problems are
// logged and collected in Result.Errors; a panic while composing is returned
// as an error.
func (c *Composer) ComposeSchema(schema *Schema, cfg Counts) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, cerrors.ErrInvalidProfile.WithMessage("profile composition panicked: %v", r)
		}
	}()

	for _, verr := range Validate(schema, cfg) {
		c.logger.Warn("profile validation", zap.Error(verr))
	}

	reg, serrs := c.LoadSensors(schema, cfg)
	viewers, verrs := c.LoadViewers(schema, cfg, reg)

	leak := schema.LeakSensor
	if leak == "" {
		leak = constants.DefaultLeakSensorKey
	}
	return &Result{
		LeakSensor: leak,
		Registry:   reg,
		Viewers:    viewers,
		Errors:     append(serrs, verrs...),
	}, nil
}

// LoadSensors builds runtimes for static sensors in order, then for each
// template expanded count times. A later entry with an existing key replaces
// the earlier runtime at the earlier position.
func (c *Composer) LoadSensors(schema *Schema, cfg Counts) (*sensor.Registry, []error) {
	reg := sensor.NewRegistry()
	origins := make(map[string]string)
	var errs []error

	add := func(entry SensorEntry, origin string) {
		spec, err := buildSpec(entry)
		if err != nil {
			err = errors.Wrapf(err, "skipping %s", origin)
			c.logger.Error(err.Error())
			errs = append(errs, err)
			return
		}
		if old := reg.Put(sensor.NewRuntime(spec, c.source, c.window)); old != nil {
			c.logger.Warn(fmt.Sprintf("sensor %q from %s replaces the one from %s", spec.Key, origin, origins[spec.Key]),
				zap.String("sensor_key", spec.Key))
		}
		origins[spec.Key] = origin
	}

	for i, entry := range schema.Sensors {
		add(entry, fmt.Sprintf("sensors[%d]", i))
	}
	for ti, tmpl := range schema.SensorTemplates {
		count := productCount(cfg, tmpl.Count)
		for i := range count {
			add(expandEntry(tmpl.SensorEntry, i), fmt.Sprintf("sensor_templates[%d] #%d", ti, i))
		}
	}
	return reg, errs
}

// LoadViewers resolves viewer params and decodes them into typed structs.
// Viewers with bad params or references to sensors missing from reg are
// skipped.
func (c *Composer) LoadViewers(schema *Schema, cfg Counts, reg *sensor.Registry) ([]Viewer, []error) {
	var (
		viewers []Viewer
		errs    []error
	)
	for i, entry := range schema.Viewers {
		v, err := buildViewer(entry, schema.ColorPalettes, cfg, reg)
		if err != nil {
			err = errors.Wrapf(err, "skipping viewers[%d] %q", i, entry.Key)
			c.logger.Error(err.Error())
			errs = append(errs, err)
			continue
		}
		viewers = append(viewers, v)
	}
	return viewers, errs
}

func buildViewer(entry ViewerEntry, palettes map[string][][]int, cfg Counts, reg *sensor.Registry) (Viewer, error) {
	if entry.Key == "" {
		return Viewer{}, cerrors.ErrInvalidProfile.WithMessage("viewer without key")
	}
	if _, ok := newParams(entry.Type); !ok {
		return Viewer{}, cerrors.ErrUnknownViewer.WithMessage("unknown viewer type %q", entry.Type)
	}
	r := resolver{palettes: palettes}
	if entry.Expand != "" {
		r.expand, r.count = true, productCount(cfg, entry.Expand)
	}
	raw, err := r.params(entry.Params)
	if err != nil {
		return Viewer{}, err
	}
	params, err := decodeParams(entry.Type, raw)
	if err != nil {
		return Viewer{}, err
	}
	for _, key := range params.SensorKeys() {
		if !reg.Has(key) {
			return Viewer{}, cerrors.ErrUnknownSensor.WithMessage("viewer references unknown sensor %q", key)
		}
	}
	return Viewer{Key: entry.Key, Type: entry.Type, Params: params}, nil
}

func buildSpec(e SensorEntry) (sensor.Spec, error) {
	spec := sensor.Spec{
		Key:       e.Key,
		Title:     e.Title,
		Unit:      e.Unit,
		Min:       e.Min,
		Max:       e.Max,
		ReadRate:  e.ReadRate,
		RedisKey:  e.RedisKey,
		RedisKeys: e.RedisKeys,
		Label:     e.Label,
		HostData:  e.HostData != 0,
	}
	if spec.ReadRate == 0 {
		spec.ReadRate = constants.DefaultReadRate
	}
	if e.Formula != "" {
		p, err := formula.Compile(e.Formula)
		if err != nil {
			return sensor.Spec{}, err
		}
		spec.Formula = p
	}
	if e.Icon != "" {
		icon, err := parseIcon(e.Icon)
		if err != nil {
			return sensor.Spec{}, cerrors.ErrInvalidProfile.WithCause(err).WithMessage("sensor %q has invalid icon %q", e.Key, e.Icon)
		}
		spec.Icon = icon
	}
	if err := spec.Validate(); err != nil {
		return sensor.Spec{}, err
	}
	return spec, nil
}

// parseIcon decodes a hex code point such as "0xf0510".
func parseIcon(s string) (rune, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, err
	}
	if n > 0x10FFFF {
		return 0, fmt.Errorf("code point %#x out of range", n)
	}
	return rune(n), nil
}
