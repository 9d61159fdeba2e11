// Package deviceconf reads the operator-editable device configuration: the
// [display] table toggles viewers and sets orientation, the [product] table
// names the product and the hardware counts profiles expand against.
package deviceconf

import (
	"bytes"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	SectionDisplay = "display"
	SectionProduct = "product"
)

// Config is a reloadable view of the device configuration file. Lookups are
// case-insensitive on both section and key.
type Config struct {
	path string

	mu     sync.RWMutex
	v      *viper.Viper
	digest uint64
	loaded bool
}

// New returns an empty configuration bound to path. Call Reload to read it.
func New(path string) *Config {
	return &Config{path: path, v: viper.New()}
}

// FromMap builds a configuration from in-memory sections.
func FromMap(sections map[string]map[string]any) *Config {
	v := viper.New()
	for section, kv := range sections {
		for k, val := range kv {
			v.Set(strings.ToLower(section)+"."+strings.ToLower(k), val)
		}
	}
	return &Config{v: v, loaded: true}
}

func (c *Config) Path() string { return c.path }

// Reload re-reads the file. It reports changed=true when the file content
// differs from the last successful read. On error the previous values stay in
// effect.
func (c *Config) Reload() (changed bool, err error) {
	if c.path == "" {
		return false, nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read device config %s", c.path)
	}
	sum := xxhash.Sum64(data)

	c.mu.RLock()
	same := c.loaded && sum == c.digest
	c.mu.RUnlock()
	if same {
		return false, nil
	}

	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return false, errors.Wrapf(err, "failed to parse device config %s", c.path)
	}

	c.mu.Lock()
	c.v, c.digest, c.loaded = v, sum, true
	c.mu.Unlock()
	return true, nil
}

// Digest is the xxhash of the last successfully parsed file.
func (c *Config) Digest() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.digest
}

func (c *Config) lookup(section, key string) (any, bool) {
	full := strings.ToLower(section) + "." + strings.ToLower(key)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.v.IsSet(full) {
		return nil, false
	}
	return c.v.Get(full), true
}

// GetInt returns section.key as an int, or fallback when it is missing or
// not a number.
func (c *Config) GetInt(section, key string, fallback int) int {
	raw, ok := c.lookup(section, key)
	if !ok {
		return fallback
	}
	if s, isStr := raw.(string); isStr {
		raw = strings.TrimSpace(s)
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return fallback
	}
	return n
}

// GetBool accepts booleans, numbers and the strings on/off, yes/no,
// true/false and 1/0.
func (c *Config) GetBool(section, key string, fallback bool) bool {
	raw, ok := c.lookup(section, key)
	if !ok {
		return fallback
	}
	if s, isStr := raw.(string); isStr {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "on", "yes", "true", "1":
			return true
		case "off", "no", "false", "0":
			return false
		default:
			return fallback
		}
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return fallback
	}
	return b
}

func (c *Config) GetString(section, key, fallback string) string {
	raw, ok := c.lookup(section, key)
	if !ok {
		return fallback
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return fallback
	}
	return s
}

// Section returns a flat copy of one table, values rendered as strings.
func (c *Config) Section(section string) map[string]string {
	c.mu.RLock()
	raw := c.v.GetStringMap(strings.ToLower(section))
	c.mu.RUnlock()
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = cast.ToString(v)
	}
	return out
}

// SectionDigest hashes one table's keys and values. Toggling a viewer does
// not change the product digest, so it does not force a recomposition.
func (c *Config) SectionDigest(section string) uint64 {
	kv := c.Section(section)
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	h := xxhash.New()
	for _, k := range keys {
		_, _ = h.WriteString(k)
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(kv[k])
		_, _ = h.WriteString("\n")
	}
	return h.Sum64()
}

// Product returns [product].name, defaulting to the first supported product.
func (c *Config) Product() string {
	return strings.ToLower(c.GetString(SectionProduct, "name", constants.DefaultProduct))
}

// ViewerEnabled reports whether [display].<key> enables the viewer. A viewer
// without a toggle is off.
func (c *Config) ViewerEnabled(key string) bool {
	return c.GetBool(SectionDisplay, key, false)
}

// Orientation returns [display].orientation, "horizontal" or "vertical".
func (c *Config) Orientation() string {
	o := strings.ToLower(c.GetString(SectionDisplay, "orientation", "vertical"))
	if o != "horizontal" && o != "vertical" {
		return "vertical"
	}
	return o
}
