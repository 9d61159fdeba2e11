package profile

import (
	"strconv"
	"strings"

	"github.com/gadgetini/display-agent/internal/cerrors"
)

const indexPlaceholder = "{i}"

// Counts is the part of the device configuration a profile expands against.
type Counts interface {
	GetInt(section, key string, fallback int) int
}

func productCount(cfg Counts, key string) int {
	if cfg == nil || key == "" {
		return 0
	}
	return max(0, cfg.GetInt("product", key, 0))
}

func substitute(s string, i int) string {
	return strings.ReplaceAll(s, indexPlaceholder, strconv.Itoa(i))
}

func expandEntry(t SensorEntry, i int) SensorEntry {
	e := t
	e.Key = substitute(t.Key, i)
	e.Title = substitute(t.Title, i)
	e.Unit = substitute(t.Unit, i)
	e.RedisKey = substitute(t.RedisKey, i)
	e.Formula = substitute(t.Formula, i)
	e.Icon = substitute(t.Icon, i)
	e.Label = substitute(t.Label, i)
	if t.RedisKeys != nil {
		e.RedisKeys = make([]string, len(t.RedisKeys))
		for j, k := range t.RedisKeys {
			e.RedisKeys[j] = substitute(k, i)
		}
	}
	return e
}

// resolver rewrites viewer params: "{i}" strings become count strings when
// expanding, "$NAME" strings become palette colors.
type resolver struct {
	palettes map[string][][]int
	count    int
	expand   bool
}

func (r resolver) params(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, v := range in {
		rv, err := r.value(v)
		if err != nil {
			return nil, err
		}
		out[k] = rv
	}
	return out, nil
}

func (r resolver) value(v any) (any, error) {
	switch t := v.(type) {
	case string:
		if r.expand && strings.Contains(t, indexPlaceholder) {
			list := make([]any, r.count)
			for i := range r.count {
				list[i] = substitute(t, i)
			}
			return list, nil
		}
		if strings.HasPrefix(t, "$") {
			return r.palette(t[1:])
		}
		return t, nil
	case []any:
		if !allObjects(t) {
			return t, nil
		}
		list := make([]any, len(t))
		for i, e := range t {
			m, err := r.params(e.(map[string]any))
			if err != nil {
				return nil, err
			}
			list[i] = m
		}
		return list, nil
	case map[string]any:
		return r.params(t)
	default:
		return v, nil
	}
}

// palette returns the named colors. When expanding, the palette is cycled or
// truncated to exactly count entries.
func (r resolver) palette(name string) ([]any, error) {
	colors, ok := r.palettes[name]
	if !ok {
		return nil, cerrors.ErrUnknownPalette.WithMessage("unknown color palette %q", name)
	}
	n := len(colors)
	if r.expand {
		n = r.count
		if len(colors) == 0 && n > 0 {
			return nil, cerrors.ErrUnknownPalette.WithMessage("color palette %q is empty", name)
		}
	}
	out := make([]any, n)
	for i := range n {
		c := colors[i%len(colors)]
		triple := make([]any, len(c))
		for j, ch := range c {
			triple[j] = float64(ch)
		}
		out[i] = triple
	}
	return out, nil
}

func allObjects(list []any) bool {
	if len(list) == 0 {
		return false
	}
	for _, e := range list {
		if _, ok := e.(map[string]any); !ok {
			return false
		}
	}
	return true
}
