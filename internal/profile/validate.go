package profile

import (
	"fmt"
	"strings"

	"github.com/gadgetini/display-agent/internal/formula"
)

// Validate checks a schema against the device configuration without building
// anything. Problems reported here are either skipped or tolerated by the
// composer; Validate exists so they can be surfaced together.
func Validate(schema *Schema, cfg Counts) []error {
	var errs []error
	report := func(format string, a ...any) { errs = append(errs, fmt.Errorf(format, a...)) }

	hasCount := func(key string) bool {
		return cfg != nil && cfg.GetInt("product", key, -1) >= 0
	}

	seen := make(map[string]string)
	track := func(key, origin string) {
		if prev, ok := seen[key]; ok {
			report("duplicate sensor key %q in %s and %s", key, prev, origin)
			return
		}
		seen[key] = origin
	}

	for i, e := range schema.Sensors {
		origin := fmt.Sprintf("sensors[%d]", i)
		track(e.Key, origin)
		if e.Formula != "" {
			if _, err := formula.Compile(e.Formula); err != nil {
				report("%s: %v", origin, err)
			}
		}
	}
	for i, t := range schema.SensorTemplates {
		origin := fmt.Sprintf("sensor_templates[%d]", i)
		if t.Count == "" {
			report("%s has no count key", origin)
		} else if !hasCount(t.Count) {
			report("%s: count key %q missing from [product]", origin, t.Count)
		}
		if !strings.Contains(t.Key, indexPlaceholder) && productCount(cfg, t.Count) > 1 {
			report("%s: key %q has no %s placeholder", origin, t.Key, indexPlaceholder)
		}
		for n := range productCount(cfg, t.Count) {
			track(substitute(t.Key, n), origin)
		}
	}

	viewerKeys := make(map[string]bool)
	for i, v := range schema.Viewers {
		origin := fmt.Sprintf("viewers[%d] %q", i, v.Key)
		if viewerKeys[v.Key] {
			report("%s: duplicate viewer key", origin)
		}
		viewerKeys[v.Key] = true
		if _, ok := newParams(v.Type); !ok {
			report("%s: unknown viewer type %q", origin, v.Type)
		}
		if v.Expand != "" && !hasCount(v.Expand) {
			report("%s: expand key %q missing from [product]", origin, v.Expand)
		}
		for _, name := range paletteRefs(v.Params) {
			if _, ok := schema.ColorPalettes[name]; !ok {
				report("%s: unknown color palette %q", origin, name)
			}
		}
		r := resolver{palettes: schema.ColorPalettes, expand: v.Expand != "", count: productCount(cfg, v.Expand)}
		raw, err := r.params(v.Params)
		if err != nil {
			continue
		}
		for _, key := range stringLeaves(raw, isSensorParam) {
			if _, ok := seen[key]; !ok {
				report("%s: unknown sensor %q", origin, key)
			}
		}
	}
	return errs
}

func isSensorParam(name string) bool {
	return strings.HasSuffix(name, "_key") || strings.HasSuffix(name, "_keys")
}

func paletteRefs(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, "$") {
			out = append(out, t[1:])
		}
	case []any:
		for _, e := range t {
			out = append(out, paletteRefs(e)...)
		}
	case map[string]any:
		for _, e := range t {
			out = append(out, paletteRefs(e)...)
		}
	}
	return out
}

// stringLeaves collects the string values of params whose name matches.
func stringLeaves(params map[string]any, match func(string) bool) []string {
	var out []string
	for name, v := range params {
		switch t := v.(type) {
		case string:
			if match(name) {
				out = append(out, t)
			}
		case []any:
			for _, e := range t {
				switch et := e.(type) {
				case string:
					if match(name) {
						out = append(out, et)
					}
				case map[string]any:
					out = append(out, stringLeaves(et, match)...)
				}
			}
		case map[string]any:
			out = append(out, stringLeaves(t, match)...)
		}
	}
	return out
}
