package utilities

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/viper"
)

// ParseDuration parses duration strings like "5m", "1h30m", "250ms".
// A bare integer (e.g. "5" or "  42 ") is treated as seconds.
func ParseDuration(s string) (time.Duration, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return 0, &time.ParseError{Layout: "duration", Value: s, Message: "empty duration"}
	}
	if isBareInt(in) {
		secs, err := strconv.ParseInt(in, 10, 64)
		if err != nil {
			return 0, err
		}
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(in)
}

// ReadDuration reads a viper key holding "10s"/"500ms", an int (seconds) or a
// native duration. Unset or non-positive values yield def.
func ReadDuration(key string, def time.Duration) time.Duration {
	if !viper.IsSet(key) {
		return def
	}
	if s := viper.GetString(key); s != "" {
		if d, err := ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	if d := viper.GetDuration(key); d > 0 {
		return d
	}
	return def
}

// ReadInt reads a viper int, returning def when unset or non-positive.
func ReadInt(key string, def int) int {
	if !viper.IsSet(key) {
		return def
	}
	if n := viper.GetInt(key); n > 0 {
		return n
	}
	return def
}

// ReadString reads a viper string, returning def when unset or empty.
func ReadString(key, def string) string {
	if s := strings.TrimSpace(viper.GetString(key)); s != "" {
		return s
	}
	return def
}

// ReadBool reads a viper bool, returning def when unset.
func ReadBool(key string, def bool) bool {
	if !viper.IsSet(key) {
		return def
	}
	return viper.GetBool(key)
}

func isBareInt(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
		if s == "" {
			return false
		}
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
