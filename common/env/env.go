// Package env reads typed configuration values from the process environment,
// the helper common/config builds its package
// level vars from.
package env

import (
	"os"
	"strconv"
)

// String returns the environment variable named by key, or def if unset/empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the environment variable named by key parsed as an int, or def
// if unset or unparsable.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the environment variable named by key parsed as a bool, or def
// if unset or unparsable. Accepts the same forms as strconv.ParseBool.
func Bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Float64 returns the environment variable named by key parsed as a float64,
// or def if unset or unparsable.
func Float64(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
