// Package config loads, caches and merges the declarative rule and settings
// documents the hook pipeline runs on. Documents are plain nested mappings;
// a reserved include key merges another document underneath the current one
// and ${VAR} / ${VAR:default} tokens in string leaves resolve against the
// process environment.
package config

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// IncludeKey is the reserved mapping key naming a document to merge
// underneath the current one.
const IncludeKey = "include"

// Document is one parsed configuration file plus the provenance needed for
// cache invalidation.
type Document struct {
	Path     string
	Data     map[string]any
	Hash     string
	LoadedAt time.Time
}

// Get walks a dotted path through the document and returns the value found,
// or def on any missing segment. It never errors.
func Get(doc *Document, path string, def any) any {
	if doc == nil || doc.Data == nil {
		return def
	}
	var current any = doc.Data
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return def
		}
		current, ok = m[segment]
		if !ok {
			return def
		}
	}
	return current
}

// GetString returns the string at path, or def when absent or not coercible.
func GetString(doc *Document, path, def string) string {
	value := Get(doc, path, def)
	result, err := cast.ToStringE(value)
	if err != nil {
		return def
	}
	return result
}

// GetFloat returns the float at path, or def when absent or not coercible.
func GetFloat(doc *Document, path string, def float64) float64 {
	value := Get(doc, path, def)
	result, err := cast.ToFloat64E(value)
	if err != nil {
		return def
	}
	return result
}

// GetInt returns the int at path, or def when absent or not coercible.
func GetInt(doc *Document, path string, def int) int {
	value := Get(doc, path, def)
	result, err := cast.ToIntE(value)
	if err != nil {
		return def
	}
	return result
}

// GetBool returns the bool at path, or def when absent or not coercible.
func GetBool(doc *Document, path string, def bool) bool {
	value := Get(doc, path, def)
	result, err := cast.ToBoolE(value)
	if err != nil {
		return def
	}
	return result
}

// GetDuration returns the duration at path, or def when absent or invalid.
func GetDuration(doc *Document, path string, def time.Duration) time.Duration {
	value := Get(doc, path, def)
	result, err := cast.ToDurationE(value)
	if err != nil {
		return def
	}
	return result
}

// GetStringSlice returns the string list at path, or def when absent.
func GetStringSlice(doc *Document, path string, def []string) []string {
	value := Get(doc, path, nil)
	if value == nil {
		return def
	}
	result, err := cast.ToStringSliceE(value)
	if err != nil {
		return def
	}
	return result
}
