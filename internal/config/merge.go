package config

import (
	"fmt"
	"regexp"

	"hooksmith/internal/hookerr"
)

// mergeUnder layers over on top of base: values in over take precedence,
// nested mappings merge recursively, everything else (lists included) is
// replaced wholesale.
func mergeUnder(base, over map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(over))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range over {
		overMap, overIsMap := value.(map[string]any)
		baseMap, baseIsMap := merged[key].(map[string]any)
		if overIsMap && baseIsMap {
			merged[key] = mergeUnder(baseMap, overMap)
			continue
		}
		merged[key] = value
	}
	return merged
}

// ${VAR} or ${VAR:default}; the colon group distinguishes "no default" from
// "empty default".
var interpolationPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:([^}]*))?\}`)

// interpolate resolves environment tokens in every string leaf of data.
// A ${VAR} token with no default and no environment value is a ConfigError.
func interpolate(path string, data map[string]any, lookup EnvLookup) (map[string]any, error) {
	resolved, err := interpolateValue(path, data, lookup)
	if err != nil {
		return nil, err
	}
	return resolved.(map[string]any), nil
}

func interpolateValue(path string, value any, lookup EnvLookup) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, inner := range typed {
			resolved, err := interpolateValue(path, inner, lookup)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(typed))
		for i, inner := range typed {
			resolved, err := interpolateValue(path, inner, lookup)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case string:
		return interpolateString(path, typed, lookup)
	default:
		return value, nil
	}
}

func interpolateString(path, value string, lookup EnvLookup) (string, error) {
	var firstErr error
	result := interpolationPattern.ReplaceAllStringFunc(value, func(token string) string {
		groups := interpolationPattern.FindStringSubmatch(token)
		name, hasDefault, fallback := groups[1], groups[2] != "", groups[3]
		if resolved, ok := lookup(name); ok {
			return resolved
		}
		if hasDefault {
			return fallback
		}
		if firstErr == nil {
			firstErr = hookerr.Configf(path, "unresolved environment variable %s", fmt.Sprintf("${%s}", name))
		}
		return token
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}
