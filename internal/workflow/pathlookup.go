package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var arrayIndexPattern = regexp.MustCompile(`^(.+)\[(\d+)\]$`)

// lookupByPath resolves a dotted/array-indexed path against a nested map,
// duplicating the action interpolator's algorithm here to avoid an import
// cycle between this package and the actions package (which itself depends
// on workflow for sub-workflow config).
func lookupByPath(data map[string]interface{}, path string) (interface{}, error) {
	if path == "" {
		return data, nil
	}

	var current interface{} = data
	for i, part := range splitPathSegments(path) {
		if m := arrayIndexPattern.FindStringSubmatch(part); m != nil {
			key, idxStr := m[1], m[2]
			obj, ok := current.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("cannot access key %q on non-object type", key)
			}
			current, ok = obj[key]
			if !ok {
				return nil, fmt.Errorf("key %q not found", key)
			}
			arr, ok := current.([]interface{})
			if !ok {
				return nil, fmt.Errorf("cannot index non-array type at %q", key)
			}
			idx, err := strconv.Atoi(idxStr)
			if err != nil || idx < 0 || idx >= len(arr) {
				return nil, fmt.Errorf("invalid or out-of-bounds array index %q", idxStr)
			}
			current = arr[idx]
			continue
		}

		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("cannot traverse into non-object type at %q", part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("key %q not found at path position %d", part, i)
		}
	}
	return current, nil
}

// splitPathSegments splits on unescaped dots, honoring "\." as a literal dot.
func splitPathSegments(path string) []string {
	var parts []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(path); i++ {
		ch := path[i]
		if ch == '\\' && i+1 < len(path) && path[i+1] == '.' {
			cur.WriteByte('.')
			i++
			escaped = true
			continue
		}
		if ch == '.' && !escaped {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
		} else {
			cur.WriteByte(ch)
		}
		escaped = false
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
