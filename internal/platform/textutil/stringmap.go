package textutil

import "strings"

// NormalizeStringMap trims keys and values, removing entries with empty keys.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// MergeStringMaps overlays patch onto base, dropping keys whose patch value is
// empty. Both inputs stay untouched; the result is freshly allocated.
func MergeStringMaps(base, patch map[string]string) map[string]string {
	if len(base) == 0 && len(patch) == 0 {
		return nil
	}
	result := make(map[string]string, len(base)+len(patch))
	for key, value := range NormalizeStringMap(base) {
		result[key] = value
	}
	for key, value := range NormalizeStringMap(patch) {
		if value == "" {
			delete(result, key)
			continue
		}
		result[key] = value
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
