// Package provider holds helpers shared by the stat and identity providers.
package provider

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ExtractValue normalizes a stat value from a decoded JSON response.
//
// FanGraphs returns most values as numbers but some as numeric strings,
// occasionally with a trailing percent sign ("12.5 %"); percentages are
// returned as written, not divided by 100. Null, empty and non-numeric
// values are reported as not extractable.
func ExtractValue(val interface{}) (float64, bool) {
	if val == nil {
		return 0, false
	}

	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%"))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// ExtractValues converts every extractable entry of a decoded JSON object.
func ExtractValues(row map[string]interface{}) map[string]float64 {
	out := make(map[string]float64, len(row))
	for k, v := range row {
		if f, ok := ExtractValue(v); ok {
			out[k] = f
		}
	}
	return out
}
