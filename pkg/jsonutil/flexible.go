package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexibleString renders a loosely typed value decoded from YAML or JSON
// as text. Integral floats render without a fraction and nil renders empty.
func FlexibleString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case json.RawMessage:
		return flexibleRaw(val)
	}

	// Lists and maps fall back to their JSON form
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

func flexibleRaw(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}
	switch decoded.(type) {
	case string, bool, float64:
		return FlexibleString(decoded)
	}
	return string(raw)
}
