package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

func ParseJSONBytes(data []byte) (*RecordFields, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return ParseJSONMap(obj), nil
}

// ParseJSONMap flattens one level of nesting so the export tool's
// {"data": {"app": ...}} shape is accepted as well.
func ParseJSONMap(obj map[string]interface{}) *RecordFields {
	flat := map[string]string{}
	for key, val := range obj {
		if nested, ok := val.(map[string]interface{}); ok {
			for k2, v2 := range nested {
				flat[strings.ToLower(k2)] = stringify(v2)
			}
			continue
		}
		flat[strings.ToLower(key)] = stringify(val)
	}
	fields := &RecordFields{}
	fields.Timestamp = firstNonEmpty(flat, "timestamp", "time", "ts", "start")
	fields.App = firstNonEmpty(flat, "app", "bundle_id", "identifier", "app_id")
	fields.Title = firstNonEmpty(flat, "title", "name")
	fields.Duration = firstNonEmpty(flat, "duration_seconds", "duration", "usage")
	fields.CreatedAt = firstNonEmpty(flat, "created_at", "created")
	return fields
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
