package display

import (
	"bytes"
	"encoding/json"
	"strings"
)

// sensitiveKeyPatterns mark object keys whose values never reach the terminal.
var sensitiveKeyPatterns = []string{
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"KEY",
	"CREDENTIAL",
	"API_KEY",
	"APIKEY",
	"AUTH",
	"PRIVATE",
	"CERT",
	"PASSPHRASE",
}

const redactedValue = "[REDACTED]"

func isSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}

// RedactMap returns a copy of m with sensitive values replaced.
func RedactMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			out[k] = redactedValue
		} else {
			out[k] = v
		}
	}
	return out
}

// RedactJSON walks a JSON document and redacts values stored under sensitive
// keys at any depth. Invalid JSON is returned compacted as far as possible.
func RedactJSON(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.Marshal(redactValue(v))
	if err != nil {
		return string(raw)
	}
	return string(b)
}

func redactValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if isSensitiveKey(k) {
				out[k] = redactedValue
				continue
			}
			out[k] = redactValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = redactValue(val)
		}
		return out
	default:
		return v
	}
}
