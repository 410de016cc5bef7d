package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// ExtractJSON cuts the JSON payload out of a model response, stripping
// Markdown code fences and any prose around the first { or [ and the last
// } or ].
func ExtractJSON(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")

	startObj := strings.Index(s, "{")
	startArr := strings.Index(s, "[")

	start := -1
	switch {
	case startObj != -1 && startArr != -1:
		start = startObj
		if startArr < startObj {
			start = startArr
		}
	case startObj != -1:
		start = startObj
	case startArr != -1:
		start = startArr
	}

	if start == -1 {
		return "{}"
	}

	endObj := strings.LastIndex(s, "}")
	endArr := strings.LastIndex(s, "]")

	end := endObj
	if endArr > end {
		end = endArr
	}

	if end == -1 || start > end {
		return "{}"
	}

	return s[start : end+1]
}

// RepairJSON attempts to repair a truncated JSON string. It targets arrays
// and objects that were cut off mid-element: the tail after the last
// complete "}" is dropped and the container is re-closed.
func RepairJSON(s string) string {
	s = strings.TrimSpace(s)

	var closer string
	switch {
	case strings.HasPrefix(s, "["):
		if strings.HasSuffix(s, "]") {
			return s
		}
		closer = "]"
	case strings.HasPrefix(s, "{"):
		if strings.HasSuffix(s, "}") {
			return s
		}
		closer = "}"
	default:
		return s
	}

	lastObjEnd := strings.LastIndex(s, "}")
	if lastObjEnd == -1 {
		if closer == "]" {
			return "[]"
		}
		return "{}"
	}

	return s[:lastObjEnd+1] + closer
}

// UnmarshalWithRepair tries to unmarshal JSON. If that fails, it repairs
// the string and tries once more; a detailed log line is emitted only when
// the repair also fails.
func UnmarshalWithRepair(jsonStr string, v interface{}, logPrefix string) error {
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		repaired := RepairJSON(jsonStr)
		if err := json.Unmarshal([]byte(repaired), v); err != nil {
			log.Printf("%s: ошибка разбора JSON (после восстановления): %v\nOriginal: %s\nRepaired: %s", logPrefix, err, jsonStr, repaired)
			return err
		}
	}
	return nil
}
