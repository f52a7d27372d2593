package extractor

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"call-analytics-go/internal/types"
)

// Parse maps a model response onto catalog. It never fails: every catalog KPI is
// in the result, absent when the response does not provide a usable value.
// A JSON object is read first (nested objects are flattened and matched by leaf
// name); "key: value" lines fill whatever the JSON did not.
func Parse(catalog Catalog, response string) types.KPISet {
	raw := map[string]any{}
	if obj := extractJSON(response); obj != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(obj), &m); err == nil {
			raw = flatten(m)
		}
	}
	lines := parseLines(response)

	out := make(types.KPISet, len(catalog))
	for _, d := range catalog {
		v := types.Absent()
		if r, ok := raw[d.Name]; ok {
			v = coerce(d.Type, r)
		}
		if v.IsAbsent() {
			if s, ok := lines[d.Name]; ok {
				v = coerce(d.Type, s)
			}
		}
		out[d.Name] = v
	}
	return out
}

// extractContentFromChoices reads an OpenAI-style choices[0].message.content.
func extractContentFromChoices(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}

	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	c0, _ := choices[0].(map[string]any)
	if c0 == nil {
		return ""
	}
	msg, _ := c0["message"].(map[string]any)
	if msg == nil {
		return ""
	}
	content, _ := msg["content"].(string)
	return content
}

// extractJSON finds the first balanced JSON object in a string and returns it.
// It strips common markdown fences first and skips braces inside strings.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```yaml", "```text", "```"} {
		s = strings.ReplaceAll(s, r, "")
	}

	for start := strings.Index(s, "{"); start != -1; {
		depth := 0
		inString, escaped := false, false
		end := -1
	scan:
		for i := start; i < len(s); i++ {
			c := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && c == '\\':
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					end = i
					break scan
				}
			}
		}
		if end == -1 {
			return ""
		}
		candidate := strings.TrimSpace(s[start : end+1])
		if json.Valid([]byte(candidate)) {
			return candidate
		}
		next := strings.Index(s[start+1:], "{")
		if next == -1 {
			return ""
		}
		start += next + 1
	}
	return ""
}

type leaf struct {
	depth int
	path  string
	value any
}

// flatten indexes every value by its normalized key. When a name appears at
// several places the shallowest wins, then the lexically first path.
func flatten(m map[string]any) map[string]any {
	found := map[string]leaf{}
	var walk func(prefix string, depth int, m map[string]any)
	walk = func(prefix string, depth int, m map[string]any) {
		for k, v := range m {
			name := normalizeKey(k)
			path := prefix + "/" + name
			if child, ok := v.(map[string]any); ok {
				walk(path, depth+1, child)
				continue
			}
			cur, ok := found[name]
			if !ok || depth < cur.depth || (depth == cur.depth && path < cur.path) {
				found[name] = leaf{depth: depth, path: path, value: v}
			}
		}
	}
	walk("", 0, m)

	out := make(map[string]any, len(found))
	for k, l := range found {
		out[k] = l.value
	}
	return out
}

var lineRE = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])?\s*\**\s*"?([A-Za-z][A-Za-z0-9 _/-]{0,60}?)"?\s*\**\s*[:=]\s*\**\s*(.*?)\s*\**\s*,?\s*$`)

// parseLines reads labeled "key: value" lines. The first occurrence of a key wins.
func parseLines(s string) map[string]any {
	out := map[string]any{}
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		m := lineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := normalizeKey(strings.Trim(m[1], `"'`))
		if _, dup := out[key]; dup || key == "" {
			continue
		}
		out[key] = strings.Trim(m[2], `"'`)
	}
	return out
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r == ' ' || r == '-' || r == '/' || r == '.':
			return '_'
		default:
			return -1
		}
	}, k)
	for strings.Contains(k, "__") {
		k = strings.ReplaceAll(k, "__", "_")
	}
	return strings.Trim(k, "_")
}

var nullish = map[string]bool{
	"": true, "null": true, "nil": true, "none": true, "n/a": true, "na": true,
	"unknown": true, "not available": true, "not applicable": true, "-": true,
}

func coerce(kind types.KPIKind, v any) types.KPIValue {
	if s, ok := v.(string); ok && nullish[strings.ToLower(strings.TrimSpace(s))] {
		return types.Absent()
	}
	switch kind {
	case types.KPIString:
		return coerceString(v)
	case types.KPINumber:
		return coerceNumber(v)
	case types.KPIBool:
		return coerceBool(v)
	default:
		return types.Absent()
	}
}

func coerceString(v any) types.KPIValue {
	switch t := v.(type) {
	case string:
		return types.StringKPI(strings.TrimSpace(t))
	case float64:
		return types.StringKPI(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		return types.StringKPI(strconv.FormatBool(t))
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			switch et := e.(type) {
			case string:
				if s := strings.TrimSpace(et); s != "" {
					parts = append(parts, s)
				}
			case float64, bool:
				parts = append(parts, fmt.Sprint(et))
			}
		}
		if len(parts) == 0 {
			return types.Absent()
		}
		return types.StringKPI(strings.Join(parts, "; "))
	default:
		return types.Absent()
	}
}

var numberRE = regexp.MustCompile(`^[-+]?\d[\d,]*(?:\.\d+)?|^[-+]?\.\d+`)

func coerceNumber(v any) types.KPIValue {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return types.Absent()
		}
		return types.NumberKPI(t)
	case string:
		s := strings.TrimSpace(t)
		pct := strings.HasSuffix(s, "%")
		m := numberRE.FindString(s)
		if m == "" {
			return types.Absent()
		}
		// "4/5" style ratings keep the numerator; the catalog documents the scale.
		n, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			return types.Absent()
		}
		if pct {
			n /= 100
		}
		return types.NumberKPI(n)
	default:
		return types.Absent()
	}
}

func coerceBool(v any) types.KPIValue {
	switch t := v.(type) {
	case bool:
		return types.BoolKPI(t)
	case float64:
		switch t {
		case 0:
			return types.BoolKPI(false)
		case 1:
			return types.BoolKPI(true)
		}
		return types.Absent()
	case string:
		switch strings.ToLower(strings.TrimSpace(strings.TrimRight(t, "."))) {
		case "true", "yes", "y", "1":
			return types.BoolKPI(true)
		case "false", "no", "n", "0":
			return types.BoolKPI(false)
		}
		return types.Absent()
	default:
		return types.Absent()
	}
}
