package translator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Placeholder fills lines the model did not return.
const Placeholder = "..."

// Response protocols, in the order they are tried.
const (
	ProtocolJSON     = "json"
	ProtocolNumbered = "numbered"
	ProtocolLines    = "lines"
	ProtocolNone     = "none"
)

// SystemPrompt instructs the model to act as a comic translator and to
// answer with exactly n lines as a JSON array.
func SystemPrompt(source, target string, n int) string {
	return fmt.Sprintf(`You are a professional comic and manga translator working on Seinen and Mature titles.
Translate every line of dialogue from %s into %s.
Rules:
1. Keep the raw, natural tone of the original speech.
2. Do not skip, soften or censor anything. Translate slang and explicit language with an equivalent.
3. The input is a JSON array of %d strings. Reply with ONLY a JSON array of exactly %d strings, the translation of each input string at the same position.
4. No explanations, notes or romanization.`, source, target, n, n)
}

// UserPrompt embeds the lines as a JSON array.
func UserPrompt(lines []string) (string, error) {
	data, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("failed to encode lines: %w", err)
	}
	return "Translate this list:\n" + string(data), nil
}

var (
	fenceRe    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	numberedRe = regexp.MustCompile(`^\s*(?:\[(\d{1,4})\]\s*|(\d{1,4})(?:\.\s+|[)）：]\s*))(.*)$`)
)

// StripCodeFences removes a surrounding markdown code fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// ParseResponse extracts translated lines from free model text and names
// the protocol that matched. expected is the number of lines sent and bounds
// the numbered protocol.
func ParseResponse(raw string, expected int) ([]string, string) {
	text := StripCodeFences(raw)
	if text == "" {
		return nil, ProtocolNone
	}
	if lines, ok := parseJSON(text); ok {
		return lines, ProtocolJSON
	}
	if lines, ok := parseNumbered(text, expected); ok {
		return lines, ProtocolNumbered
	}
	return parsePlain(text), ProtocolLines
}

func parseJSON(text string) ([]string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		var arr []interface{}
		if err := json.Unmarshal([]byte(text[start:end+1]), &arr); err == nil && allStrings(arr) {
			return stringify(arr), true
		}
	}

	// {"translations": [...]} and similar single-array objects
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if arr, ok := obj[k].([]interface{}); ok {
				return stringify(arr), true
			}
		}
	}
	return nil, false
}

// allStrings rejects things like "[1]" that are valid JSON but not an answer.
func allStrings(arr []interface{}) bool {
	for _, v := range arr {
		if _, ok := v.(string); !ok {
			return false
		}
	}
	return true
}

func stringify(arr []interface{}) []string {
	out := make([]string, len(arr))
	for i, v := range arr {
		switch x := v.(type) {
		case string:
			out[i] = strings.TrimSpace(x)
		case nil:
			out[i] = ""
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(x))
		}
	}
	return out
}

// parseNumbered reads "1. text", "1) text", "[1] text" lists. Lines without
// a number continue the previous entry. The reply only counts as a list when
// it opens with a number, indexes are unique and stay within twice the
// expected count, and at least half of the indexes up to the largest are
// present. Anything else is left to the plain line protocol.
func parseNumbered(text string, expected int) ([]string, bool) {
	lines := parsePlain(text)
	limit := 2 * expected
	if limit == 0 {
		limit = len(lines)
	}

	entries := map[int]string{}
	maxIndex := 0
	last := -1

	for _, line := range lines {
		m := numberedRe.FindStringSubmatch(line)
		if m == nil {
			if last < 0 {
				return nil, false
			}
			entries[last] = strings.TrimSpace(entries[last] + " " + line)
			continue
		}
		num := m[1]
		if num == "" {
			num = m[2]
		}
		idx, err := strconv.Atoi(num)
		if err != nil || idx < 1 || idx > limit {
			return nil, false
		}
		if _, dup := entries[idx]; dup {
			return nil, false
		}
		entries[idx] = strings.TrimSpace(m[3])
		last = idx
		if idx > maxIndex {
			maxIndex = idx
		}
	}

	if len(entries) == 0 || 2*len(entries) < maxIndex {
		return nil, false
	}
	out := make([]string, maxIndex)
	for idx, v := range entries {
		out[idx-1] = v
	}
	return out, true
}

func parsePlain(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Align forces lines to exactly expected entries: missing or empty entries
// become the placeholder and extras are dropped.
func Align(lines []string, expected int) ([]string, Alignment) {
	a := Alignment{Expected: expected, Received: len(lines)}

	out := make([]string, expected)
	for i := 0; i < expected; i++ {
		if i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			out[i] = lines[i]
			continue
		}
		out[i] = Placeholder
		if i >= len(lines) {
			a.Padded++
		}
	}
	if len(lines) > expected {
		a.Truncated = len(lines) - expected
	}
	return out, a
}
