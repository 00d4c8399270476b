package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	thinkRe      = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// ExtractJSON pulls the first parseable JSON value out of free-form LLM
// output. Candidates are tried in priority order: fenced ```json blocks,
// the text with <think> spans stripped, then the raw text. Each candidate
// is parsed whole first; failing that, balanced {...}/[...] substrings are
// scanned (string-aware) and tried from the last one found backward. The
// second return is false when nothing parses.
func ExtractJSON(text string) (any, bool) {
	var candidates []string
	for _, m := range fencedJSONRe.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, thinkRe.ReplaceAllString(text, ""), text)

	for _, candidate := range candidates {
		if value, ok := tryParse(candidate); ok {
			return value, true
		}
		regions := balancedRegions(candidate)
		for i := len(regions) - 1; i >= 0; i-- {
			if value, ok := tryParse(regions[i]); ok {
				return value, true
			}
		}
	}
	return nil, false
}

func tryParse(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var value any
	if err := json.Unmarshal([]byte(s), &value); err != nil {
		return nil, false
	}
	return value, true
}

// balancedRegions returns every top-level balanced {...} or [...] span in s,
// in order of appearance. Braces inside JSON strings are ignored; a
// mismatched closer abandons the current span.
func balancedRegions(s string) []string {
	var regions []string
	var stack []byte
	start := -1
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start == -1 {
			if c == '{' || c == '[' {
				start = i
				stack = append(stack[:0], c)
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			opener := byte('{')
			if c == ']' {
				opener = '['
			}
			if len(stack) == 0 || stack[len(stack)-1] != opener {
				start = -1
				stack = stack[:0]
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				regions = append(regions, s[start:i+1])
				start = -1
			}
		}
	}
	return regions
}
