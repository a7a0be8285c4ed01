package util

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSON returns the first JSON object or array embedded in s, trimming
// any prose the model wrapped around it. Whichever delimiter opens first in
// the text wins, so an object that wraps an array is returned whole rather
// than being reduced to its inner array. The second return value reports
// whether a valid JSON value was found.
func ExtractJSON(s string) (string, bool) {
	objAt := strings.IndexByte(s, '{')
	arrAt := strings.IndexByte(s, '[')
	for _, d := range orderedDelimiters(objAt, arrAt) {
		if candidate, ok := extractDelimited(s, d.open, d.close); ok {
			return candidate, true
		}
	}
	trimmed := strings.TrimSpace(s)
	if gjson.Valid(trimmed) && trimmed != "" {
		return trimmed, true
	}
	return "", false
}

type delimiterPair struct {
	open, close byte
}

var (
	objectDelims = delimiterPair{'{', '}'}
	arrayDelims  = delimiterPair{'[', ']'}
)

func orderedDelimiters(objAt, arrAt int) []delimiterPair {
	if objAt < 0 {
		return []delimiterPair{arrayDelims}
	}
	if arrAt < 0 {
		return []delimiterPair{objectDelims}
	}
	if arrAt < objAt {
		return []delimiterPair{arrayDelims, objectDelims}
	}
	return []delimiterPair{objectDelims, arrayDelims}
}

func extractDelimited(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return "", false
	}
	candidate := s[start : end+1]
	if !gjson.Valid(candidate) {
		return "", false
	}
	return candidate, true
}
