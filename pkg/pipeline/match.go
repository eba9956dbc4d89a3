package pipeline

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	globPatternPrefix  = "glob:"
	regexPatternPrefix = "re:"
)

// Equals compares two values deeply. Numbers compare by value across int and
// float kinds, since JSON decoding blurs them; everything else is
// reflect.DeepEqual.
func Equals(actual, expected any) bool {
	if actualNum, ok := asFloat(actual); ok {
		if expectedNum, ok := asFloat(expected); ok {
			return actualNum == expectedNum
		}
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// MatchPattern matches a value's string form against a pattern: "glob:" for
// doublestar globs, "re:" for regular expressions, plain substring otherwise.
func MatchPattern(actual any, pattern string) (bool, error) {
	text := Stringify(actual)

	if globPattern, ok := strings.CutPrefix(pattern, globPatternPrefix); ok {
		matched, err := doublestar.Match(globPattern, text)
		if err != nil {
			return false, fmt.Errorf("invalid glob pattern %q: %w", globPattern, err)
		}
		return matched, nil
	}

	if expr, ok := strings.CutPrefix(pattern, regexPatternPrefix); ok {
		re, err := regexp.Compile(expr)
		if err != nil {
			return false, fmt.Errorf("invalid pattern regex %q: %w", expr, err)
		}
		return re.MatchString(text), nil
	}

	return strings.Contains(text, pattern), nil
}

// Stringify renders a value the way it would appear in JSON scalar position.
func Stringify(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		// JSON numbers; keep integral values clean.
		if typed == float64(int64(typed)) {
			return fmt.Sprintf("%d", int64(typed))
		}
		return fmt.Sprintf("%v", typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
