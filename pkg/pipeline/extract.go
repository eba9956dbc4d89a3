package pipeline

import (
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"
)

// Extract pulls a value out of a JSON document by gjson path. A missing path
// is ok=false, never an error; the value comes back in its natural Go type.
func Extract(doc []byte, path string) (any, bool) {
	result := gjson.GetBytes(doc, path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// ExtractString is Extract with the value coerced to gjson's string form.
func ExtractString(doc []byte, path string) (string, bool) {
	result := gjson.GetBytes(doc, path)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}

// ExtractRegex matches expr against text and returns the captured value: the
// group named "value" when present, else the first capture group, else the
// whole match. No match is ok=false; only a bad expression errors.
func ExtractRegex(text, expr string) (string, bool, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return "", false, fmt.Errorf("invalid extraction regex %q: %w", expr, err)
	}

	match := re.FindStringSubmatch(text)
	if match == nil {
		return "", false, nil
	}

	for i, name := range re.SubexpNames() {
		if name == "value" && i < len(match) {
			return match[i], true, nil
		}
	}

	if len(match) > 1 {
		return match[1], true, nil
	}
	return match[0], true, nil
}
