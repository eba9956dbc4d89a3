package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// envVarPattern matches ${VAR}, ${VAR:-default}, and $VAR.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// ExpandString substitutes variable references in s using lookup.
// Supports ${VAR}, ${VAR:-default}, and $VAR. A missing variable without a
// default expands to the empty string.
func ExpandString(s string, lookup func(string) string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1]

			if idx := strings.Index(inner, ":-"); idx != -1 {
				if val := lookup(inner[:idx]); val != "" {
					return val
				}
				return inner[idx+2:]
			}

			return lookup(inner)
		}

		return lookup(match[1:])
	})
}

// parseValue re-types a fully substituted scalar so that numeric and boolean
// values coming from the environment decode into typed config fields.
func parseValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}

	if intVal, err := strconv.Atoi(value); err == nil {
		return intVal
	}

	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}

	return value
}

// ExpandDataWith recursively substitutes variable references in strings found
// in maps and slices, using lookup. Substituted scalars are re-typed.
func ExpandDataWith(data any, lookup func(string) string) any {
	switch v := data.(type) {
	case string:
		expanded := ExpandString(v, lookup)
		if expanded != v {
			return parseValue(expanded)
		}
		return expanded

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			result[key] = ExpandDataWith(value, lookup)
		}
		return result

	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = ExpandDataWith(item, lookup)
		}
		return result

	default:
		return v
	}
}

// ExpandEnvVarsInData is ExpandDataWith backed by the process environment.
func ExpandEnvVarsInData(data any) any {
	return ExpandDataWith(data, os.Getenv)
}

// LoadEnvFiles loads .env.local and .env from the working directory.
// Missing files are not an error.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return nil
}
