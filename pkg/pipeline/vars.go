package pipeline

import (
	"os"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
)

// ResolveVariables substitutes ${name} and ${name:-default} references in
// data. Case variables win over the process environment; an unresolved
// reference without a default becomes empty.
func ResolveVariables(data any, vars map[string]string) any {
	return config.ExpandDataWith(data, func(name string) string {
		if value, ok := vars[name]; ok {
			return value
		}
		return os.Getenv(name)
	})
}

// ExpandVariableString is ResolveVariables for a single string.
func ExpandVariableString(s string, vars map[string]string) string {
	return config.ExpandString(s, func(name string) string {
		if value, ok := vars[name]; ok {
			return value
		}
		return os.Getenv(name)
	})
}

// MergeVariables layers variable maps left to right, later maps winning.
func MergeVariables(layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, layer := range layers {
		for name, value := range layer {
			merged[name] = value
		}
	}
	return merged
}
