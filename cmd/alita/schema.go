package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
)

// SchemaCmd generates a JSON Schema for the configuration file.
// Output goes to stdout so it can be redirected.
type SchemaCmd struct {
	Compact bool `short:"C" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	reflector := &jsonschema.Reflector{
		// Strict validation: reject unknown keys.
		AllowAdditionalProperties: false,
		// Inline all definitions so the schema is self-contained.
		DoNotReference: true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://projectalita.ai/schemas/alita-sdk.json"
	schema.Title = "Alita SDK Configuration Schema"
	schema.Description = "Configuration schema for the Alita SDK and CLI"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	schema.Examples = []interface{}{
		map[string]interface{}{
			"platform": map[string]interface{}{
				"base_url":  "https://alita.example.com",
				"api_token": "${ALITA_API_TOKEN}",
				"project":   "demo",
			},
			"toolkits": map[string]interface{}{
				"tracker": map[string]interface{}{
					"type":      "mcp",
					"transport": "streamable-http",
					"url":       "https://mcp.example.com/v1",
				},
			},
			"suites": map[string]interface{}{
				"smoke": map[string]interface{}{
					"cases": []interface{}{
						map[string]interface{}{
							"name": "echo",
							"seed": map[string]interface{}{
								"pipeline": map[string]interface{}{
									"name":  "echo",
									"steps": []string{"echo hello"},
								},
							},
							"expect": map[string]interface{}{"status": "succeeded"},
						},
					},
				},
			},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
