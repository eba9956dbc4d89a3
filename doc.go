// Package alita is the Alita SDK for Go: a config-first toolkit layer for
// agent platforms, plus a REST-driven test-pipeline harness.
//
// The SDK connects external tool sources (MCP servers over stdio or HTTP,
// and subprocess plugins) into one registry guarded by a security blocklist,
// and drives platform test pipelines through seed, run, verify, and cleanup
// phases declared in YAML suites.
//
// # Quick start
//
// Declare toolkits and a suite:
//
//	platform:
//	  base_url: ${ALITA_BASE_URL:-http://localhost:8080}
//	  api_token: ${ALITA_API_TOKEN}
//
//	toolkits:
//	  github:
//	    type: mcp
//	    command: github-mcp-server
//
//	suites:
//	  smoke:
//	    cases:
//	      - name: login
//	        seed:
//	          file: pipelines/login.yaml
//	        expect:
//	          checks:
//	            - path: status
//	              equals: ok
//
// Run it from the CLI:
//
//	alita run --config alita.yaml
//
// # Using as a library
//
// Build a runtime from a loaded config and use its parts directly:
//
//	cfg, loader, err := config.LoadConfigFile(ctx, "alita.yaml")
//	rt, err := runtime.New(ctx, cfg)
//	defer rt.Close()
//
//	result, err := rt.Toolkits().Execute(ctx, "github_list_issues", args)
//	suite, err := rt.Harness().RunSuite(ctx, "smoke", cfg.Suites["smoke"])
package alita
