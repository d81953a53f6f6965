// Package config provides configuration management for the release notes
// worker.
//
// Configuration is loaded from environment variables and validated on startup.
// All configuration options have sensible defaults for development; setting
// LLM_API_KEY turns on the optional polishing step.
//
// Predicates and eval expressions run as CEL unless UNSAFE_EXPRESSIONS is set.
// Custom helpers are the exception: with CUSTOM_HELPERS_ENABLED (the default)
// the custom_helpers and helper_definitions of a request are interpreted as Go
// with full access to the file system, network and os/exec. Set
// CUSTOM_HELPERS_ENABLED=false when requests come from untrusted sources.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg)
package config
