// Package config handles loading and validating paramsync configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables
//   - Validation of every section, reporting all problems at once
//   - Default value handling
//
// Every setting has a working default, so the bridge runs with no file at
// all. Command-line flags are applied by the caller after Load, followed by
// another call to Validate.
//
// Usage:
//
//	cfg, err := config.Load("paramsync.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Addr())
package config
