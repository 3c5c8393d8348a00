// Package config provides configuration management for the compliance
// engine.
//
// Configuration is read from a YAML file, completed with defaults and then
// overridden from the environment:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("compliance.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention COMPLIANCE_SECTION_FIELD,
// for example:
//
//   - COMPLIANCE_PACKS_DIRECTORY overrides packs.directory
//   - COMPLIANCE_EVIDENCE_BACKEND overrides evidence.backend
//   - COMPLIANCE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A .env file in the working directory is loaded first (see LoadDotEnv) so
// local development can keep secrets such as the Postgres password out of
// the YAML file. Values of the form ${VAR} inside the YAML file are expanded
// from the environment.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
//	if err := config.Initialize("compliance.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// Tests should prefer passing explicit *Config values.
package config
