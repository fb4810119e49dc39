// Package config loads evalwatch settings from TOML, .env and the environment.
//
// # Resolution Order
//
//  1. Built-in defaults (Default)
//  2. The TOML file, ~/.config/evalwatch/config.toml unless a path is given
//  3. EVALWATCH_* environment variables
//
// A .env file in the working directory is loaded into the environment with
// LoadDotEnv before Load runs, so it feeds step 3 without overriding
// variables that are already exported.
//
// # TOML Format
//
//	api_url = "http://localhost:8080/api/v1"
//	deployment_mode = "standalone"   # standalone | federated | kubeflow
//	dev_identity = "user@example.com"
//	namespace = "ds-project-1"
//	collection_poll = "5s"
//	item_poll = "3s"
//	log_file = "~/.local/state/evalwatch/evalwatch.log"
//	log_level = "info"
//
// Every field is optional. Blank values keep the default. Tilde expansion is
// applied to log_file.
//
// # Errors
//
// A missing file is not an error. Invalid TOML, an unknown deployment mode
// and unparsable or non-positive intervals are reported as "parse config: ...".
package config
