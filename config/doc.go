// Package config loads the enrichflow configuration from defaults, an
// optional YAML file, and ENRICHFLOW_* environment variable overrides, in
// that precedence order.
package config
