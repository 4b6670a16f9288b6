// Package config loads the ipwatch configuration: a YAML file plus a few
// IPWATCH_* environment overrides, validated and defaulted into an immutable
// Config value.
package config
