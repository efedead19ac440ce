// Package config provides configuration loading and validation for the TeachTap service.
// It handles YAML-based configuration with struct validation plus environment-sourced
// credentials that never appear in the config file.
package config
