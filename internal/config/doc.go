// Package config provides YAML configuration loading and validation for the
// mic capture service.
package config
