// Package config loads, validates, and watches the edge router's YAML
// configuration. Values support ${VAR} and ${VAR:-default} environment
// substitution.
package config
