// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// so the session token can be supplied as ${UNIHUB_TOKEN} rather than written to disk.
package config
