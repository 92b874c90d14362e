// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including the virtual service address, the backend pool, policy selection,
// health probe intervals, and listen addresses.
package config
