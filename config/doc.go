// Package config loads the gateway configuration from a YAML file and
// environment variables and validates it. It covers the listener and TLS
// files, the scrape backend endpoints and protocol, endpoint selection,
// health checking, response compression, metrics and logging.
package config
