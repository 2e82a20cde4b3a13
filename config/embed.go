package config

import _ "embed"

// DefaultConfigYAML built-in default configuration
//
//go:embed default.yaml
var DefaultConfigYAML []byte
