// Package config carries the embedded default configuration file.
package config

import _ "embed"

// Default holds the embedded conf.yaml defaults merged under any
// user-provided configuration.
//
//go:embed conf.yaml
var Default []byte
