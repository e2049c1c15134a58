package cli

import (
	"bytes"
	_ "embed"
)

// defaultConfigurationDocument holds the built-in values of every configuration section.
//
//go:embed default_config.yaml
var defaultConfigurationDocument []byte

// EmbeddedDefaultConfiguration returns a private copy of the built-in YAML and its viper type.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return bytes.Clone(defaultConfigurationDocument), configurationTypeConstant
}
