package releases

import "strings"

const defaultReleaseBodyConstant = "Published via minigit"

// Configuration captures the defaults applied to published releases.
type Configuration struct {
	Body       string `mapstructure:"body"`
	Draft      bool   `mapstructure:"draft"`
	Prerelease bool   `mapstructure:"prerelease"`
}

// DefaultConfiguration supplies baseline release settings.
func DefaultConfiguration() Configuration {
	return Configuration{Body: defaultReleaseBodyConstant}
}

// Sanitize trims the configured body.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	sanitized.Body = strings.TrimSpace(configuration.Body)
	return sanitized
}
