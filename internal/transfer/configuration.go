package transfer

import (
	"strings"

	"github.com/temirov/minigit/internal/ignore"
	pathutils "github.com/temirov/minigit/internal/utils/path"
)

const (
	// DefaultWorkers is the number of concurrent per-file requests.
	DefaultWorkers = 4
	// MaxWorkers caps concurrency; the contents API serializes commits per branch.
	MaxWorkers = 16

	defaultAlwaysExcludePatternConstant = ".git"
)

var transferConfigurationHomeDirectoryExpander = pathutils.NewHomeExpander()

// Configuration captures transfer settings.
type Configuration struct {
	IgnoreFile      string   `mapstructure:"ignore_file"`
	AlwaysExclude   []string `mapstructure:"always_exclude"`
	Workers         int      `mapstructure:"workers"`
	LocalDirectory  string   `mapstructure:"local_directory"`
	RemoteDirectory string   `mapstructure:"remote_directory"`
	AssumeYes       bool     `mapstructure:"assume_yes"`
}

// DefaultConfiguration supplies baseline transfer settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		IgnoreFile:    ignore.DefaultIgnoreFileName,
		AlwaysExclude: []string{defaultAlwaysExcludePatternConstant},
		Workers:       DefaultWorkers,
	}
}

// Sanitize trims values, drops blank patterns and clamps the worker count.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	sanitized.IgnoreFile = strings.TrimSpace(configuration.IgnoreFile)
	if len(sanitized.IgnoreFile) == 0 {
		sanitized.IgnoreFile = ignore.DefaultIgnoreFileName
	}
	sanitized.AlwaysExclude = sanitizePatterns(configuration.AlwaysExclude)
	sanitized.Workers = clampWorkers(configuration.Workers)
	sanitized.LocalDirectory = transferConfigurationHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.LocalDirectory))
	sanitized.RemoteDirectory = strings.TrimSpace(configuration.RemoteDirectory)
	return sanitized
}

func sanitizePatterns(rawPatterns []string) []string {
	sanitized := make([]string, 0, len(rawPatterns))
	for _, rawPattern := range rawPatterns {
		trimmedPattern := strings.TrimSpace(rawPattern)
		if len(trimmedPattern) == 0 {
			continue
		}
		sanitized = append(sanitized, trimmedPattern)
	}
	return sanitized
}

func clampWorkers(workers int) int {
	switch {
	case workers <= 0:
		return DefaultWorkers
	case workers > MaxWorkers:
		return MaxWorkers
	default:
		return workers
	}
}
