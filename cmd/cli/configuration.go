package cli

import (
	"strings"
	"time"

	"github.com/temirov/minigit/internal/githubapi"
	"github.com/temirov/minigit/internal/output"
	"github.com/temirov/minigit/internal/releases"
	"github.com/temirov/minigit/internal/transfer"
)

const (
	defaultRequestsPerSecondConstant = 10.0
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common   ApplicationCommonConfiguration `mapstructure:"common"`
	GitHub   GitHubConfiguration            `mapstructure:"github"`
	Transfer transfer.Configuration         `mapstructure:"transfer"`
	Releases releases.Configuration         `mapstructure:"releases"`
	Output   OutputConfiguration            `mapstructure:"output"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// GitHubConfiguration selects the repository and tunes the API client.
type GitHubConfiguration struct {
	Repository        string        `mapstructure:"repository"`
	Token             string        `mapstructure:"token"`
	TokenSource       string        `mapstructure:"token_source"`
	BaseURL           string        `mapstructure:"base_url"`
	Branch            string        `mapstructure:"branch"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// OutputConfiguration selects how listings are rendered.
type OutputConfiguration struct {
	Format string `mapstructure:"format"`
}

// DefaultGitHubConfiguration supplies baseline client settings.
func DefaultGitHubConfiguration() GitHubConfiguration {
	return GitHubConfiguration{
		Timeout:           githubapi.DefaultTimeout,
		RequestsPerSecond: defaultRequestsPerSecondConstant,
		MaxRetries:        githubapi.DefaultMaxRetries,
	}
}

// Sanitize trims values and replaces invalid numbers with defaults.
func (configuration GitHubConfiguration) Sanitize() GitHubConfiguration {
	defaults := DefaultGitHubConfiguration()
	sanitized := configuration
	sanitized.Repository = strings.TrimSpace(configuration.Repository)
	sanitized.Token = strings.TrimSpace(configuration.Token)
	sanitized.TokenSource = strings.TrimSpace(configuration.TokenSource)
	sanitized.BaseURL = strings.TrimSpace(configuration.BaseURL)
	sanitized.Branch = strings.TrimSpace(configuration.Branch)
	if sanitized.Timeout <= 0 {
		sanitized.Timeout = defaults.Timeout
	}
	if sanitized.RequestsPerSecond < 0 {
		sanitized.RequestsPerSecond = 0
	}
	if sanitized.MaxRetries < 0 {
		sanitized.MaxRetries = defaults.MaxRetries
	}
	return sanitized
}

// DefaultOutputConfiguration renders tables.
func DefaultOutputConfiguration() OutputConfiguration {
	return OutputConfiguration{Format: string(output.FormatTable)}
}
