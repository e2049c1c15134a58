package githubauth

import (
	"errors"
	"os"
	"strings"
)

// Environment variable names used by GitHub authentication helpers.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"

	missingTokenMessageConstant = "GitHub token not found; pass --token, set github.token or github.token_source, or export GH_TOKEN"
)

// ErrTokenNotFound indicates that no source produced a token.
var ErrTokenNotFound = errors.New(missingTokenMessageConstant)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// TokenRequest lists candidate token inputs in precedence order.
type TokenRequest struct {
	FlagToken          string
	ConfiguredToken    string
	ConfiguredSource   string
	EnvironmentPreload map[string]string
}

// Resolver resolves tokens with injectable environment and file access.
type Resolver struct {
	environmentLookup EnvironmentLookup
	fileReader        FileReader
}

// NewResolver creates a resolver; nil dependencies fall back to the operating system.
func NewResolver(environmentLookup EnvironmentLookup, fileReader FileReader) *Resolver {
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	if fileReader == nil {
		fileReader = os.ReadFile
	}
	return &Resolver{environmentLookup: environmentLookup, fileReader: fileReader}
}

// Resolve returns the first token found in flag, configured value, configured source and environment order.
// A configured source that cannot be read is an error rather than a silent fallthrough.
func (resolver *Resolver) Resolve(request TokenRequest) (string, error) {
	if token := strings.TrimSpace(request.FlagToken); len(token) > 0 {
		return token, nil
	}
	if token := strings.TrimSpace(request.ConfiguredToken); len(token) > 0 {
		return token, nil
	}
	if len(strings.TrimSpace(request.ConfiguredSource)) > 0 {
		source, parseError := ParseTokenSource(request.ConfiguredSource)
		if parseError != nil {
			return "", parseError
		}
		return resolver.ResolveSource(source)
	}
	if token, found := resolver.environmentToken(request.EnvironmentPreload); found {
		return token, nil
	}
	return "", ErrTokenNotFound
}

// ResolveToken returns the first non-empty GitHub authentication token observed
// in the provided environment map or the process environment.
func ResolveToken(environment map[string]string) (string, bool) {
	return NewResolver(nil, nil).environmentToken(environment)
}

func (resolver *Resolver) environmentToken(environment map[string]string) (string, bool) {
	for _, key := range tokenPreference {
		if value, ok := lookup(environment, key); ok {
			return value, true
		}
	}
	for _, key := range tokenPreference {
		if value, ok := resolver.environmentLookup(key); ok {
			value = strings.TrimSpace(value)
			if len(value) > 0 {
				return value, true
			}
		}
	}
	return "", false
}

func lookup(environment map[string]string, key string) (string, bool) {
	if environment == nil {
		return "", false
	}
	value, exists := environment[key]
	if !exists {
		return "", false
	}
	value = strings.TrimSpace(value)
	if len(value) == 0 {
		return "", false
	}
	return value, true
}
