package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/minigit/internal/githubauth"
	"github.com/temirov/minigit/internal/session"
)

const (
	applicationSubtestNameTemplateConstant = "%d_%s"
	testConfigurationFileNameConstant      = "config.yaml"
)

func newIsolatedApplication(testInstance *testing.T) *Application {
	testInstance.Helper()
	testInstance.Setenv("XDG_CONFIG_HOME", testInstance.TempDir())
	testInstance.Setenv("HOME", testInstance.TempDir())
	application := NewApplication()
	application.tokenResolver = githubauth.NewResolver(func(string) (string, bool) { return "", false }, nil)
	application.rootCommand.SetContext(context.Background())
	return application
}

func writeConfigurationFile(testInstance *testing.T, content string) string {
	testInstance.Helper()
	configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(content), 0o600))
	return configurationPath
}

func TestEmbeddedDefaultsPopulateEverySection(testInstance *testing.T) {
	application := newIsolatedApplication(testInstance)
	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	configuration := application.configuration
	require.Equal(testInstance, "info", configuration.Common.LogLevel)
	require.Equal(testInstance, "console", configuration.Common.LogFormat)
	require.Equal(testInstance, 30*time.Second, configuration.GitHub.Timeout)
	require.Equal(testInstance, 4, configuration.GitHub.MaxRetries)
	require.InDelta(testInstance, 10.0, configuration.GitHub.RequestsPerSecond, 0.001)
	require.Equal(testInstance, ".gitignore", configuration.Transfer.IgnoreFile)
	require.Equal(testInstance, []string{".git"}, configuration.Transfer.AlwaysExclude)
	require.Equal(testInstance, 4, configuration.Transfer.Workers)
	require.Equal(testInstance, "Published via minigit", configuration.Releases.Body)
	require.Equal(testInstance, "table", configuration.Output.Format)
	require.Empty(testInstance, configuration.GitHub.Repository)
}

func TestEmbeddedDefaultConfigurationReturnsCopy(testInstance *testing.T) {
	firstDocument, documentType := EmbeddedDefaultConfiguration()
	require.Equal(testInstance, "yaml", documentType)
	require.Contains(testInstance, string(firstDocument), "always_exclude:")

	firstDocument[0] = '#'
	secondDocument, _ := EmbeddedDefaultConfiguration()
	require.NotEqual(testInstance, firstDocument[0], secondDocument[0])
}

func TestConfigurationPrecedence(testInstance *testing.T) {
	configurationPath := writeConfigurationFile(testInstance, "github:\n  repository: octo/from-file\n  branch: develop\ntransfer:\n  workers: 99\n  always_exclude:\n    - .git\n    - node_modules\noutput:\n  format: yaml\n")

	testCases := []struct {
		name               string
		environment        map[string]string
		repositoryFlag     string
		expectedRepository string
		expectedBranch     string
		expectedExclude    []string
	}{
		{
			name:               "file_values",
			expectedRepository: "octo/from-file",
			expectedBranch:     "develop",
			expectedExclude:    []string{".git", "node_modules"},
		},
		{
			name:               "environment_overrides_file",
			environment:        map[string]string{"MINIGIT_GITHUB_BRANCH": "gh-pages", "MINIGIT_TRANSFER_ALWAYS_EXCLUDE": "dist,.cache"},
			expectedRepository: "octo/from-file",
			expectedBranch:     "gh-pages",
			expectedExclude:    []string{"dist", ".cache"},
		},
		{
			name:               "flag_overrides_everything",
			environment:        map[string]string{"MINIGIT_GITHUB_REPOSITORY": "octo/from-env"},
			repositoryFlag:     "octo/from-flag",
			expectedRepository: "octo/from-flag",
			expectedBranch:     "develop",
			expectedExclude:    []string{".git", "node_modules"},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(applicationSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			for environmentName, environmentValue := range testCase.environment {
				testInstance.Setenv(environmentName, environmentValue)
			}
			application := newIsolatedApplication(testInstance)
			rootFlags := application.rootCommand.PersistentFlags()
			require.NoError(testInstance, rootFlags.Set(configFileFlagNameConstant, configurationPath))
			if len(testCase.repositoryFlag) > 0 {
				require.NoError(testInstance, rootFlags.Set(repositoryFlagNameConstant, testCase.repositoryFlag))
			}

			require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))
			require.Equal(testInstance, testCase.expectedRepository, application.configuration.GitHub.Repository)
			require.Equal(testInstance, testCase.expectedBranch, application.configuration.GitHub.Branch)
			require.Equal(testInstance, testCase.expectedExclude, application.configuration.Transfer.AlwaysExclude)
			require.Equal(testInstance, 16, application.configuration.Transfer.Workers)
			require.Equal(testInstance, "yaml", application.configuration.Output.Format)
		})
	}
}

func TestInvalidConfigurationFails(testInstance *testing.T) {
	application := newIsolatedApplication(testInstance)
	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(configFileFlagNameConstant, writeConfigurationFile(testInstance, "common: [unclosed\n")))
	require.ErrorContains(testInstance, application.initializeConfiguration(application.rootCommand), "unable to load configuration")

	loggerApplication := newIsolatedApplication(testInstance)
	require.NoError(testInstance, loggerApplication.rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "verbose"))
	require.ErrorContains(testInstance, loggerApplication.initializeConfiguration(loggerApplication.rootCommand), "unable to create logger")
}

func TestCurrentSession(testInstance *testing.T) {
	application := newIsolatedApplication(testInstance)
	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	_, missingError := application.currentSession()
	require.ErrorIs(testInstance, missingError, session.ErrRepositoryNotConfigured)

	localDirectory := testInstance.TempDir()
	application.configuration.GitHub.Repository = "octo/site"
	application.configuration.GitHub.Branch = "main"
	application.configuration.Transfer.LocalDirectory = localDirectory
	application.configuration.Transfer.RemoteDirectory = "/docs/guides/"

	currentSession, sessionError := application.currentSession()
	require.NoError(testInstance, sessionError)
	require.Equal(testInstance, session.Session{
		Repository:      session.Repository{Owner: "octo", Name: "site"},
		LocalDirectory:  localDirectory,
		RemoteDirectory: "docs/guides",
		Branch:          "main",
	}, currentSession)

	application.configuration.GitHub.Repository = "not-a-repository"
	_, malformedError := application.currentSession()
	require.Error(testInstance, malformedError)
}

func TestGitHubClientRequiresToken(testInstance *testing.T) {
	application := newIsolatedApplication(testInstance)
	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	_, missingError := application.githubClient(context.Background())
	require.ErrorIs(testInstance, missingError, githubauth.ErrTokenNotFound)

	application.tokenFlagValue = "flag-token"
	client, clientError := application.githubClient(context.Background())
	require.NoError(testInstance, clientError)
	require.NotNil(testInstance, client)

	application.configuration.GitHub.BaseURL = "://broken"
	_, invalidError := application.githubClient(context.Background())
	require.Error(testInstance, invalidError)
}

func TestGitHubConfigurationSanitize(testInstance *testing.T) {
	sanitized := GitHubConfiguration{Repository: " octo/site ", Timeout: -time.Second, RequestsPerSecond: -3, MaxRetries: -1}.Sanitize()
	require.Equal(testInstance, "octo/site", sanitized.Repository)
	require.Equal(testInstance, 30*time.Second, sanitized.Timeout)
	require.Zero(testInstance, sanitized.RequestsPerSecond)
	require.Equal(testInstance, 4, sanitized.MaxRetries)
}
