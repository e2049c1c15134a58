package utils_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/minigit/internal/utils"
)

const (
	testEnvironmentPrefixConstant                  = "TESTMINIGIT"
	testConfigurationNameConstant                  = "config"
	testConfigurationTypeConstant                  = "yaml"
	testConfigFileNameConstant                     = "config.yaml"
	testUserConfigurationDirectoryNameConstant     = "minigit"
	configurationLoaderSubtestNameTemplateConstant = "%d_%s"
	embeddedSessionDocumentConstant                = "github:\n  repository: octo/embedded\n  timeout: 30s\ntransfer:\n  workers: 4\n  always_exclude:\n    - .git\n"
	sessionDocumentTemplateConstant                = "github:\n  repository: %s\n  timeout: %s\ntransfer:\n  workers: %d\n"
)

type sessionConfigurationFixture struct {
	GitHub struct {
		Repository string        `mapstructure:"repository"`
		Timeout    time.Duration `mapstructure:"timeout"`
	} `mapstructure:"github"`
	Transfer struct {
		Workers       int      `mapstructure:"workers"`
		AlwaysExclude []string `mapstructure:"always_exclude"`
	} `mapstructure:"transfer"`
}

func newSessionLoader(searchPaths []string) *utils.ConfigurationLoader {
	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, searchPaths)
	configurationLoader.SetEmbeddedConfiguration([]byte(embeddedSessionDocumentConstant), testConfigurationTypeConstant)
	return configurationLoader
}

func TestConfigurationLoaderPrecedence(testInstance *testing.T) {
	testCases := []struct {
		name               string
		fileDocument       string
		environment        map[string]string
		expectedRepository string
		expectedTimeout    time.Duration
		expectedWorkers    int
		expectedExclude    []string
	}{
		{
			name:               "embedded_values",
			expectedRepository: "octo/embedded",
			expectedTimeout:    30 * time.Second,
			expectedWorkers:    4,
			expectedExclude:    []string{".git"},
		},
		{
			name:               "file_overrides_embedded",
			fileDocument:       fmt.Sprintf(sessionDocumentTemplateConstant, "octo/file", "1m", 8),
			expectedRepository: "octo/file",
			expectedTimeout:    time.Minute,
			expectedWorkers:    8,
			expectedExclude:    []string{".git"},
		},
		{
			name:         "environment_overrides_file",
			fileDocument: fmt.Sprintf(sessionDocumentTemplateConstant, "octo/file", "1m", 8),
			environment: map[string]string{
				testEnvironmentPrefixConstant + "_GITHUB_TIMEOUT":          "90s",
				testEnvironmentPrefixConstant + "_TRANSFER_WORKERS":        "2",
				testEnvironmentPrefixConstant + "_TRANSFER_ALWAYS_EXCLUDE": ".git,node_modules",
			},
			expectedRepository: "octo/file",
			expectedTimeout:    90 * time.Second,
			expectedWorkers:    2,
			expectedExclude:    []string{".git", "node_modules"},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(configurationLoaderSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			for environmentName, environmentValue := range testCase.environment {
				testInstance.Setenv(environmentName, environmentValue)
			}

			configurationFilePath := ""
			if len(testCase.fileDocument) > 0 {
				configurationFilePath = filepath.Join(testInstance.TempDir(), testConfigFileNameConstant)
				require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(testCase.fileDocument), 0o600))
			}

			loadedConfiguration := sessionConfigurationFixture{}
			metadata, loadError := newSessionLoader([]string{testInstance.TempDir()}).LoadConfiguration(configurationFilePath, nil, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
			require.Equal(testInstance, testCase.expectedRepository, loadedConfiguration.GitHub.Repository)
			require.Equal(testInstance, testCase.expectedTimeout, loadedConfiguration.GitHub.Timeout)
			require.Equal(testInstance, testCase.expectedWorkers, loadedConfiguration.Transfer.Workers)
			require.Equal(testInstance, testCase.expectedExclude, loadedConfiguration.Transfer.AlwaysExclude)
		})
	}
}

func TestConfigurationLoaderAppliesDefaultValues(testInstance *testing.T) {
	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{testInstance.TempDir()})

	loadedConfiguration := sessionConfigurationFixture{}
	_, loadError := configurationLoader.LoadConfiguration("", map[string]any{
		"github.timeout":   "15s",
		"transfer.workers": 3,
	}, &loadedConfiguration)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, 15*time.Second, loadedConfiguration.GitHub.Timeout)
	require.Equal(testInstance, 3, loadedConfiguration.Transfer.Workers)
	require.Empty(testInstance, loadedConfiguration.GitHub.Repository)
}

func TestConfigurationLoaderSearchPaths(testInstance *testing.T) {
	testCases := []struct {
		name            string
		selectDirectory func(workingDirectoryPath string, userConfigurationDirectoryPath string) string
	}{
		{
			name: "working_directory",
			selectDirectory: func(workingDirectoryPath string, _ string) string {
				return workingDirectoryPath
			},
		},
		{
			name: "user_configuration_directory",
			selectDirectory: func(_ string, userConfigurationDirectoryPath string) string {
				return userConfigurationDirectoryPath
			},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(configurationLoaderSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			workingDirectoryPath := testInstance.TempDir()
			homeDirectoryPath := testInstance.TempDir()
			testInstance.Setenv("HOME", homeDirectoryPath)
			testInstance.Setenv("XDG_CONFIG_HOME", filepath.Join(homeDirectoryPath, "config"))

			userConfigurationBaseDirectoryPath, userConfigurationDirectoryError := os.UserConfigDir()
			require.NoError(testInstance, userConfigurationDirectoryError)
			userConfigurationDirectoryPath := filepath.Join(userConfigurationBaseDirectoryPath, testUserConfigurationDirectoryNameConstant)

			selectedDirectoryPath := testCase.selectDirectory(workingDirectoryPath, userConfigurationDirectoryPath)
			require.NoError(testInstance, os.MkdirAll(selectedDirectoryPath, 0o755))
			configurationFilePath := filepath.Join(selectedDirectoryPath, testConfigFileNameConstant)
			require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(fmt.Sprintf(sessionDocumentTemplateConstant, "octo/found", "5s", 6)), 0o600))

			loadedConfiguration := sessionConfigurationFixture{}
			metadata, loadError := newSessionLoader([]string{workingDirectoryPath, userConfigurationDirectoryPath}).LoadConfiguration("", nil, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
			require.Equal(testInstance, "octo/found", loadedConfiguration.GitHub.Repository)
			require.Equal(testInstance, 5*time.Second, loadedConfiguration.GitHub.Timeout)
			require.Equal(testInstance, 6, loadedConfiguration.Transfer.Workers)
		})
	}
}

func TestConfigurationLoaderRejectsMissingExplicitFile(testInstance *testing.T) {
	loadedConfiguration := sessionConfigurationFixture{}
	_, loadError := newSessionLoader(nil).LoadConfiguration(filepath.Join(testInstance.TempDir(), "absent.yaml"), nil, &loadedConfiguration)
	require.Error(testInstance, loadError)
}
