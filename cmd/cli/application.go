package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/minigit/internal/githubapi"
	"github.com/temirov/minigit/internal/githubauth"
	"github.com/temirov/minigit/internal/prompt"
	"github.com/temirov/minigit/internal/releases"
	"github.com/temirov/minigit/internal/repository"
	"github.com/temirov/minigit/internal/session"
	"github.com/temirov/minigit/internal/transfer"
	"github.com/temirov/minigit/internal/utils"
	pathutils "github.com/temirov/minigit/internal/utils/path"
)

const (
	applicationNameConstant                 = "minigit"
	applicationShortDescriptionConstant     = "Manage a GitHub repository's files, releases and history from the command line"
	applicationLongDescriptionConstant      = "minigit browses, uploads, downloads and deletes repository contents, publishes releases and resets branch history through the GitHub REST API. Directory uploads honor the directory's .gitignore."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	repositoryFlagNameConstant              = "repo"
	repositoryFlagUsageConstant             = "Repository to operate on, as owner/name."
	tokenFlagNameConstant                   = "token"
	tokenFlagUsageConstant                  = "GitHub token; overrides configuration and environment."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant               = "MINIGIT"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationRepositoryFieldConstant    = "repository"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	localDirectoryErrorTemplateConstant     = "unable to resolve local directory: %w"
	rootCommandDebugMessageConstant         = "minigit CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentsConstant               = "arguments"
	defaultConfigurationSearchPathConstant  = "."
	currentDirectoryConstant                = "."
)

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
	repositoryFlagValue   string
	tokenFlagValue        string
	tokenResolver         *githubauth.Resolver
	homeExpander          *pathutils.HomeExpander
	terminalDetector      prompt.TerminalDetector
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
		configuration:       defaultApplicationConfiguration(),
		tokenResolver:       githubauth.NewResolver(nil, nil),
		homeExpander:        pathutils.NewHomeExpander(),
		terminalDetector:    prompt.IsTerminal,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.repositoryFlagValue, repositoryFlagNameConstant, "", repositoryFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.tokenFlagValue, tokenFlagNameConstant, "", tokenFlagUsageConstant)

	loggerProvider := func() *zap.Logger {
		return application.logger
	}
	formatProvider := func() string {
		return application.configuration.Output.Format
	}
	terminalDetector := func(input io.Reader) bool {
		return application.terminalDetector(input)
	}

	repositoryBuilder := repository.CommandBuilder{
		LoggerProvider:  loggerProvider,
		SessionProvider: application.currentSession,
		ClientProvider: func(executionContext context.Context) (repository.GitHubClient, error) {
			client, clientError := application.githubClient(executionContext)
			if clientError != nil {
				return nil, clientError
			}
			return client, nil
		},
		TerminalDetector: terminalDetector,
	}
	if whoAmICommand, whoAmIBuildError := repositoryBuilder.BuildWhoAmI(); whoAmIBuildError == nil {
		cobraCommand.AddCommand(whoAmICommand)
	}
	if repoCommand, repoBuildError := repositoryBuilder.Build(); repoBuildError == nil {
		cobraCommand.AddCommand(repoCommand)
	}

	transferBuilder := transfer.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() transfer.Configuration {
			return application.configuration.Transfer
		},
		SessionProvider: application.currentSession,
		ClientProvider: func(executionContext context.Context) (transfer.GitHubClient, error) {
			client, clientError := application.githubClient(executionContext)
			if clientError != nil {
				return nil, clientError
			}
			return client, nil
		},
		FormatProvider:   formatProvider,
		TerminalDetector: terminalDetector,
	}
	if filesCommand, filesBuildError := transferBuilder.Build(); filesBuildError == nil {
		cobraCommand.AddCommand(filesCommand)
	}

	releasesBuilder := releases.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() releases.Configuration {
			return application.configuration.Releases
		},
		SessionProvider: application.currentSession,
		ClientProvider: func(executionContext context.Context) (releases.GitHubClient, error) {
			client, clientError := application.githubClient(executionContext)
			if clientError != nil {
				return nil, clientError
			}
			return client, nil
		},
		FormatProvider:   formatProvider,
		TerminalDetector: terminalDetector,
	}
	if releasesCommand, releasesBuildError := releasesBuilder.Build(); releasesBuildError == nil {
		cobraCommand.AddCommand(releasesCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func configurationSearchPaths() []string {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, applicationNameConstant))
	}
	return searchPaths
}

func defaultApplicationConfiguration() ApplicationConfiguration {
	return ApplicationConfiguration{
		Common: ApplicationCommonConfiguration{
			LogLevel:  string(utils.LogLevelInfo),
			LogFormat: string(utils.LogFormatConsole),
		},
		GitHub:   DefaultGitHubConfiguration(),
		Transfer: transfer.DefaultConfiguration(),
		Releases: releases.DefaultConfiguration(),
		Output:   DefaultOutputConfiguration(),
	}
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatConsole),
	}

	var loadedConfiguration ApplicationConfiguration
	configurationMetadata, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &loadedConfiguration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		loadedConfiguration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		loadedConfiguration.Common.LogFormat = application.logFormatFlagValue
	}
	if application.persistentFlagChanged(command, repositoryFlagNameConstant) {
		loadedConfiguration.GitHub.Repository = application.repositoryFlagValue
	}

	loadedConfiguration.GitHub = loadedConfiguration.GitHub.Sanitize()
	loadedConfiguration.Transfer = loadedConfiguration.Transfer.Sanitize()
	loadedConfiguration.Releases = loadedConfiguration.Releases.Sanitize()
	application.configuration = loadedConfiguration
	application.configurationMetadata = configurationMetadata

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}
	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.String(configurationRepositoryFieldConstant, application.configuration.GitHub.Repository),
	)

	return nil
}

// currentSession builds the explicit session from configuration and flags.
func (application *Application) currentSession() (session.Session, error) {
	repositoryIdentity, parseError := session.ParseRepository(application.configuration.GitHub.Repository)
	if parseError != nil {
		return session.Session{}, parseError
	}

	localDirectory, localDirectoryError := application.homeExpander.ResolveLocalDirectory(application.configuration.Transfer.LocalDirectory, currentDirectoryConstant)
	if localDirectoryError != nil {
		return session.Session{}, fmt.Errorf(localDirectoryErrorTemplateConstant, localDirectoryError)
	}

	return session.Session{
		Repository:      repositoryIdentity,
		LocalDirectory:  localDirectory,
		RemoteDirectory: session.NormalizeRemotePath(application.configuration.Transfer.RemoteDirectory),
		Branch:          application.configuration.GitHub.Branch,
	}, nil
}

func (application *Application) githubClient(executionContext context.Context) (*githubapi.Client, error) {
	githubConfiguration := application.configuration.GitHub
	token, tokenError := application.tokenResolver.Resolve(githubauth.TokenRequest{
		FlagToken:        application.tokenFlagValue,
		ConfiguredToken:  githubConfiguration.Token,
		ConfiguredSource: githubConfiguration.TokenSource,
	})
	if tokenError != nil {
		return nil, tokenError
	}

	return githubapi.NewClient(executionContext, githubapi.Configuration{
		Token:             token,
		BaseURL:           githubConfiguration.BaseURL,
		Timeout:           githubConfiguration.Timeout,
		RequestsPerSecond: githubConfiguration.RequestsPerSecond,
		MaxRetries:        githubConfiguration.MaxRetries,
	}, application.logger)
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Strings(logFieldArgumentsConstant, arguments),
	)
	return command.Help()
}

func (application *Application) flushLogger() error {
	return application.syncLoggerInstance(application.logger)
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
