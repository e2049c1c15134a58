package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/minigit/internal/githubapi"
	"github.com/temirov/minigit/internal/output"
	"github.com/temirov/minigit/internal/prompt"
	"github.com/temirov/minigit/internal/session"
	"github.com/temirov/minigit/internal/utils/flags"
)

const (
	filesCommandUseConstant              = "files"
	filesCommandShortDescriptionConstant = "Browse and transfer repository files"
	filesCommandLongDescriptionConstant  = "files lists, uploads, downloads and deletes repository contents through the GitHub contents API."

	listRemoteCommandUseConstant   = "ls [remote-dir]"
	listRemoteCommandShortConstant = "List a remote directory"
	listLocalCommandUseConstant    = "local [local-dir]"
	listLocalCommandShortConstant  = "List a local directory and show which entries an upload would exclude"
	uploadCommandUseConstant       = "upload <local-path>"
	uploadCommandShortConstant     = "Upload a file or a directory tree"
	uploadCommandLongConstant      = "upload sends a file to the remote directory, or a directory tree to <remote-dir>/<directory name>, skipping paths matched by the directory's ignore file."
	downloadCommandUseConstant     = "download <remote-path>"
	downloadCommandShortConstant   = "Download a remote file or directory tree"
	deleteCommandUseConstant       = "rm <remote-path>"
	deleteCommandShortConstant     = "Delete a remote file or directory tree"

	remoteDirectoryFlagNameConstant        = "remote-dir"
	remoteDirectoryFlagDescriptionConstant = "Remote directory, relative to the session remote directory unless it starts with /"
	localDirectoryFlagNameConstant         = "local-dir"
	localDirectoryFlagDescriptionConstant  = "Local destination directory"
	formatFlagNameConstant                 = "format"
	formatFlagDescriptionConstant          = "Output format"

	typeDirectoryLabelConstant = "dir"
	currentDirectoryConstant   = "."
	progressLineTemplate       = "[%3.0f%%] %s\n"
	summaryLineTemplate        = "%s: %d succeeded, %d failed, %d skipped (%s)\n"
	failureLineTemplate        = "  %v\n"
	deleteQuestionTemplate     = "Delete %s from %s?"
	overwriteQuestionTemplate  = "Overwrite %d existing local file(s) under %s?"
	commandFailureTemplate     = "files %s failed: %w"
	clientMissingMessage       = "GitHub client provider not configured"
	sessionMissingMessage      = "session provider not configured"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current transfer configuration.
type ConfigurationProvider func() Configuration

// SessionProvider returns the session the command operates on.
type SessionProvider func() (session.Session, error)

// ClientProvider constructs the GitHub client for a command invocation.
type ClientProvider func(executionContext context.Context) (GitHubClient, error)

// FormatProvider returns the configured output format name.
type FormatProvider func() string

// CommandBuilder assembles the files command hierarchy.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	SessionProvider       SessionProvider
	ClientProvider        ClientProvider
	FormatProvider        FormatProvider
	TerminalDetector      prompt.TerminalDetector
}

// Build constructs the files command with its subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	filesCommand := &cobra.Command{
		Use:   filesCommandUseConstant,
		Short: filesCommandShortDescriptionConstant,
		Long:  filesCommandLongDescriptionConstant,
	}

	formatUsage := flags.FormatChoiceUsage(string(output.FormatTable), output.Formats, formatFlagDescriptionConstant)

	listRemoteCommand := &cobra.Command{
		Use:   listRemoteCommandUseConstant,
		Short: listRemoteCommandShortConstant,
		Args:  cobra.MaximumNArgs(1),
		RunE:  builder.runListRemote,
	}
	listRemoteCommand.Flags().String(formatFlagNameConstant, "", formatUsage)

	listLocalCommand := &cobra.Command{
		Use:   listLocalCommandUseConstant,
		Short: listLocalCommandShortConstant,
		Args:  cobra.MaximumNArgs(1),
		RunE:  builder.runListLocal,
	}
	listLocalCommand.Flags().String(formatFlagNameConstant, "", formatUsage)

	uploadCommand := &cobra.Command{
		Use:   uploadCommandUseConstant,
		Short: uploadCommandShortConstant,
		Long:  uploadCommandLongConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runUpload,
	}
	uploadCommand.Flags().String(remoteDirectoryFlagNameConstant, "", remoteDirectoryFlagDescriptionConstant)

	downloadCommand := &cobra.Command{
		Use:   downloadCommandUseConstant,
		Short: downloadCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runDownload,
	}
	downloadCommand.Flags().String(localDirectoryFlagNameConstant, "", localDirectoryFlagDescriptionConstant)
	flags.BindAssumeYesFlag(downloadCommand)

	deleteCommand := &cobra.Command{
		Use:   deleteCommandUseConstant,
		Short: deleteCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runDelete,
	}
	flags.BindAssumeYesFlag(deleteCommand)

	filesCommand.AddCommand(listRemoteCommand, listLocalCommand, uploadCommand, downloadCommand, deleteCommand)
	return filesCommand, nil
}

func (builder *CommandBuilder) runListRemote(command *cobra.Command, arguments []string) error {
	service, currentSession, serviceError := builder.resolveService(command, nil)
	if serviceError != nil {
		return serviceError
	}
	renderer, rendererError := builder.resolveRenderer(command)
	if rendererError != nil {
		return rendererError
	}

	remoteDirectory := currentSession.ResolveRemote(firstArgument(arguments))
	node, listError := service.ListRemote(command.Context(), remoteDirectory)
	if listError != nil {
		return fmt.Errorf(commandFailureTemplate, "ls", listError)
	}

	tabularView := output.Table{Headers: []string{"TYPE", "NAME", "SIZE"}}
	listedEntries := node.Children
	if !node.IsDirectory() {
		listedEntries = []githubapi.Entry{node.Entry}
	}
	for _, entry := range listedEntries {
		tabularView.Rows = append(tabularView.Rows, []string{string(entry.Kind), entry.Name, output.Size(entry.Size, entry.IsDirectory())})
	}
	return renderer.Render(tabularView, node)
}

func (builder *CommandBuilder) runListLocal(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	renderer, rendererError := builder.resolveRenderer(command)
	if rendererError != nil {
		return rendererError
	}

	localDirectory := resolveLocalPath(session.Session{LocalDirectory: configuration.LocalDirectory}, firstArgument(arguments))
	if len(localDirectory) == 0 {
		localDirectory = currentDirectoryConstant
	}
	localEntries, listError := ListLocal(localDirectory, builder.serviceOptions(configuration, nil))
	if listError != nil {
		return fmt.Errorf(commandFailureTemplate, "local", listError)
	}

	tabularView := output.Table{Headers: []string{"TYPE", "NAME", "SIZE", "EXCLUDED"}}
	for _, localEntry := range localEntries {
		entryType := string(githubapi.NodeKindFile)
		if localEntry.IsDirectory {
			entryType = typeDirectoryLabelConstant
		}
		tabularView.Rows = append(tabularView.Rows, []string{entryType, localEntry.Name, output.Size(localEntry.Size, localEntry.IsDirectory), output.Flag(localEntry.Excluded)})
	}
	return renderer.Render(tabularView, localEntries)
}

func (builder *CommandBuilder) runUpload(command *cobra.Command, arguments []string) error {
	service, currentSession, serviceError := builder.resolveService(command, progressPrinter(command.ErrOrStderr()))
	if serviceError != nil {
		return serviceError
	}

	remoteDirectoryFlagValue, flagError := command.Flags().GetString(remoteDirectoryFlagNameConstant)
	if flagError != nil {
		return flagError
	}
	remoteDirectory := currentSession.ResolveRemote(remoteDirectoryFlagValue)
	localPath := resolveLocalPath(currentSession, arguments[0])

	result, uploadError := service.Upload(command.Context(), localPath, remoteDirectory)
	return reportResult(command, "upload", result, uploadError)
}

func (builder *CommandBuilder) runDownload(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	service, currentSession, serviceError := builder.resolveService(command, progressPrinter(command.ErrOrStderr()))
	if serviceError != nil {
		return serviceError
	}

	localDirectoryFlagValue, flagError := command.Flags().GetString(localDirectoryFlagNameConstant)
	if flagError != nil {
		return flagError
	}
	localDirectory := resolveLocalPath(currentSession, localDirectoryFlagValue)
	remotePath := currentSession.ResolveRemote(arguments[0])

	gate := prompt.NewGate(command.InOrStdin(), command.ErrOrStderr(), flags.ResolveAssumeYes(command, configuration.AssumeYes), builder.TerminalDetector)
	guard := func(existingPaths []string) error {
		return gate.Require(fmt.Sprintf(overwriteQuestionTemplate, len(existingPaths), localDirectory))
	}

	result, downloadError := service.Download(command.Context(), remotePath, localDirectory, guard)
	return reportResult(command, "download", result, downloadError)
}

func (builder *CommandBuilder) runDelete(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	service, currentSession, serviceError := builder.resolveService(command, progressPrinter(command.ErrOrStderr()))
	if serviceError != nil {
		return serviceError
	}

	remotePath := currentSession.ResolveRemote(arguments[0])
	if len(remotePath) == 0 {
		return fmt.Errorf(commandFailureTemplate, "rm", ErrRootDeletion)
	}

	gate := prompt.NewGate(command.InOrStdin(), command.ErrOrStderr(), flags.ResolveAssumeYes(command, configuration.AssumeYes), builder.TerminalDetector)
	if confirmationError := gate.Require(fmt.Sprintf(deleteQuestionTemplate, remotePath, currentSession.Repository.FullName())); confirmationError != nil {
		return confirmationError
	}

	result, deleteError := service.Delete(command.Context(), remotePath)
	return reportResult(command, "rm", result, deleteError)
}

func (builder *CommandBuilder) resolveService(command *cobra.Command, reporter ProgressReporter) (*Service, session.Session, error) {
	configuration := builder.resolveConfiguration()
	currentSession, sessionError := builder.resolveSession()
	if sessionError != nil {
		return nil, session.Session{}, sessionError
	}
	if builder.ClientProvider == nil {
		return nil, session.Session{}, errors.New(clientMissingMessage)
	}
	client, clientError := builder.ClientProvider(command.Context())
	if clientError != nil {
		return nil, session.Session{}, clientError
	}
	service, serviceError := NewService(client, currentSession, builder.serviceOptions(configuration, reporter))
	if serviceError != nil {
		return nil, session.Session{}, serviceError
	}
	return service, currentSession, nil
}

func (builder *CommandBuilder) serviceOptions(configuration Configuration, reporter ProgressReporter) ServiceOptions {
	return ServiceOptions{
		IgnoreFileName: configuration.IgnoreFile,
		AlwaysExclude:  configuration.AlwaysExclude,
		Workers:        configuration.Workers,
		Reporter:       reporter,
		Logger:         builder.resolveLogger(),
	}
}

func (builder *CommandBuilder) resolveRenderer(command *cobra.Command) (*output.Renderer, error) {
	formatValue, flagError := command.Flags().GetString(formatFlagNameConstant)
	if flagError != nil {
		return nil, flagError
	}
	if len(strings.TrimSpace(formatValue)) == 0 && builder.FormatProvider != nil {
		formatValue = builder.FormatProvider()
	}
	format, formatError := output.ParseFormat(formatValue)
	if formatError != nil {
		return nil, formatError
	}
	return output.NewRenderer(command.OutOrStdout(), format), nil
}

func (builder *CommandBuilder) resolveSession() (session.Session, error) {
	if builder.SessionProvider == nil {
		return session.Session{}, errors.New(sessionMissingMessage)
	}
	return builder.SessionProvider()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	return configuration.Sanitize()
}

func reportResult(command *cobra.Command, operation string, result Result, operationError error) error {
	if result.Succeeded+result.Failed+result.Skipped > 0 {
		fmt.Fprintf(command.OutOrStdout(), summaryLineTemplate, operation, result.Succeeded, result.Failed, result.Skipped, output.Size(result.Bytes, false))
		for _, failure := range result.Errors {
			fmt.Fprintf(command.ErrOrStderr(), failureLineTemplate, failure)
		}
	}
	if operationError != nil {
		return fmt.Errorf(commandFailureTemplate, operation, operationError)
	}
	return nil
}

func progressPrinter(writer io.Writer) ProgressReporter {
	return func(progress Progress) {
		fmt.Fprintf(writer, progressLineTemplate, progress.Percent(), progress.Current)
	}
}

func resolveLocalPath(currentSession session.Session, candidatePath string) string {
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return currentSession.LocalDirectory
	}
	if filepath.IsAbs(trimmedPath) || len(currentSession.LocalDirectory) == 0 {
		return trimmedPath
	}
	return filepath.Join(currentSession.LocalDirectory, trimmedPath)
}

func firstArgument(arguments []string) string {
	if len(arguments) == 0 {
		return ""
	}
	return arguments[0]
}
