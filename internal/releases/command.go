package releases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/minigit/internal/output"
	"github.com/temirov/minigit/internal/prompt"
	"github.com/temirov/minigit/internal/session"
	"github.com/temirov/minigit/internal/utils/flags"
)

const (
	releasesCommandUseConstant   = "releases"
	releasesCommandShortConstant = "Manage GitHub releases"
	listCommandUseConstant       = "ls"
	listCommandShortConstant     = "List releases"
	publishCommandUseConstant    = "publish <tag>"
	publishCommandShortConstant  = "Create a release and upload its assets"
	deleteCommandUseConstant     = "rm <id|tag>"
	deleteCommandShortConstant   = "Delete a release by numeric ID or tag"

	nameFlagNameConstant        = "name"
	nameFlagUsageConstant       = "Release title (defaults to \"Release <tag>\")"
	bodyFlagNameConstant        = "body"
	bodyFlagUsageConstant       = "Release notes (defaults to releases.body)"
	assetFlagNameConstant       = "asset"
	assetFlagUsageConstant      = "Local file to attach; repeat for several assets"
	draftFlagNameConstant       = "draft"
	draftFlagUsageConstant      = "Create the release as a draft"
	prereleaseFlagNameConstant  = "prerelease"
	prereleaseFlagUsageConstant = "Mark the release as a prerelease"
	formatFlagNameConstant      = "format"
	formatFlagUsageConstant     = "Output format"

	publishedLineTemplate  = "published %s (%s)\n"
	assetLineTemplate      = "  asset %s (%s)\n"
	deletedLineTemplate    = "deleted release %s (id %d)\n"
	deleteQuestionTemplate = "Delete release %s (id %d) from %s?"
	commandFailureTemplate = "releases %s failed: %w"
	draftLabelConstant     = "draft"
	clientMissingMessage   = "GitHub client provider not configured"
	sessionMissingMessage  = "session provider not configured"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current releases configuration.
type ConfigurationProvider func() Configuration

// SessionProvider returns the session the command operates on.
type SessionProvider func() (session.Session, error)

// ClientProvider constructs the GitHub client for a command invocation.
type ClientProvider func(executionContext context.Context) (GitHubClient, error)

// FormatProvider returns the configured output format name.
type FormatProvider func() string

// CommandBuilder assembles the releases command hierarchy.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	SessionProvider       SessionProvider
	ClientProvider        ClientProvider
	FormatProvider        FormatProvider
	TerminalDetector      prompt.TerminalDetector
}

// Build constructs the releases command with its subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	releasesCommand := &cobra.Command{
		Use:   releasesCommandUseConstant,
		Short: releasesCommandShortConstant,
	}

	listCommand := &cobra.Command{
		Use:   listCommandUseConstant,
		Short: listCommandShortConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runList,
	}
	listCommand.Flags().String(formatFlagNameConstant, "", flags.FormatChoiceUsage(string(output.FormatTable), output.Formats, formatFlagUsageConstant))

	publishCommand := &cobra.Command{
		Use:   publishCommandUseConstant,
		Short: publishCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runPublish,
	}
	publishCommand.Flags().String(nameFlagNameConstant, "", nameFlagUsageConstant)
	publishCommand.Flags().String(bodyFlagNameConstant, "", bodyFlagUsageConstant)
	publishCommand.Flags().StringArray(assetFlagNameConstant, nil, assetFlagUsageConstant)
	publishCommand.Flags().Bool(draftFlagNameConstant, false, draftFlagUsageConstant)
	publishCommand.Flags().Bool(prereleaseFlagNameConstant, false, prereleaseFlagUsageConstant)

	deleteCommand := &cobra.Command{
		Use:   deleteCommandUseConstant,
		Short: deleteCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runDelete,
	}
	flags.BindAssumeYesFlag(deleteCommand)

	releasesCommand.AddCommand(listCommand, publishCommand, deleteCommand)
	return releasesCommand, nil
}

func (builder *CommandBuilder) runList(command *cobra.Command, _ []string) error {
	service, _, serviceError := builder.resolveService(command)
	if serviceError != nil {
		return serviceError
	}

	formatValue, flagError := command.Flags().GetString(formatFlagNameConstant)
	if flagError != nil {
		return flagError
	}
	if len(strings.TrimSpace(formatValue)) == 0 && builder.FormatProvider != nil {
		formatValue = builder.FormatProvider()
	}
	format, formatError := output.ParseFormat(formatValue)
	if formatError != nil {
		return formatError
	}

	summaries, listError := service.List(command.Context())
	if listError != nil {
		return fmt.Errorf(commandFailureTemplate, "ls", listError)
	}

	tabularView := output.Table{Headers: []string{"ID", "TAG", "NAME", "PUBLISHED", "ASSETS"}}
	for _, summary := range summaries {
		published := summary.Published
		if summary.Draft {
			published = draftLabelConstant
		}
		tabularView.Rows = append(tabularView.Rows, []string{
			strconv.FormatInt(summary.ID, 10),
			summary.Tag,
			summary.Name,
			published,
			output.Join(summary.Assets),
		})
	}
	return output.NewRenderer(command.OutOrStdout(), format).Render(tabularView, summaries)
}

func (builder *CommandBuilder) runPublish(command *cobra.Command, arguments []string) error {
	service, _, serviceError := builder.resolveService(command)
	if serviceError != nil {
		return serviceError
	}
	configuration := builder.resolveConfiguration()

	publishFlags := command.Flags()
	releaseName, _ := publishFlags.GetString(nameFlagNameConstant)
	releaseBody, _ := publishFlags.GetString(bodyFlagNameConstant)
	assetPaths, _ := publishFlags.GetStringArray(assetFlagNameConstant)

	draft := configuration.Draft
	if publishFlags.Changed(draftFlagNameConstant) {
		draft, _ = publishFlags.GetBool(draftFlagNameConstant)
	}
	prerelease := configuration.Prerelease
	if publishFlags.Changed(prereleaseFlagNameConstant) {
		prerelease, _ = publishFlags.GetBool(prereleaseFlagNameConstant)
	}

	release, publishError := service.Publish(command.Context(), PublishOptions{
		TagName:    arguments[0],
		Name:       releaseName,
		Body:       releaseBody,
		Draft:      draft,
		Prerelease: prerelease,
		AssetPaths: assetPaths,
	})
	if release.ID > 0 {
		fmt.Fprintf(command.OutOrStdout(), publishedLineTemplate, release.TagName, release.HTMLURL)
		for _, asset := range release.Assets {
			fmt.Fprintf(command.OutOrStdout(), assetLineTemplate, asset.Name, output.Size(asset.Size, false))
		}
	}
	if publishError != nil {
		return fmt.Errorf(commandFailureTemplate, "publish", publishError)
	}
	return nil
}

func (builder *CommandBuilder) runDelete(command *cobra.Command, arguments []string) error {
	service, currentSession, serviceError := builder.resolveService(command)
	if serviceError != nil {
		return serviceError
	}

	release, resolveError := service.Resolve(command.Context(), arguments[0])
	if resolveError != nil {
		return fmt.Errorf(commandFailureTemplate, "rm", resolveError)
	}

	gate := prompt.NewGate(command.InOrStdin(), command.ErrOrStderr(), flags.ResolveAssumeYes(command, false), builder.TerminalDetector)
	if confirmationError := gate.Require(fmt.Sprintf(deleteQuestionTemplate, release.TagName, release.ID, currentSession.Repository.FullName())); confirmationError != nil {
		return confirmationError
	}

	if deleteError := service.Delete(command.Context(), release); deleteError != nil {
		return fmt.Errorf(commandFailureTemplate, "rm", deleteError)
	}
	fmt.Fprintf(command.OutOrStdout(), deletedLineTemplate, release.TagName, release.ID)
	return nil
}

func (builder *CommandBuilder) resolveService(command *cobra.Command) (*Service, session.Session, error) {
	if builder.SessionProvider == nil {
		return nil, session.Session{}, errors.New(sessionMissingMessage)
	}
	currentSession, sessionError := builder.SessionProvider()
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
	service, serviceError := NewService(client, currentSession.Repository, builder.resolveConfiguration(), builder.resolveLogger())
	if serviceError != nil {
		return nil, session.Session{}, serviceError
	}
	return service, currentSession, nil
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
