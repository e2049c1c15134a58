package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/minigit/internal/prompt"
	"github.com/temirov/minigit/internal/session"
	"github.com/temirov/minigit/internal/utils/flags"
)

const (
	repoCommandUseConstant           = "repo"
	repoCommandShortConstant         = "Create repositories and rewrite branch history"
	createCommandUseConstant         = "create <name>"
	createCommandShortConstant       = "Create a repository for the authenticated user"
	resetHistoryCommandUseConstant   = "reset-history"
	resetHistoryCommandShortConstant = "Replace a branch's history with a single commit of its current tree"
	resetHistoryCommandLongConstant  = "reset-history creates a parentless commit holding the branch's current tree and force-moves the branch onto it. Every previous commit becomes unreachable."
	whoAmICommandUseConstant         = "whoami"
	whoAmICommandShortConstant       = "Show the authenticated user and verify access to the configured repository"

	descriptionFlagNameConstant  = "description"
	descriptionFlagUsageConstant = "Repository description"
	privateFlagNameConstant      = "private"
	privateFlagUsageConstant     = "Create a private repository"
	autoInitFlagNameConstant     = "auto-init"
	autoInitFlagUsageConstant    = "Create an initial commit with a README"
	branchFlagNameConstant       = "branch"
	branchFlagUsageConstant      = "Branch to reset (defaults to the session branch, then main)"

	userLineTemplate          = "logged in as %s\n"
	userWithNameLineTemplate  = "logged in as %s (%s)\n"
	repositoryLineTemplate    = "repository %s (default branch %s, %s)\n"
	createdLineTemplate       = "created %s (%s)\n"
	resetLineTemplate         = "reset %s: %s -> %s\n"
	resetQuestionTemplate     = "Replace the entire history of %s on %s with a single commit?"
	commandFailureTemplate    = "repo %s failed: %w"
	whoAmIFailureTemplate     = "whoami failed: %w"
	visibilityPrivateConstant = "private"
	visibilityPublicConstant  = "public"
	shortSHALengthConstant    = 7
	clientMissingMessage      = "GitHub client provider not configured"
	sessionMissingMessage     = "session provider not configured"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// SessionProvider returns the session the command operates on.
type SessionProvider func() (session.Session, error)

// ClientProvider constructs the GitHub client for a command invocation.
type ClientProvider func(executionContext context.Context) (GitHubClient, error)

// CommandBuilder assembles the repo and whoami commands.
type CommandBuilder struct {
	LoggerProvider   LoggerProvider
	SessionProvider  SessionProvider
	ClientProvider   ClientProvider
	TerminalDetector prompt.TerminalDetector
}

// Build constructs the repo command with its subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	repoCommand := &cobra.Command{
		Use:   repoCommandUseConstant,
		Short: repoCommandShortConstant,
	}

	createCommand := &cobra.Command{
		Use:   createCommandUseConstant,
		Short: createCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runCreate,
	}
	createCommand.Flags().String(descriptionFlagNameConstant, "", descriptionFlagUsageConstant)
	createCommand.Flags().Bool(privateFlagNameConstant, false, privateFlagUsageConstant)
	createCommand.Flags().Bool(autoInitFlagNameConstant, true, autoInitFlagUsageConstant)

	resetHistoryCommand := &cobra.Command{
		Use:   resetHistoryCommandUseConstant,
		Short: resetHistoryCommandShortConstant,
		Long:  resetHistoryCommandLongConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runResetHistory,
	}
	resetHistoryCommand.Flags().String(branchFlagNameConstant, "", branchFlagUsageConstant)
	flags.BindAssumeYesFlag(resetHistoryCommand)

	repoCommand.AddCommand(createCommand, resetHistoryCommand)
	return repoCommand, nil
}

// BuildWhoAmI constructs the whoami command.
func (builder *CommandBuilder) BuildWhoAmI() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   whoAmICommandUseConstant,
		Short: whoAmICommandShortConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runWhoAmI,
	}, nil
}

func (builder *CommandBuilder) runWhoAmI(command *cobra.Command, _ []string) error {
	service, serviceError := builder.resolveService(command)
	if serviceError != nil {
		return serviceError
	}

	if builder.SessionProvider == nil {
		return errors.New(sessionMissingMessage)
	}
	currentSession, sessionError := builder.SessionProvider()
	if errors.Is(sessionError, session.ErrRepositoryNotConfigured) {
		user, userError := service.WhoAmI(command.Context())
		if userError != nil {
			return fmt.Errorf(whoAmIFailureTemplate, userError)
		}
		printUser(command, user.Login, user.Name)
		return nil
	}
	if sessionError != nil {
		return sessionError
	}

	connection, connectError := service.Connect(command.Context(), currentSession.Repository)
	if connectError != nil {
		return fmt.Errorf(whoAmIFailureTemplate, connectError)
	}
	printUser(command, connection.User.Login, connection.User.Name)
	visibility := visibilityPublicConstant
	if connection.Repository.Private {
		visibility = visibilityPrivateConstant
	}
	fmt.Fprintf(command.OutOrStdout(), repositoryLineTemplate, connection.Repository.FullName, connection.Repository.DefaultBranch, visibility)
	return nil
}

func (builder *CommandBuilder) runCreate(command *cobra.Command, arguments []string) error {
	service, serviceError := builder.resolveService(command)
	if serviceError != nil {
		return serviceError
	}

	description, _ := command.Flags().GetString(descriptionFlagNameConstant)
	private, _ := command.Flags().GetBool(privateFlagNameConstant)
	autoInit, _ := command.Flags().GetBool(autoInitFlagNameConstant)

	details, createError := service.Create(command.Context(), CreateOptions{
		Name:        arguments[0],
		Description: description,
		Private:     private,
		AutoInit:    autoInit,
	})
	if createError != nil {
		return fmt.Errorf(commandFailureTemplate, "create", createError)
	}
	fmt.Fprintf(command.OutOrStdout(), createdLineTemplate, details.FullName, details.HTMLURL)
	return nil
}

func (builder *CommandBuilder) runResetHistory(command *cobra.Command, _ []string) error {
	if builder.SessionProvider == nil {
		return errors.New(sessionMissingMessage)
	}
	currentSession, sessionError := builder.SessionProvider()
	if sessionError != nil {
		return sessionError
	}
	service, serviceError := builder.resolveService(command)
	if serviceError != nil {
		return serviceError
	}

	branchName, _ := command.Flags().GetString(branchFlagNameConstant)
	branchName = strings.TrimSpace(branchName)
	if len(branchName) == 0 {
		branchName = strings.TrimSpace(currentSession.Branch)
	}
	if len(branchName) == 0 {
		branchName = DefaultBranch
	}

	gate := prompt.NewGate(command.InOrStdin(), command.ErrOrStderr(), flags.ResolveAssumeYes(command, false), builder.TerminalDetector)
	if confirmationError := gate.Require(fmt.Sprintf(resetQuestionTemplate, branchName, currentSession.Repository.FullName())); confirmationError != nil {
		return confirmationError
	}

	result, resetError := service.ResetHistory(command.Context(), currentSession.Repository, branchName)
	if resetError != nil {
		return fmt.Errorf(commandFailureTemplate, "reset-history", resetError)
	}
	fmt.Fprintf(command.OutOrStdout(), resetLineTemplate, result.Branch, shortSHA(result.PreviousHead), shortSHA(result.NewHead))
	return nil
}

func (builder *CommandBuilder) resolveService(command *cobra.Command) (*Service, error) {
	if builder.ClientProvider == nil {
		return nil, errors.New(clientMissingMessage)
	}
	client, clientError := builder.ClientProvider(command.Context())
	if clientError != nil {
		return nil, clientError
	}
	return NewService(client, builder.resolveLogger())
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

func printUser(command *cobra.Command, login string, name string) {
	if len(strings.TrimSpace(name)) == 0 {
		fmt.Fprintf(command.OutOrStdout(), userLineTemplate, login)
		return
	}
	fmt.Fprintf(command.OutOrStdout(), userWithNameLineTemplate, login, name)
}

func shortSHA(sha string) string {
	if len(sha) <= shortSHALengthConstant {
		return sha
	}
	return sha[:shortSHALengthConstant]
}
