package repository

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/minigit/internal/githubapi"
	"github.com/temirov/minigit/internal/session"
)

const (
	// DefaultBranch is reset when neither the caller nor the session names a branch.
	DefaultBranch = "main"
	// ResetCommitMessage is the message of the commit that replaces the history.
	ResetCommitMessage = "Reset History (Clean Slate)"

	nameFieldNameConstant      = "name"
	nameRequiredMessage        = "is required"
	nameWithOwnerMessage       = "must not contain an owner"
	clientRequiredMessage      = "repository service requires a GitHub client"
	logFieldRepositoryName     = "repository"
	logFieldBranchName         = "branch"
	logFieldPreviousHeadName   = "previous_head"
	logFieldNewHeadName        = "new_head"
	repositoryCreatedMessage   = "repository created"
	historyResetMessage        = "branch history reset"
	repositoryConnectedMessage = "repository connected"
)

// GitHubClient is the subset of the GitHub API used by repository operations.
type GitHubClient interface {
	AuthenticatedUser(executionContext context.Context) (githubapi.User, error)
	Repository(executionContext context.Context, repository session.Repository) (githubapi.RepositoryDetails, error)
	CreateRepository(executionContext context.Context, request githubapi.RepositoryRequest) (githubapi.RepositoryDetails, error)
	BranchHead(executionContext context.Context, repository session.Repository, branch string) (string, error)
	CommitTree(executionContext context.Context, repository session.Repository, commitSHA string) (string, error)
	CreateOrphanCommit(executionContext context.Context, repository session.Repository, treeSHA string, message string) (string, error)
	ForceUpdateBranch(executionContext context.Context, repository session.Repository, branch string, commitSHA string) error
}

// Connection describes a verified login and repository.
type Connection struct {
	User       githubapi.User              `json:"user" yaml:"user"`
	Repository githubapi.RepositoryDetails `json:"repository" yaml:"repository"`
}

// CreateOptions describes a repository to create for the authenticated user.
type CreateOptions struct {
	Name        string
	Description string
	Private     bool
	AutoInit    bool
}

// ResetResult reports a history reset.
type ResetResult struct {
	Branch       string `json:"branch" yaml:"branch"`
	PreviousHead string `json:"previous_head" yaml:"previous_head"`
	NewHead      string `json:"new_head" yaml:"new_head"`
	Tree         string `json:"tree" yaml:"tree"`
}

// Service performs repository-level operations.
type Service struct {
	client GitHubClient
	logger *zap.Logger
}

// NewService constructs a repository service.
func NewService(client GitHubClient, logger *zap.Logger) (*Service, error) {
	if client == nil {
		return nil, errors.New(clientRequiredMessage)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, logger: logger}, nil
}

// WhoAmI returns the authenticated user.
func (service *Service) WhoAmI(executionContext context.Context) (githubapi.User, error) {
	return service.client.AuthenticatedUser(executionContext)
}

// Connect verifies the token and that repository is reachable with it.
func (service *Service) Connect(executionContext context.Context, repository session.Repository) (Connection, error) {
	user, userError := service.client.AuthenticatedUser(executionContext)
	if userError != nil {
		return Connection{}, userError
	}
	details, repositoryError := service.client.Repository(executionContext, repository)
	if repositoryError != nil {
		return Connection{}, repositoryError
	}
	service.logger.Debug(repositoryConnectedMessage, zap.String(logFieldRepositoryName, details.FullName))
	return Connection{User: user, Repository: details}, nil
}

// Create creates a repository owned by the authenticated user.
func (service *Service) Create(executionContext context.Context, options CreateOptions) (githubapi.RepositoryDetails, error) {
	repositoryName := strings.TrimSpace(options.Name)
	if len(repositoryName) == 0 {
		return githubapi.RepositoryDetails{}, githubapi.InvalidInputError{FieldName: nameFieldNameConstant, Message: nameRequiredMessage}
	}
	if strings.Contains(repositoryName, "/") {
		return githubapi.RepositoryDetails{}, githubapi.InvalidInputError{FieldName: nameFieldNameConstant, Message: nameWithOwnerMessage}
	}

	details, createError := service.client.CreateRepository(executionContext, githubapi.RepositoryRequest{
		Name:        repositoryName,
		Description: strings.TrimSpace(options.Description),
		Private:     options.Private,
		AutoInit:    options.AutoInit,
	})
	if createError != nil {
		return githubapi.RepositoryDetails{}, createError
	}
	service.logger.Info(repositoryCreatedMessage, zap.String(logFieldRepositoryName, details.FullName))
	return details, nil
}

// ResetHistory replaces the history of branch with one commit holding its current tree.
func (service *Service) ResetHistory(executionContext context.Context, repository session.Repository, branch string) (ResetResult, error) {
	branchName := strings.TrimSpace(branch)
	if len(branchName) == 0 {
		branchName = DefaultBranch
	}

	headSHA, headError := service.client.BranchHead(executionContext, repository, branchName)
	if headError != nil {
		return ResetResult{}, headError
	}
	treeSHA, treeError := service.client.CommitTree(executionContext, repository, headSHA)
	if treeError != nil {
		return ResetResult{}, treeError
	}
	commitSHA, commitError := service.client.CreateOrphanCommit(executionContext, repository, treeSHA, ResetCommitMessage)
	if commitError != nil {
		return ResetResult{}, commitError
	}
	if updateError := service.client.ForceUpdateBranch(executionContext, repository, branchName, commitSHA); updateError != nil {
		return ResetResult{}, updateError
	}

	service.logger.Info(
		historyResetMessage,
		zap.String(logFieldRepositoryName, repository.FullName()),
		zap.String(logFieldBranchName, branchName),
		zap.String(logFieldPreviousHeadName, headSHA),
		zap.String(logFieldNewHeadName, commitSHA),
	)
	return ResetResult{Branch: branchName, PreviousHead: headSHA, NewHead: commitSHA, Tree: treeSHA}, nil
}
