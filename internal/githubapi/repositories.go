package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/temirov/minigit/internal/session"
)

const (
	authenticatedUserOperationNameConstant OperationName = "authenticated user"
	repositoryOperationNameConstant        OperationName = "get repository"
	createRepositoryOperationNameConstant  OperationName = "create repository"
	branchHeadOperationNameConstant        OperationName = "read branch head"
	commitTreeOperationNameConstant        OperationName = "read commit tree"
	orphanCommitOperationNameConstant      OperationName = "create orphan commit"
	forceUpdateBranchOperationNameConstant OperationName = "force update branch"

	repositoryNameFieldNameConstant = "name"
	branchFieldNameConstant         = "branch"
	treeFieldNameConstant           = "tree"
	commitFieldNameConstant         = "commit"

	branchReferencePrefixConstant = "heads/"
)

// User describes the authenticated account.
type User struct {
	Login string `json:"login" yaml:"login"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// RepositoryDetails describes a repository as reported by GitHub.
type RepositoryDetails struct {
	FullName      string `json:"full_name" yaml:"full_name"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	Private       bool   `json:"private" yaml:"private"`
	DefaultBranch string `json:"default_branch" yaml:"default_branch"`
	HTMLURL       string `json:"html_url" yaml:"html_url"`
}

// RepositoryRequest carries the fields of a repository to create.
type RepositoryRequest struct {
	Name        string
	Description string
	Private     bool
	AutoInit    bool
}

// AuthenticatedUser returns the account owning the token.
func (client *Client) AuthenticatedUser(executionContext context.Context) (User, error) {
	var githubUser *gh.User
	executeError := client.execute(executionContext, authenticatedUserOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		githubUser, response, requestError = client.github.Users.Get(executionContext, "")
		return response, requestError
	})
	if executeError != nil {
		return User{}, executeError
	}
	return User{Login: githubUser.GetLogin(), Name: githubUser.GetName()}, nil
}

// Repository fetches repository metadata.
func (client *Client) Repository(executionContext context.Context, repository session.Repository) (RepositoryDetails, error) {
	var githubRepository *gh.Repository
	executeError := client.execute(executionContext, repositoryOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		githubRepository, response, requestError = client.github.Repositories.Get(executionContext, repository.Owner, repository.Name)
		return response, requestError
	})
	if executeError != nil {
		return RepositoryDetails{}, executeError
	}
	return repositoryFromGitHub(githubRepository), nil
}

// CreateRepository creates a repository owned by the authenticated user.
// A name collision is reported as ErrRepositoryExists.
func (client *Client) CreateRepository(executionContext context.Context, request RepositoryRequest) (RepositoryDetails, error) {
	repositoryName := strings.TrimSpace(request.Name)
	if len(repositoryName) == 0 {
		return RepositoryDetails{}, InvalidInputError{FieldName: repositoryNameFieldNameConstant, Message: requiredValueMessageConstant}
	}

	repositoryPayload := &gh.Repository{
		Name:     gh.Ptr(repositoryName),
		Private:  gh.Ptr(request.Private),
		AutoInit: gh.Ptr(request.AutoInit),
	}
	if description := strings.TrimSpace(request.Description); len(description) > 0 {
		repositoryPayload.Description = gh.Ptr(description)
	}

	var createdRepository *gh.Repository
	executeError := client.execute(executionContext, createRepositoryOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		createdRepository, response, requestError = client.github.Repositories.Create(executionContext, "", repositoryPayload)
		return response, requestError
	})
	if executeError != nil {
		if hasStatus(executeError, http.StatusUnprocessableEntity) {
			return RepositoryDetails{}, OperationError{
				Operation: createRepositoryOperationNameConstant,
				Cause:     fmt.Errorf("%s: %w", repositoryName, ErrRepositoryExists),
			}
		}
		return RepositoryDetails{}, executeError
	}
	return repositoryFromGitHub(createdRepository), nil
}

// BranchHead returns the commit SHA the branch points at.
func (client *Client) BranchHead(executionContext context.Context, repository session.Repository, branch string) (string, error) {
	trimmedBranch := strings.TrimSpace(branch)
	if len(trimmedBranch) == 0 {
		return "", InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var reference *gh.Reference
	executeError := client.execute(executionContext, branchHeadOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		reference, response, requestError = client.github.Git.GetRef(executionContext, repository.Owner, repository.Name, branchReference(trimmedBranch))
		return response, requestError
	})
	if executeError != nil {
		return "", executeError
	}
	if reference.GetObject() == nil || len(reference.GetObject().GetSHA()) == 0 {
		return "", OperationError{Operation: branchHeadOperationNameConstant, Cause: errors.New("reference has no target")}
	}
	return reference.GetObject().GetSHA(), nil
}

// CommitTree returns the tree SHA of a commit.
func (client *Client) CommitTree(executionContext context.Context, repository session.Repository, commitSHA string) (string, error) {
	if len(strings.TrimSpace(commitSHA)) == 0 {
		return "", InvalidInputError{FieldName: commitFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var commit *gh.Commit
	executeError := client.execute(executionContext, commitTreeOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		commit, response, requestError = client.github.Git.GetCommit(executionContext, repository.Owner, repository.Name, commitSHA)
		return response, requestError
	})
	if executeError != nil {
		return "", executeError
	}
	if commit.GetTree() == nil || len(commit.GetTree().GetSHA()) == 0 {
		return "", OperationError{Operation: commitTreeOperationNameConstant, Cause: errors.New("commit has no tree")}
	}
	return commit.GetTree().GetSHA(), nil
}

// CreateOrphanCommit creates a commit without parents pointing at treeSHA.
func (client *Client) CreateOrphanCommit(executionContext context.Context, repository session.Repository, treeSHA string, message string) (string, error) {
	if len(strings.TrimSpace(treeSHA)) == 0 {
		return "", InvalidInputError{FieldName: treeFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(message)) == 0 {
		return "", InvalidInputError{FieldName: messageFieldNameConstant, Message: requiredValueMessageConstant}
	}

	orphanCommit := gh.Commit{
		Message: gh.Ptr(message),
		Tree:    &gh.Tree{SHA: gh.Ptr(treeSHA)},
	}
	var createdCommit *gh.Commit
	executeError := client.execute(executionContext, orphanCommitOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		createdCommit, response, requestError = client.github.Git.CreateCommit(executionContext, repository.Owner, repository.Name, orphanCommit, nil)
		return response, requestError
	})
	if executeError != nil {
		return "", executeError
	}
	return createdCommit.GetSHA(), nil
}

// ForceUpdateBranch moves the branch to commitSHA even when it is not a descendant.
func (client *Client) ForceUpdateBranch(executionContext context.Context, repository session.Repository, branch string, commitSHA string) error {
	trimmedBranch := strings.TrimSpace(branch)
	if len(trimmedBranch) == 0 {
		return InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(commitSHA)) == 0 {
		return InvalidInputError{FieldName: commitFieldNameConstant, Message: requiredValueMessageConstant}
	}

	update := gh.UpdateRef{SHA: commitSHA, Force: gh.Ptr(true)}
	return client.execute(executionContext, forceUpdateBranchOperationNameConstant, func() (*gh.Response, error) {
		_, response, requestError := client.github.Git.UpdateRef(executionContext, repository.Owner, repository.Name, branchReference(trimmedBranch), update)
		return response, requestError
	})
}

func branchReference(branch string) string {
	return branchReferencePrefixConstant + branch
}

func repositoryFromGitHub(githubRepository *gh.Repository) RepositoryDetails {
	if githubRepository == nil {
		return RepositoryDetails{}
	}
	return RepositoryDetails{
		FullName:      githubRepository.GetFullName(),
		Description:   githubRepository.GetDescription(),
		Private:       githubRepository.GetPrivate(),
		DefaultBranch: githubRepository.GetDefaultBranch(),
		HTMLURL:       githubRepository.GetHTMLURL(),
	}
}
