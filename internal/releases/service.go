package releases

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/minigit/internal/githubapi"
	"github.com/temirov/minigit/internal/session"
)

const (
	publishedDateLayoutConstant      = "2006-01-02"
	defaultNameTemplateConstant      = "Release %s"
	assetErrorTemplateConstant       = "asset %s: %w"
	assetDirectoryTemplateConstant   = "asset %s is a directory"
	uploadAssetErrorTemplateConstant = "release %s created but asset %s failed: %w"
	tagRequiredMessageConstant       = "release tag is required"
	identifierRequiredMessage        = "release id or tag is required"
	clientRequiredMessage            = "releases service requires a GitHub client"

	logFieldTagConstant    = "tag"
	logFieldIDConstant     = "release_id"
	logFieldAssetConstant  = "asset"
	releaseCreatedMessage  = "release created"
	assetUploadedMessage   = "release asset uploaded"
	releaseDeletedMessage  = "release deleted"
	releaseNotFoundMessage = "release not found"
)

var (
	// ErrTagRequired indicates Publish was called without a tag.
	ErrTagRequired = errors.New(tagRequiredMessageConstant)
	// ErrReleaseNotFound indicates no release matches the identifier.
	ErrReleaseNotFound = errors.New(releaseNotFoundMessage)
)

// GitHubClient is the subset of the GitHub API used by the releases service.
type GitHubClient interface {
	ListReleases(executionContext context.Context, repository session.Repository) ([]githubapi.Release, error)
	CreateRelease(executionContext context.Context, repository session.Repository, request githubapi.ReleaseRequest) (githubapi.Release, error)
	ReleaseByTag(executionContext context.Context, repository session.Repository, tagName string) (githubapi.Release, error)
	UploadReleaseAsset(executionContext context.Context, repository session.Repository, releaseID int64, assetPath string) (githubapi.ReleaseAsset, error)
	DeleteRelease(executionContext context.Context, repository session.Repository, releaseID int64) error
}

// Summary is the listing view of a release.
type Summary struct {
	ID         int64    `json:"id" yaml:"id"`
	Tag        string   `json:"tag" yaml:"tag"`
	Name       string   `json:"name" yaml:"name"`
	Published  string   `json:"published,omitempty" yaml:"published,omitempty"`
	Draft      bool     `json:"draft" yaml:"draft"`
	Prerelease bool     `json:"prerelease" yaml:"prerelease"`
	Assets     []string `json:"assets" yaml:"assets"`
}

// PublishOptions describes a release to publish.
type PublishOptions struct {
	TagName    string
	Name       string
	Body       string
	Draft      bool
	Prerelease bool
	AssetPaths []string
}

// Service manages the releases of one repository.
type Service struct {
	client        GitHubClient
	repository    session.Repository
	configuration Configuration
	logger        *zap.Logger
}

// NewService constructs a releases service for repository.
func NewService(client GitHubClient, repository session.Repository, configuration Configuration, logger *zap.Logger) (*Service, error) {
	if client == nil {
		return nil, errors.New(clientRequiredMessage)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, repository: repository, configuration: configuration.Sanitize(), logger: logger}, nil
}

// List returns every release in the order GitHub reports them.
func (service *Service) List(executionContext context.Context) ([]Summary, error) {
	releases, listError := service.client.ListReleases(executionContext, service.repository)
	if listError != nil {
		return nil, listError
	}
	summaries := make([]Summary, 0, len(releases))
	for _, release := range releases {
		summaries = append(summaries, Summarize(release))
	}
	return summaries, nil
}

// Summarize converts a release into its listing view.
func Summarize(release githubapi.Release) Summary {
	summary := Summary{
		ID:         release.ID,
		Tag:        release.TagName,
		Name:       release.Name,
		Draft:      release.Draft,
		Prerelease: release.Prerelease,
		Assets:     make([]string, 0, len(release.Assets)),
	}
	if !release.PublishedAt.IsZero() {
		summary.Published = release.PublishedAt.Format(publishedDateLayoutConstant)
	}
	for _, asset := range release.Assets {
		summary.Assets = append(summary.Assets, asset.Name)
	}
	return summary
}

// Publish creates a release and uploads its assets. Asset paths are validated
// before anything is created; an upload failure returns the created release with the error.
func (service *Service) Publish(executionContext context.Context, options PublishOptions) (githubapi.Release, error) {
	tagName := strings.TrimSpace(options.TagName)
	if len(tagName) == 0 {
		return githubapi.Release{}, ErrTagRequired
	}
	if validationError := validateAssets(options.AssetPaths); validationError != nil {
		return githubapi.Release{}, validationError
	}

	releaseName := strings.TrimSpace(options.Name)
	if len(releaseName) == 0 {
		releaseName = fmt.Sprintf(defaultNameTemplateConstant, tagName)
	}
	releaseBody := options.Body
	if len(strings.TrimSpace(releaseBody)) == 0 {
		releaseBody = service.configuration.Body
	}

	release, createError := service.client.CreateRelease(executionContext, service.repository, githubapi.ReleaseRequest{
		TagName:    tagName,
		Name:       releaseName,
		Body:       releaseBody,
		Draft:      options.Draft,
		Prerelease: options.Prerelease,
	})
	if createError != nil {
		return githubapi.Release{}, createError
	}
	service.logger.Info(releaseCreatedMessage, zap.String(logFieldTagConstant, tagName), zap.Int64(logFieldIDConstant, release.ID))

	for _, assetPath := range options.AssetPaths {
		asset, uploadError := service.client.UploadReleaseAsset(executionContext, service.repository, release.ID, assetPath)
		if uploadError != nil {
			return release, fmt.Errorf(uploadAssetErrorTemplateConstant, tagName, assetPath, uploadError)
		}
		release.Assets = append(release.Assets, asset)
		service.logger.Info(assetUploadedMessage, zap.String(logFieldTagConstant, tagName), zap.String(logFieldAssetConstant, asset.Name))
	}
	return release, nil
}

func validateAssets(assetPaths []string) error {
	for _, assetPath := range assetPaths {
		fileInformation, statError := os.Stat(assetPath)
		if statError != nil {
			return fmt.Errorf(assetErrorTemplateConstant, assetPath, statError)
		}
		if fileInformation.IsDir() {
			return fmt.Errorf(assetDirectoryTemplateConstant, assetPath)
		}
	}
	return nil
}

// Resolve finds a release by numeric ID, falling back to a tag lookup.
func (service *Service) Resolve(executionContext context.Context, identifier string) (githubapi.Release, error) {
	trimmedIdentifier := strings.TrimSpace(identifier)
	if len(trimmedIdentifier) == 0 {
		return githubapi.Release{}, errors.New(identifierRequiredMessage)
	}

	if releaseID, parseError := strconv.ParseInt(trimmedIdentifier, 10, 64); parseError == nil && releaseID > 0 {
		releases, listError := service.client.ListReleases(executionContext, service.repository)
		if listError != nil {
			return githubapi.Release{}, listError
		}
		for _, release := range releases {
			if release.ID == releaseID {
				return release, nil
			}
		}
	}

	release, lookupError := service.client.ReleaseByTag(executionContext, service.repository, trimmedIdentifier)
	if lookupError != nil {
		if githubapi.IsNotFound(lookupError) {
			return githubapi.Release{}, fmt.Errorf("%s: %w", trimmedIdentifier, ErrReleaseNotFound)
		}
		return githubapi.Release{}, lookupError
	}
	return release, nil
}

// Delete removes the release; its git tag is left in place.
func (service *Service) Delete(executionContext context.Context, release githubapi.Release) error {
	if deleteError := service.client.DeleteRelease(executionContext, service.repository, release.ID); deleteError != nil {
		return deleteError
	}
	service.logger.Info(releaseDeletedMessage, zap.String(logFieldTagConstant, release.TagName), zap.Int64(logFieldIDConstant, release.ID))
	return nil
}
