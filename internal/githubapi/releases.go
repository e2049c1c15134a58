package githubapi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/temirov/minigit/internal/session"
)

const (
	listReleasesOperationNameConstant  OperationName = "list releases"
	createReleaseOperationNameConstant OperationName = "create release"
	releaseByTagOperationNameConstant  OperationName = "get release by tag"
	uploadAssetOperationNameConstant   OperationName = "upload release asset"
	deleteReleaseOperationNameConstant OperationName = "delete release"

	releasesPageSizeConstant      = 100
	assetMediaTypeConstant        = "application/octet-stream"
	tagFieldNameConstant          = "tag"
	releaseIDFieldNameConstant    = "release_id"
	assetPathFieldNameConstant    = "asset_path"
	releaseIDMessageConstant      = "must be positive"
	assetDirectoryMessageConstant = "is a directory"
)

// ReleaseAsset describes a file attached to a release.
type ReleaseAsset struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Size        int64  `json:"size" yaml:"size"`
	DownloadURL string `json:"download_url,omitempty" yaml:"download_url,omitempty"`
}

// Release describes a GitHub release.
type Release struct {
	ID          int64          `json:"id" yaml:"id"`
	TagName     string         `json:"tag" yaml:"tag"`
	Name        string         `json:"name" yaml:"name"`
	Body        string         `json:"body,omitempty" yaml:"body,omitempty"`
	Draft       bool           `json:"draft" yaml:"draft"`
	Prerelease  bool           `json:"prerelease" yaml:"prerelease"`
	PublishedAt time.Time      `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	HTMLURL     string         `json:"html_url,omitempty" yaml:"html_url,omitempty"`
	Assets      []ReleaseAsset `json:"assets" yaml:"assets"`
}

// ReleaseRequest carries the fields of a release to create.
type ReleaseRequest struct {
	TagName    string
	Name       string
	Body       string
	Draft      bool
	Prerelease bool
}

// ListReleases returns every release, newest first as ordered by GitHub.
func (client *Client) ListReleases(executionContext context.Context, repository session.Repository) ([]Release, error) {
	listOptions := &gh.ListOptions{PerPage: releasesPageSizeConstant}
	var releases []Release
	for {
		var pageReleases []*gh.RepositoryRelease
		var pageResponse *gh.Response
		executeError := client.execute(executionContext, listReleasesOperationNameConstant, func() (*gh.Response, error) {
			var requestError error
			pageReleases, pageResponse, requestError = client.github.Repositories.ListReleases(executionContext, repository.Owner, repository.Name, listOptions)
			return pageResponse, requestError
		})
		if executeError != nil {
			return nil, executeError
		}

		for _, pageRelease := range pageReleases {
			if pageRelease == nil {
				continue
			}
			releases = append(releases, releaseFromGitHub(pageRelease))
		}

		if pageResponse == nil || pageResponse.NextPage == 0 {
			break
		}
		listOptions.Page = pageResponse.NextPage
	}
	return releases, nil
}

// CreateRelease creates a release for request.TagName.
func (client *Client) CreateRelease(executionContext context.Context, repository session.Repository, request ReleaseRequest) (Release, error) {
	tagName := strings.TrimSpace(request.TagName)
	if len(tagName) == 0 {
		return Release{}, InvalidInputError{FieldName: tagFieldNameConstant, Message: requiredValueMessageConstant}
	}

	releasePayload := &gh.RepositoryRelease{
		TagName:    gh.Ptr(tagName),
		Name:       gh.Ptr(request.Name),
		Body:       gh.Ptr(request.Body),
		Draft:      gh.Ptr(request.Draft),
		Prerelease: gh.Ptr(request.Prerelease),
	}

	var createdRelease *gh.RepositoryRelease
	executeError := client.execute(executionContext, createReleaseOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		createdRelease, response, requestError = client.github.Repositories.CreateRelease(executionContext, repository.Owner, repository.Name, releasePayload)
		return response, requestError
	})
	if executeError != nil {
		return Release{}, executeError
	}
	return releaseFromGitHub(createdRelease), nil
}

// ReleaseByTag looks up the release published for tagName.
func (client *Client) ReleaseByTag(executionContext context.Context, repository session.Repository, tagName string) (Release, error) {
	trimmedTag := strings.TrimSpace(tagName)
	if len(trimmedTag) == 0 {
		return Release{}, InvalidInputError{FieldName: tagFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var foundRelease *gh.RepositoryRelease
	executeError := client.execute(executionContext, releaseByTagOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		foundRelease, response, requestError = client.github.Repositories.GetReleaseByTag(executionContext, repository.Owner, repository.Name, trimmedTag)
		return response, requestError
	})
	if executeError != nil {
		return Release{}, executeError
	}
	return releaseFromGitHub(foundRelease), nil
}

// UploadReleaseAsset attaches the local file at assetPath to the release.
func (client *Client) UploadReleaseAsset(executionContext context.Context, repository session.Repository, releaseID int64, assetPath string) (ReleaseAsset, error) {
	if releaseID <= 0 {
		return ReleaseAsset{}, InvalidInputError{FieldName: releaseIDFieldNameConstant, Message: releaseIDMessageConstant}
	}

	fileInformation, statError := os.Stat(assetPath)
	if statError != nil {
		return ReleaseAsset{}, OperationError{Operation: uploadAssetOperationNameConstant, Cause: statError}
	}
	if fileInformation.IsDir() {
		return ReleaseAsset{}, InvalidInputError{FieldName: assetPathFieldNameConstant, Message: assetDirectoryMessageConstant}
	}

	uploadOptions := &gh.UploadOptions{
		Name:      filepath.Base(assetPath),
		MediaType: assetMediaTypeConstant,
	}

	var uploadedAsset *gh.ReleaseAsset
	executeError := client.execute(executionContext, uploadAssetOperationNameConstant, func() (*gh.Response, error) {
		// The transport closes the request body, so every attempt needs its own handle.
		assetFile, openError := os.Open(assetPath)
		if openError != nil {
			return nil, openError
		}
		defer assetFile.Close()

		var response *gh.Response
		var requestError error
		uploadedAsset, response, requestError = client.github.Repositories.UploadReleaseAsset(executionContext, repository.Owner, repository.Name, releaseID, uploadOptions, assetFile)
		return response, requestError
	})
	if executeError != nil {
		return ReleaseAsset{}, executeError
	}
	return assetFromGitHub(uploadedAsset), nil
}

// DeleteRelease removes the release; the tag itself is kept.
func (client *Client) DeleteRelease(executionContext context.Context, repository session.Repository, releaseID int64) error {
	if releaseID <= 0 {
		return InvalidInputError{FieldName: releaseIDFieldNameConstant, Message: releaseIDMessageConstant}
	}
	return client.execute(executionContext, deleteReleaseOperationNameConstant, func() (*gh.Response, error) {
		return client.github.Repositories.DeleteRelease(executionContext, repository.Owner, repository.Name, releaseID)
	})
}

func releaseFromGitHub(githubRelease *gh.RepositoryRelease) Release {
	if githubRelease == nil {
		return Release{}
	}
	release := Release{
		ID:          githubRelease.GetID(),
		TagName:     githubRelease.GetTagName(),
		Name:        githubRelease.GetName(),
		Body:        githubRelease.GetBody(),
		Draft:       githubRelease.GetDraft(),
		Prerelease:  githubRelease.GetPrerelease(),
		PublishedAt: githubRelease.GetPublishedAt().Time,
		HTMLURL:     githubRelease.GetHTMLURL(),
		Assets:      make([]ReleaseAsset, 0, len(githubRelease.Assets)),
	}
	for _, githubAsset := range githubRelease.Assets {
		if githubAsset == nil {
			continue
		}
		release.Assets = append(release.Assets, assetFromGitHub(githubAsset))
	}
	return release
}

func assetFromGitHub(githubAsset *gh.ReleaseAsset) ReleaseAsset {
	if githubAsset == nil {
		return ReleaseAsset{}
	}
	return ReleaseAsset{
		ID:          githubAsset.GetID(),
		Name:        githubAsset.GetName(),
		Size:        int64(githubAsset.GetSize()),
		DownloadURL: githubAsset.GetBrowserDownloadURL(),
	}
}
