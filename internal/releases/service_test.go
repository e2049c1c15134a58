package releases_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/minigit/internal/githubapi"
	"github.com/temirov/minigit/internal/prompt"
	"github.com/temirov/minigit/internal/releases"
	"github.com/temirov/minigit/internal/session"
)

const releasesSubtestNameTemplateConstant = "%d_%s"

var releasesRepository = session.Repository{Owner: "octo", Name: "tool"}

type stubReleasesClient struct {
	releases      []githubapi.Release
	created       []githubapi.ReleaseRequest
	uploadedPaths []string
	deletedIDs    []int64
	uploadError   error
	createError   error
}

func (client *stubReleasesClient) ListReleases(context.Context, session.Repository) ([]githubapi.Release, error) {
	return client.releases, nil
}

func (client *stubReleasesClient) CreateRelease(_ context.Context, _ session.Repository, request githubapi.ReleaseRequest) (githubapi.Release, error) {
	client.created = append(client.created, request)
	if client.createError != nil {
		return githubapi.Release{}, client.createError
	}
	return githubapi.Release{ID: 77, TagName: request.TagName, Name: request.Name, Body: request.Body, Draft: request.Draft, Prerelease: request.Prerelease, HTMLURL: "https://github.com/octo/tool/releases/tag/" + request.TagName}, nil
}

func (client *stubReleasesClient) ReleaseByTag(_ context.Context, _ session.Repository, tagName string) (githubapi.Release, error) {
	for _, release := range client.releases {
		if release.TagName == tagName {
			return release, nil
		}
	}
	return githubapi.Release{}, githubapi.OperationError{Operation: "get release by tag", Cause: &githubapi.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}}
}

func (client *stubReleasesClient) UploadReleaseAsset(_ context.Context, _ session.Repository, _ int64, assetPath string) (githubapi.ReleaseAsset, error) {
	client.uploadedPaths = append(client.uploadedPaths, assetPath)
	if client.uploadError != nil {
		return githubapi.ReleaseAsset{}, client.uploadError
	}
	return githubapi.ReleaseAsset{ID: int64(len(client.uploadedPaths)), Name: filepath.Base(assetPath), Size: 2048}, nil
}

func (client *stubReleasesClient) DeleteRelease(_ context.Context, _ session.Repository, releaseID int64) error {
	client.deletedIDs = append(client.deletedIDs, releaseID)
	return nil
}

func newReleasesService(testInstance *testing.T, client *stubReleasesClient) *releases.Service {
	testInstance.Helper()
	service, serviceError := releases.NewService(client, releasesRepository, releases.DefaultConfiguration(), nil)
	require.NoError(testInstance, serviceError)
	return service
}

func writeAsset(testInstance *testing.T, name string) string {
	testInstance.Helper()
	assetPath := filepath.Join(testInstance.TempDir(), name)
	require.NoError(testInstance, os.WriteFile(assetPath, []byte("payload"), 0o600))
	return assetPath
}

func TestListFormatsSummaries(testInstance *testing.T) {
	client := &stubReleasesClient{releases: []githubapi.Release{
		{ID: 2, TagName: "v2.0.0", Name: "Second", PublishedAt: time.Date(2024, time.March, 9, 17, 45, 0, 0, time.UTC), Assets: []githubapi.ReleaseAsset{{Name: "tool.tar.gz"}, {Name: "tool.zip"}}},
		{ID: 3, TagName: "v3.0.0-rc1", Name: "Draft", Draft: true},
	}}
	service := newReleasesService(testInstance, client)

	summaries, listError := service.List(context.Background())
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []releases.Summary{
		{ID: 2, Tag: "v2.0.0", Name: "Second", Published: "2024-03-09", Assets: []string{"tool.tar.gz", "tool.zip"}},
		{ID: 3, Tag: "v3.0.0-rc1", Name: "Draft", Draft: true, Assets: []string{}},
	}, summaries)
}

func TestPublish(testInstance *testing.T) {
	uploadFailure := errors.New("upload broke")
	testCases := []struct {
		name            string
		options         func(testInstance *testing.T) releases.PublishOptions
		uploadError     error
		expectedError   error
		expectedCreate  *githubapi.ReleaseRequest
		expectedUploads int
	}{
		{
			name: "defaults_name_and_body",
			options: func(*testing.T) releases.PublishOptions {
				return releases.PublishOptions{TagName: " v1.0.0 "}
			},
			expectedCreate: &githubapi.ReleaseRequest{TagName: "v1.0.0", Name: "Release v1.0.0", Body: "Published via minigit"},
		},
		{
			name: "explicit_fields_and_assets",
			options: func(testInstance *testing.T) releases.PublishOptions {
				return releases.PublishOptions{TagName: "v1.1.0", Name: "Spring", Body: "notes", Prerelease: true, AssetPaths: []string{writeAsset(testInstance, "a.bin"), writeAsset(testInstance, "b.bin")}}
			},
			expectedCreate:  &githubapi.ReleaseRequest{TagName: "v1.1.0", Name: "Spring", Body: "notes", Prerelease: true},
			expectedUploads: 2,
		},
		{
			name: "missing_asset_blocks_creation",
			options: func(testInstance *testing.T) releases.PublishOptions {
				return releases.PublishOptions{TagName: "v1.2.0", AssetPaths: []string{filepath.Join(testInstance.TempDir(), "absent.zip")}}
			},
			expectedError: os.ErrNotExist,
		},
		{
			name: "directory_asset_blocks_creation",
			options: func(testInstance *testing.T) releases.PublishOptions {
				return releases.PublishOptions{TagName: "v1.2.0", AssetPaths: []string{testInstance.TempDir()}}
			},
		},
		{
			name: "missing_tag",
			options: func(*testing.T) releases.PublishOptions {
				return releases.PublishOptions{TagName: "  "}
			},
			expectedError: releases.ErrTagRequired,
		},
		{
			name: "upload_failure_keeps_release",
			options: func(testInstance *testing.T) releases.PublishOptions {
				return releases.PublishOptions{TagName: "v1.3.0", AssetPaths: []string{writeAsset(testInstance, "c.bin")}}
			},
			uploadError:     uploadFailure,
			expectedError:   uploadFailure,
			expectedCreate:  &githubapi.ReleaseRequest{TagName: "v1.3.0", Name: "Release v1.3.0", Body: "Published via minigit"},
			expectedUploads: 1,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(releasesSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			client := &stubReleasesClient{uploadError: testCase.uploadError}
			service := newReleasesService(testInstance, client)

			release, publishError := service.Publish(context.Background(), testCase.options(testInstance))
			switch {
			case testCase.expectedError != nil:
				require.ErrorIs(testInstance, publishError, testCase.expectedError)
			case testCase.expectedCreate == nil:
				require.Error(testInstance, publishError)
			default:
				require.NoError(testInstance, publishError)
				require.Len(testInstance, release.Assets, testCase.expectedUploads)
			}

			if testCase.expectedCreate == nil {
				require.Empty(testInstance, client.created)
			} else {
				require.Equal(testInstance, []githubapi.ReleaseRequest{*testCase.expectedCreate}, client.created)
				require.Equal(testInstance, int64(77), release.ID)
			}
			require.Len(testInstance, client.uploadedPaths, testCase.expectedUploads)
		})
	}
}

func TestResolveByIDOrTag(testInstance *testing.T) {
	client := &stubReleasesClient{releases: []githubapi.Release{
		{ID: 10, TagName: "v1.0.0"},
		{ID: 11, TagName: "2024"},
	}}
	service := newReleasesService(testInstance, client)

	testCases := []struct {
		name          string
		identifier    string
		expectedID    int64
		expectedError error
	}{
		{name: "numeric_id", identifier: "10", expectedID: 10},
		{name: "tag", identifier: "v1.0.0", expectedID: 10},
		{name: "numeric_tag_without_matching_id", identifier: "2024", expectedID: 11},
		{name: "unknown", identifier: "v9", expectedError: releases.ErrReleaseNotFound},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(releasesSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			release, resolveError := service.Resolve(context.Background(), testCase.identifier)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, resolveError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, resolveError)
			require.Equal(testInstance, testCase.expectedID, release.ID)
		})
	}

	require.NoError(testInstance, service.Delete(context.Background(), githubapi.Release{ID: 10, TagName: "v1.0.0"}))
	require.Equal(testInstance, []int64{10}, client.deletedIDs)
}

func TestReleasesCommands(testInstance *testing.T) {
	newBuilder := func(client *stubReleasesClient, terminal bool) releases.CommandBuilder {
		return releases.CommandBuilder{
			SessionProvider: func() (session.Session, error) {
				return session.Session{Repository: releasesRepository}, nil
			},
			ClientProvider: func(context.Context) (releases.GitHubClient, error) { return client, nil },
			ConfigurationProvider: func() releases.Configuration {
				return releases.Configuration{Body: "configured body", Draft: true}
			},
			TerminalDetector: func(io.Reader) bool { return terminal },
		}
	}
	run := func(testInstance *testing.T, builder releases.CommandBuilder, input string, arguments ...string) (string, error) {
		command, buildError := builder.Build()
		require.NoError(testInstance, buildError)
		outputBuffer := &bytes.Buffer{}
		command.SetArgs(arguments)
		command.SetIn(strings.NewReader(input))
		command.SetOut(outputBuffer)
		command.SetErr(io.Discard)
		command.SilenceUsage = true
		command.SilenceErrors = true
		executionError := command.ExecuteContext(context.Background())
		return outputBuffer.String(), executionError
	}

	testInstance.Run("publish_uses_configured_defaults", func(testInstance *testing.T) {
		client := &stubReleasesClient{}
		assetPath := writeAsset(testInstance, "tool.tar.gz")
		outputText, executionError := run(testInstance, newBuilder(client, false), "", "publish", "v2.1.0", "--asset", assetPath, "--draft=false")
		require.NoError(testInstance, executionError)
		require.Equal(testInstance, []githubapi.ReleaseRequest{{TagName: "v2.1.0", Name: "Release v2.1.0", Body: "configured body"}}, client.created)
		require.Contains(testInstance, outputText, "published v2.1.0")
		require.Contains(testInstance, outputText, "asset tool.tar.gz (2.0 KiB)")
	})

	testInstance.Run("list_table", func(testInstance *testing.T) {
		client := &stubReleasesClient{releases: []githubapi.Release{{ID: 5, TagName: "v0.5.0", Name: "Early", Draft: true}}}
		outputText, executionError := run(testInstance, newBuilder(client, false), "", "ls")
		require.NoError(testInstance, executionError)
		require.Contains(testInstance, outputText, "v0.5.0")
		require.Contains(testInstance, outputText, "draft")
	})

	testInstance.Run("delete_requires_confirmation", func(testInstance *testing.T) {
		client := &stubReleasesClient{releases: []githubapi.Release{{ID: 5, TagName: "v0.5.0"}}}
		_, refusedError := run(testInstance, newBuilder(client, false), "", "rm", "v0.5.0")
		require.ErrorIs(testInstance, refusedError, prompt.ErrConfirmationRequired)
		require.Empty(testInstance, client.deletedIDs)

		outputText, confirmedError := run(testInstance, newBuilder(client, true), "y\n", "rm", "5")
		require.NoError(testInstance, confirmedError)
		require.Equal(testInstance, []int64{5}, client.deletedIDs)
		require.Contains(testInstance, outputText, "deleted release v0.5.0 (id 5)")
	})
}
