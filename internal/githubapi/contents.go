package githubapi

import (
	"context"
	"sort"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/temirov/minigit/internal/session"
)

const (
	contentsOperationNameConstant     OperationName = "contents"
	fileSHAOperationNameConstant      OperationName = "file sha"
	putFileOperationNameConstant      OperationName = "put file"
	deleteFileOperationNameConstant   OperationName = "delete file"
	downloadFileOperationNameConstant OperationName = "download file"
	rawBlobOperationNameConstant      OperationName = "download blob"

	contentEncodingNoneConstant = "none"
	remotePathFieldNameConstant = "path"
	messageFieldNameConstant    = "message"
	shaFieldNameConstant        = "sha"
)

// NodeKind identifies the type of a repository content entry.
type NodeKind string

// Known content kinds reported by the contents API.
const (
	NodeKindFile      NodeKind = "file"
	NodeKindDirectory NodeKind = "dir"
	NodeKindSymlink   NodeKind = "symlink"
	NodeKindSubmodule NodeKind = "submodule"
)

// Entry describes one repository path.
type Entry struct {
	Kind        NodeKind `json:"type" yaml:"type"`
	Name        string   `json:"name" yaml:"name"`
	Path        string   `json:"path" yaml:"path"`
	SHA         string   `json:"sha" yaml:"sha"`
	Size        int64    `json:"size" yaml:"size"`
	DownloadURL string   `json:"download_url,omitempty" yaml:"download_url,omitempty"`
}

// IsDirectory reports whether the entry is a directory.
func (entry Entry) IsDirectory() bool {
	return entry.Kind == NodeKindDirectory
}

// Node is a normalized contents API answer: a single entry for files and
// the directory itself plus its ordered children for directories.
type Node struct {
	Entry    `yaml:",inline"`
	Children []Entry `json:"children,omitempty" yaml:"children,omitempty"`
}

// Contents fetches the node at remotePath; an empty path addresses the repository root.
func (client *Client) Contents(executionContext context.Context, repository session.Repository, reference string, remotePath string) (Node, error) {
	normalizedPath := session.NormalizeRemotePath(remotePath)

	var fileContent *gh.RepositoryContent
	var directoryContent []*gh.RepositoryContent
	executeError := client.execute(executionContext, contentsOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		fileContent, directoryContent, response, requestError = client.github.Repositories.GetContents(
			executionContext,
			repository.Owner,
			repository.Name,
			normalizedPath,
			contentGetOptions(reference),
		)
		return response, requestError
	})
	if executeError != nil {
		return Node{}, executeError
	}

	if fileContent != nil {
		return Node{Entry: entryFromContent(fileContent)}, nil
	}

	children := make([]Entry, 0, len(directoryContent))
	for _, childContent := range directoryContent {
		if childContent == nil {
			continue
		}
		children = append(children, entryFromContent(childContent))
	}
	SortEntries(children)

	return Node{
		Entry: Entry{
			Kind: NodeKindDirectory,
			Name: session.RemoteBase(normalizedPath),
			Path: normalizedPath,
		},
		Children: children,
	}, nil
}

// FileSHA returns the blob SHA at remotePath or an empty string when the path does not exist.
func (client *Client) FileSHA(executionContext context.Context, repository session.Repository, reference string, remotePath string) (string, error) {
	normalizedPath := session.NormalizeRemotePath(remotePath)
	if len(normalizedPath) == 0 {
		return "", InvalidInputError{FieldName: remotePathFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var fileContent *gh.RepositoryContent
	executeError := client.execute(executionContext, fileSHAOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		fileContent, _, response, requestError = client.github.Repositories.GetContents(
			executionContext,
			repository.Owner,
			repository.Name,
			normalizedPath,
			contentGetOptions(reference),
		)
		return response, requestError
	})
	if executeError != nil {
		if IsNotFound(executeError) {
			return "", nil
		}
		return "", executeError
	}
	if fileContent == nil {
		return "", OperationError{Operation: fileSHAOperationNameConstant, Cause: ErrPathIsDirectory}
	}
	return fileContent.GetSHA(), nil
}

// PutFile creates remotePath, or replaces it when sha names the current blob.
// A conflict on a replacement is returned without retrying, since the same sha
// would conflict again.
func (client *Client) PutFile(executionContext context.Context, repository session.Repository, branch string, remotePath string, content []byte, sha string, message string) error {
	normalizedPath := session.NormalizeRemotePath(remotePath)
	if len(normalizedPath) == 0 {
		return InvalidInputError{FieldName: remotePathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(message)) == 0 {
		return InvalidInputError{FieldName: messageFieldNameConstant, Message: requiredValueMessageConstant}
	}

	fileOptions := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(message),
		Content: content,
	}
	if len(sha) > 0 {
		fileOptions.SHA = gh.Ptr(sha)
	}
	if len(branch) > 0 {
		fileOptions.Branch = gh.Ptr(branch)
	}

	policy := retryPolicy{returnConflicts: len(sha) > 0}
	return client.executeWithPolicy(executionContext, putFileOperationNameConstant, policy, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		if len(sha) > 0 {
			_, response, requestError = client.github.Repositories.UpdateFile(executionContext, repository.Owner, repository.Name, normalizedPath, fileOptions)
		} else {
			_, response, requestError = client.github.Repositories.CreateFile(executionContext, repository.Owner, repository.Name, normalizedPath, fileOptions)
		}
		return response, requestError
	})
}

// DeleteFile removes the blob sha at remotePath.
func (client *Client) DeleteFile(executionContext context.Context, repository session.Repository, branch string, remotePath string, sha string, message string) error {
	normalizedPath := session.NormalizeRemotePath(remotePath)
	if len(normalizedPath) == 0 {
		return InvalidInputError{FieldName: remotePathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(sha) == 0 {
		return InvalidInputError{FieldName: shaFieldNameConstant, Message: requiredValueMessageConstant}
	}

	fileOptions := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(message),
		SHA:     gh.Ptr(sha),
	}
	if len(branch) > 0 {
		fileOptions.Branch = gh.Ptr(branch)
	}

	return client.execute(executionContext, deleteFileOperationNameConstant, func() (*gh.Response, error) {
		_, response, requestError := client.github.Repositories.DeleteFile(executionContext, repository.Owner, repository.Name, normalizedPath, fileOptions)
		return response, requestError
	})
}

// DownloadFile returns the decoded bytes of the file at remotePath. Files above the
// contents API inline limit are fetched through the raw blob endpoint.
func (client *Client) DownloadFile(executionContext context.Context, repository session.Repository, reference string, remotePath string) ([]byte, error) {
	normalizedPath := session.NormalizeRemotePath(remotePath)
	if len(normalizedPath) == 0 {
		return nil, InvalidInputError{FieldName: remotePathFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var fileContent *gh.RepositoryContent
	executeError := client.execute(executionContext, downloadFileOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		fileContent, _, response, requestError = client.github.Repositories.GetContents(
			executionContext,
			repository.Owner,
			repository.Name,
			normalizedPath,
			contentGetOptions(reference),
		)
		return response, requestError
	})
	if executeError != nil {
		return nil, executeError
	}
	if fileContent == nil {
		return nil, OperationError{Operation: downloadFileOperationNameConstant, Cause: ErrPathIsDirectory}
	}
	if NodeKind(fileContent.GetType()) != NodeKindFile {
		return nil, OperationError{Operation: downloadFileOperationNameConstant, Cause: ErrPathIsNotFile}
	}

	if fileContent.GetEncoding() == contentEncodingNoneConstant || len(inlineContent(fileContent)) == 0 {
		if fileContent.GetSize() == 0 {
			return []byte{}, nil
		}
		return client.rawBlob(executionContext, repository, fileContent.GetSHA())
	}

	decodedContent, decodeError := fileContent.GetContent()
	if decodeError != nil {
		return nil, OperationError{Operation: downloadFileOperationNameConstant, Cause: decodeError}
	}
	return []byte(decodedContent), nil
}

func inlineContent(fileContent *gh.RepositoryContent) string {
	if fileContent.Content == nil {
		return ""
	}
	return *fileContent.Content
}

func (client *Client) rawBlob(executionContext context.Context, repository session.Repository, sha string) ([]byte, error) {
	var blobContent []byte
	executeError := client.execute(executionContext, rawBlobOperationNameConstant, func() (*gh.Response, error) {
		var response *gh.Response
		var requestError error
		blobContent, response, requestError = client.github.Git.GetBlobRaw(executionContext, repository.Owner, repository.Name, sha)
		return response, requestError
	})
	if executeError != nil {
		return nil, executeError
	}
	return blobContent, nil
}

// SortEntries orders directories first and then by case-insensitive name.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(leftIndex int, rightIndex int) bool {
		leftDirectory := entries[leftIndex].IsDirectory()
		rightDirectory := entries[rightIndex].IsDirectory()
		if leftDirectory != rightDirectory {
			return leftDirectory
		}
		return strings.ToLower(entries[leftIndex].Name) < strings.ToLower(entries[rightIndex].Name)
	})
}

func contentGetOptions(reference string) *gh.RepositoryContentGetOptions {
	if len(reference) == 0 {
		return nil
	}
	return &gh.RepositoryContentGetOptions{Ref: reference}
}

func entryFromContent(content *gh.RepositoryContent) Entry {
	return Entry{
		Kind:        NodeKind(content.GetType()),
		Name:        content.GetName(),
		Path:        content.GetPath(),
		SHA:         content.GetSHA(),
		Size:        int64(content.GetSize()),
		DownloadURL: content.GetDownloadURL(),
	}
}
