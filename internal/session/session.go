// Package session carries the explicit per-invocation context shared by all
// commands: the target repository, the local working directory and the
// remote directory inside the repository.
package session

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	repositorySeparatorConstant   = "/"
	remoteRootDisplayConstant     = "(root)"
	repositoryFormatErrorTemplate = "repository %q must use the owner/name form"
	missingRepositoryErrorMessage = "repository not configured; pass --repo owner/name or set github.repository"
)

// ErrRepositoryNotConfigured indicates no repository was supplied.
var ErrRepositoryNotConfigured = errors.New(missingRepositoryErrorMessage)

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

// ParseRepository parses the owner/name form, tolerating surrounding whitespace and a trailing ".git".
func ParseRepository(value string) (Repository, error) {
	trimmedValue := strings.TrimSuffix(strings.TrimSpace(value), ".git")
	if len(trimmedValue) == 0 {
		return Repository{}, ErrRepositoryNotConfigured
	}
	components := strings.Split(trimmedValue, repositorySeparatorConstant)
	if len(components) != 2 || len(strings.TrimSpace(components[0])) == 0 || len(strings.TrimSpace(components[1])) == 0 {
		return Repository{}, fmt.Errorf(repositoryFormatErrorTemplate, value)
	}
	return Repository{Owner: strings.TrimSpace(components[0]), Name: strings.TrimSpace(components[1])}, nil
}

// FullName renders owner/name.
func (repository Repository) FullName() string {
	return repository.Owner + repositorySeparatorConstant + repository.Name
}

// String implements fmt.Stringer.
func (repository Repository) String() string {
	return repository.FullName()
}

// Session is the explicit state handed to services in place of global UI state.
type Session struct {
	Repository      Repository
	LocalDirectory  string
	RemoteDirectory string
	// Branch targets contents operations; empty means the default branch.
	Branch string
}

// NormalizeRemotePath converts a user-supplied remote path into the contents API form:
// forward slashes, no leading or trailing separators, no empty or "." segments.
func NormalizeRemotePath(remotePath string) string {
	slashedPath := strings.ReplaceAll(strings.TrimSpace(remotePath), "\\", repositorySeparatorConstant)
	cleanedPath := path.Clean(repositorySeparatorConstant + slashedPath)
	return strings.Trim(cleanedPath, repositorySeparatorConstant)
}

// RemoteJoin appends name to directory, treating an empty directory as the repository root.
func RemoteJoin(directory string, name string) string {
	normalizedDirectory := NormalizeRemotePath(directory)
	normalizedName := NormalizeRemotePath(name)
	if len(normalizedDirectory) == 0 {
		return normalizedName
	}
	if len(normalizedName) == 0 {
		return normalizedDirectory
	}
	return normalizedDirectory + repositorySeparatorConstant + normalizedName
}

// RemoteParent returns the parent directory of remotePath; the root's parent is the root.
func RemoteParent(remotePath string) string {
	normalizedPath := NormalizeRemotePath(remotePath)
	separatorIndex := strings.LastIndex(normalizedPath, repositorySeparatorConstant)
	if separatorIndex < 0 {
		return ""
	}
	return normalizedPath[:separatorIndex]
}

// RemoteBase returns the final segment of remotePath.
func RemoteBase(remotePath string) string {
	normalizedPath := NormalizeRemotePath(remotePath)
	if len(normalizedPath) == 0 {
		return ""
	}
	return path.Base(normalizedPath)
}

// ResolveRemote resolves a path typed relative to the session's remote directory.
// Absolute paths (leading "/") start from the repository root and ".." climbs toward it.
func (session Session) ResolveRemote(candidatePath string) string {
	trimmedPath := strings.TrimSpace(candidatePath)
	if strings.HasPrefix(trimmedPath, repositorySeparatorConstant) {
		return NormalizeRemotePath(trimmedPath)
	}
	return NormalizeRemotePath(NormalizeRemotePath(session.RemoteDirectory) + repositorySeparatorConstant + trimmedPath)
}

// DisplayRemote renders a remote path for humans.
func DisplayRemote(remotePath string) string {
	normalizedPath := NormalizeRemotePath(remotePath)
	if len(normalizedPath) == 0 {
		return remoteRootDisplayConstant
	}
	return normalizedPath
}
