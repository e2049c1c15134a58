package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/minigit/internal/githubapi"
	"github.com/temirov/minigit/internal/ignore"
	"github.com/temirov/minigit/internal/session"
)

const (
	uploadMessageTemplateConstant = "Upload %s"
	deleteMessageTemplateConstant = "Delete %s"

	localFilePermissionsConstant      os.FileMode = 0o644
	localDirectoryPermissionsConstant os.FileMode = 0o755

	logFieldLocalPathConstant  = "local_path"
	logFieldRemotePathConstant = "remote_path"
	logFieldSucceededConstant  = "succeeded"
	logFieldFailedConstant     = "failed"
	logFieldSkippedConstant    = "skipped"
	logFieldPatternsConstant   = "patterns"
	logFieldWorkersConstant    = "workers"
	logFieldAttemptConstant    = "attempt"

	maxConflictRefreshesConstant = 3

	excludedPathMessageConstant      = "excluded from upload"
	irregularPathMessageConstant     = "skipping non-regular file"
	uploadStartedMessageConstant     = "directory upload started"
	uploadCompletedMessageConstant   = "directory upload completed"
	deleteCompletedMessageConstant   = "remote delete completed"
	downloadCompletedMessageConstant = "download completed"
	submoduleSkippedMessageConstant  = "skipping submodule"
	conflictRetryMessageConstant     = "upload conflicted, refreshing sha"
	fileErrorTemplateConstant        = "%s %s: %v"
	notDirectoryTemplateConstant     = "%s is not a directory"
	missingLocalPathTemplateConstant = "local path %s: %w"
)

var (
	// ErrDestinationExists indicates a download would overwrite local files without confirmation.
	ErrDestinationExists = errors.New("destination already exists")
	// ErrRootDeletion indicates an attempt to delete the repository root through the contents API.
	ErrRootDeletion = errors.New("refusing to delete the repository root")
)

// GitHubClient is the subset of the GitHub API used by transfers.
type GitHubClient interface {
	Contents(executionContext context.Context, repository session.Repository, reference string, remotePath string) (githubapi.Node, error)
	FileSHA(executionContext context.Context, repository session.Repository, reference string, remotePath string) (string, error)
	PutFile(executionContext context.Context, repository session.Repository, branch string, remotePath string, content []byte, sha string, message string) error
	DeleteFile(executionContext context.Context, repository session.Repository, branch string, remotePath string, sha string, message string) error
	DownloadFile(executionContext context.Context, repository session.Repository, reference string, remotePath string) ([]byte, error)
}

// OverwriteGuard approves overwriting existing local files; a nil guard refuses.
type OverwriteGuard func(existingPaths []string) error

// ServiceOptions tunes a transfer service.
type ServiceOptions struct {
	IgnoreFileName string
	AlwaysExclude  []string
	Workers        int
	Reporter       ProgressReporter
	Logger         *zap.Logger
}

// FileError records the failure of one path in a bulk operation.
type FileError struct {
	Operation string
	Path      string
	Cause     error
}

// Error describes the failed path.
func (fileError FileError) Error() string {
	return fmt.Sprintf(fileErrorTemplateConstant, fileError.Operation, fileError.Path, fileError.Cause)
}

// Unwrap exposes the underlying cause.
func (fileError FileError) Unwrap() error {
	return fileError.Cause
}

// Result summarizes a transfer.
type Result struct {
	Succeeded int      `json:"succeeded" yaml:"succeeded"`
	Failed    int      `json:"failed" yaml:"failed"`
	Skipped   int      `json:"skipped" yaml:"skipped"`
	Bytes     int64    `json:"bytes" yaml:"bytes"`
	Paths     []string `json:"paths,omitempty" yaml:"paths,omitempty"`
	Errors    []error  `json:"-" yaml:"-"`
}

// Err joins every recorded failure; nil when nothing failed.
func (result Result) Err() error {
	return errors.Join(result.Errors...)
}

// LocalEntry describes one local directory entry.
type LocalEntry struct {
	Name        string `json:"name" yaml:"name"`
	Path        string `json:"path" yaml:"path"`
	IsDirectory bool   `json:"is_directory" yaml:"is_directory"`
	Size        int64  `json:"size" yaml:"size"`
	Excluded    bool   `json:"excluded" yaml:"excluded"`
}

// Service moves files between the local filesystem and the repository of a session.
type Service struct {
	client         GitHubClient
	session        session.Session
	ignoreFileName string
	alwaysExclude  []string
	workers        int
	reporter       ProgressReporter
	logger         *zap.Logger
}

type uploadJob struct {
	localPath  string
	remotePath string
	size       int64
}

type remoteFile struct {
	entry     githubapi.Entry
	localPath string
}

// NewService constructs a transfer service bound to currentSession.
func NewService(client GitHubClient, currentSession session.Session, options ServiceOptions) (*Service, error) {
	if client == nil {
		return nil, errors.New("transfer service requires a GitHub client")
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ignoreFileName := strings.TrimSpace(options.IgnoreFileName)
	if len(ignoreFileName) == 0 {
		ignoreFileName = ignore.DefaultIgnoreFileName
	}
	return &Service{
		client:         client,
		session:        currentSession,
		ignoreFileName: ignoreFileName,
		alwaysExclude:  append([]string(nil), options.AlwaysExclude...),
		workers:        clampWorkers(options.Workers),
		reporter:       options.Reporter,
		logger:         logger,
	}, nil
}

// Upload sends a file or a directory tree to remoteDirectory.
func (service *Service) Upload(executionContext context.Context, localPath string, remoteDirectory string) (Result, error) {
	fileInformation, statError := os.Stat(localPath)
	if statError != nil {
		return Result{}, fmt.Errorf(missingLocalPathTemplateConstant, localPath, statError)
	}
	if fileInformation.IsDir() {
		return service.UploadDirectory(executionContext, localPath, remoteDirectory)
	}
	return service.UploadFile(executionContext, localPath, remoteDirectory)
}

// UploadFile sends one file to remoteDirectory/<basename>, replacing an existing blob.
func (service *Service) UploadFile(executionContext context.Context, localPath string, remoteDirectory string) (Result, error) {
	fileInformation, statError := os.Stat(localPath)
	if statError != nil {
		return Result{}, fmt.Errorf(missingLocalPathTemplateConstant, localPath, statError)
	}
	if fileInformation.IsDir() {
		return Result{}, fmt.Errorf(missingLocalPathTemplateConstant, localPath, githubapi.ErrPathIsDirectory)
	}

	job := uploadJob{
		localPath:  localPath,
		remotePath: session.RemoteJoin(remoteDirectory, filepath.Base(localPath)),
		size:       fileInformation.Size(),
	}
	result := service.runUploads(executionContext, []uploadJob{job}, 0)
	return result, result.Err()
}

// UploadDirectory sends every non-excluded file below localDirectory to
// remoteDirectory/<basename(localDirectory)>/<relative path>. Individual failures are
// recorded and do not stop the remaining uploads.
func (service *Service) UploadDirectory(executionContext context.Context, localDirectory string, remoteDirectory string) (Result, error) {
	absoluteDirectory, absoluteError := filepath.Abs(localDirectory)
	if absoluteError != nil {
		return Result{}, fmt.Errorf(missingLocalPathTemplateConstant, localDirectory, absoluteError)
	}

	filter := service.newFilter(absoluteDirectory)
	remoteRoot := session.RemoteJoin(remoteDirectory, filepath.Base(absoluteDirectory))

	jobs, skipped, walkError := service.planUploads(filter, absoluteDirectory, remoteRoot)
	if walkError != nil {
		return Result{}, walkError
	}

	service.logger.Info(
		uploadStartedMessageConstant,
		zap.String(logFieldLocalPathConstant, absoluteDirectory),
		zap.String(logFieldRemotePathConstant, session.DisplayRemote(remoteRoot)),
		zap.Strings(logFieldPatternsConstant, filter.Patterns()),
		zap.Int(logFieldWorkersConstant, service.workers),
	)

	result := service.runUploads(executionContext, jobs, skipped)
	service.logger.Info(
		uploadCompletedMessageConstant,
		zap.Int(logFieldSucceededConstant, result.Succeeded),
		zap.Int(logFieldFailedConstant, result.Failed),
		zap.Int(logFieldSkippedConstant, result.Skipped),
	)
	return result, result.Err()
}

func (service *Service) newFilter(rootDirectory string) *ignore.Filter {
	return newFilter(rootDirectory, ServiceOptions{
		IgnoreFileName: service.ignoreFileName,
		AlwaysExclude:  service.alwaysExclude,
		Logger:         service.logger,
	})
}

// newFilter reads the ignore file afresh; filters are never reused across transfers.
func newFilter(rootDirectory string, options ServiceOptions) *ignore.Filter {
	return ignore.NewFilterWithOptions(rootDirectory, ignore.FilterOptions{
		IgnoreFileName:     options.IgnoreFileName,
		AdditionalPatterns: options.AlwaysExclude,
		Logger:             options.Logger,
	})
}

// planUploads walks rootDirectory, pruning excluded directories.
func (service *Service) planUploads(filter *ignore.Filter, rootDirectory string, remoteRoot string) ([]uploadJob, int, error) {
	var jobs []uploadJob
	skipped := 0
	walkError := filepath.WalkDir(rootDirectory, func(currentPath string, entry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return entryError
		}
		if currentPath == rootDirectory {
			return nil
		}

		relativePath, relativeError := filepath.Rel(rootDirectory, currentPath)
		if relativeError != nil {
			return relativeError
		}
		slashedPath := filepath.ToSlash(relativePath)

		if filter.IsExcluded(slashedPath) {
			service.logger.Debug(excludedPathMessageConstant, zap.String(logFieldLocalPathConstant, slashedPath))
			skipped++
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}

		fileInformation, statError := os.Stat(currentPath)
		if statError != nil || !fileInformation.Mode().IsRegular() {
			service.logger.Debug(irregularPathMessageConstant, zap.String(logFieldLocalPathConstant, slashedPath))
			skipped++
			return nil
		}

		jobs = append(jobs, uploadJob{
			localPath:  currentPath,
			remotePath: session.RemoteJoin(remoteRoot, slashedPath),
			size:       fileInformation.Size(),
		})
		return nil
	})
	if walkError != nil {
		return nil, 0, walkError
	}
	return jobs, skipped, nil
}

func (service *Service) runUploads(executionContext context.Context, jobs []uploadJob, skipped int) Result {
	var totalBytes int64
	for _, job := range jobs {
		totalBytes += job.size
	}

	tracker := newProgressTracker(len(jobs), totalBytes, service.reporter)
	collector := &resultCollector{result: Result{Skipped: skipped}}

	var group errgroup.Group
	group.SetLimit(service.workers)
	for _, job := range jobs {
		currentJob := job
		group.Go(func() error {
			uploadError := service.uploadOne(executionContext, currentJob)
			if uploadError != nil {
				collector.fail(FileError{Operation: "upload", Path: currentJob.localPath, Cause: uploadError})
			} else {
				collector.succeed(currentJob.remotePath, currentJob.size)
			}
			tracker.advance(currentJob.remotePath, currentJob.size, uploadError == nil)
			return nil
		})
	}
	_ = group.Wait()

	return collector.snapshot()
}

func (service *Service) uploadOne(executionContext context.Context, job uploadJob) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}

	content, readError := os.ReadFile(job.localPath)
	if readError != nil {
		return readError
	}

	message := fmt.Sprintf(uploadMessageTemplateConstant, filepath.Base(job.localPath))
	existingSHA, shaError := service.client.FileSHA(executionContext, service.session.Repository, service.session.Branch, job.remotePath)
	if shaError != nil {
		return shaError
	}

	putError := service.client.PutFile(executionContext, service.session.Repository, service.session.Branch, job.remotePath, content, existingSHA, message)
	for refreshCount := 0; refreshCount < maxConflictRefreshesConstant && githubapi.IsConflict(putError); refreshCount++ {
		service.logger.Debug(conflictRetryMessageConstant, zap.String(logFieldRemotePathConstant, job.remotePath), zap.Int(logFieldAttemptConstant, refreshCount+1))
		refreshedSHA, refreshError := service.client.FileSHA(executionContext, service.session.Repository, service.session.Branch, job.remotePath)
		if refreshError != nil {
			return refreshError
		}
		putError = service.client.PutFile(executionContext, service.session.Repository, service.session.Branch, job.remotePath, content, refreshedSHA, message)
	}
	return putError
}

// Delete removes a remote file, or every file below a remote directory.
func (service *Service) Delete(executionContext context.Context, remotePath string) (Result, error) {
	normalizedPath := session.NormalizeRemotePath(remotePath)
	if len(normalizedPath) == 0 {
		return Result{}, ErrRootDeletion
	}

	node, contentsError := service.client.Contents(executionContext, service.session.Repository, service.session.Branch, normalizedPath)
	if contentsError != nil {
		return Result{}, contentsError
	}

	var targets []githubapi.Entry
	skipped := 0
	if node.IsDirectory() {
		var collectError error
		targets, skipped, collectError = service.collectRemoteFiles(executionContext, node)
		if collectError != nil {
			return Result{}, collectError
		}
	} else {
		targets = []githubapi.Entry{node.Entry}
	}

	tracker := newProgressTracker(len(targets), 0, service.reporter)
	collector := &resultCollector{result: Result{Skipped: skipped}}

	var group errgroup.Group
	group.SetLimit(service.workers)
	for _, target := range targets {
		currentTarget := target
		group.Go(func() error {
			deleteError := executionContext.Err()
			if deleteError == nil {
				message := fmt.Sprintf(deleteMessageTemplateConstant, currentTarget.Name)
				deleteError = service.client.DeleteFile(executionContext, service.session.Repository, service.session.Branch, currentTarget.Path, currentTarget.SHA, message)
			}
			if deleteError != nil {
				collector.fail(FileError{Operation: "delete", Path: currentTarget.Path, Cause: deleteError})
			} else {
				collector.succeed(currentTarget.Path, currentTarget.Size)
			}
			tracker.advance(currentTarget.Path, 0, deleteError == nil)
			return nil
		})
	}
	_ = group.Wait()

	result := collector.snapshot()
	service.logger.Info(
		deleteCompletedMessageConstant,
		zap.String(logFieldRemotePathConstant, normalizedPath),
		zap.Int(logFieldSucceededConstant, result.Succeeded),
		zap.Int(logFieldFailedConstant, result.Failed),
	)
	return result, result.Err()
}

// collectRemoteFiles lists every deletable or downloadable entry below directory.
func (service *Service) collectRemoteFiles(executionContext context.Context, directory githubapi.Node) ([]githubapi.Entry, int, error) {
	var files []githubapi.Entry
	skipped := 0
	pending := []githubapi.Node{directory}
	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]
		for _, child := range current.Children {
			switch child.Kind {
			case githubapi.NodeKindDirectory:
				childNode, contentsError := service.client.Contents(executionContext, service.session.Repository, service.session.Branch, child.Path)
				if contentsError != nil {
					return nil, 0, contentsError
				}
				pending = append(pending, childNode)
			case githubapi.NodeKindSubmodule:
				service.logger.Debug(submoduleSkippedMessageConstant, zap.String(logFieldRemotePathConstant, child.Path))
				skipped++
			default:
				files = append(files, child)
			}
		}
	}
	return files, skipped, nil
}

// Download copies a remote file to localDirectory/<name>, or a remote directory tree to
// localDirectory/<name>/... Existing local files are only replaced when guard approves.
func (service *Service) Download(executionContext context.Context, remotePath string, localDirectory string, guard OverwriteGuard) (Result, error) {
	normalizedPath := session.NormalizeRemotePath(remotePath)
	node, contentsError := service.client.Contents(executionContext, service.session.Repository, service.session.Branch, normalizedPath)
	if contentsError != nil {
		return Result{}, contentsError
	}

	var plan []remoteFile
	skipped := 0
	if node.IsDirectory() {
		directoryName := node.Name
		if len(directoryName) == 0 {
			directoryName = service.session.Repository.Name
		}
		entries, skippedEntries, collectError := service.collectRemoteFiles(executionContext, node)
		if collectError != nil {
			return Result{}, collectError
		}
		skipped = skippedEntries
		for _, entry := range entries {
			if entry.Kind != githubapi.NodeKindFile {
				skipped++
				continue
			}
			relativePath := strings.TrimPrefix(entry.Path, node.Path)
			relativePath = strings.TrimPrefix(relativePath, "/")
			plan = append(plan, remoteFile{
				entry:     entry,
				localPath: filepath.Join(localDirectory, directoryName, filepath.FromSlash(relativePath)),
			})
		}
	} else {
		if node.Kind != githubapi.NodeKindFile {
			return Result{}, githubapi.OperationError{Operation: "download", Cause: githubapi.ErrPathIsNotFile}
		}
		plan = []remoteFile{{entry: node.Entry, localPath: filepath.Join(localDirectory, node.Name)}}
	}

	if guardError := approveOverwrites(plan, guard); guardError != nil {
		return Result{}, guardError
	}

	var totalBytes int64
	for _, planned := range plan {
		totalBytes += planned.entry.Size
	}
	tracker := newProgressTracker(len(plan), totalBytes, service.reporter)
	collector := &resultCollector{result: Result{Skipped: skipped}}

	var group errgroup.Group
	group.SetLimit(service.workers)
	for _, planned := range plan {
		currentFile := planned
		group.Go(func() error {
			writtenBytes, downloadError := service.downloadOne(executionContext, currentFile)
			if downloadError != nil {
				collector.fail(FileError{Operation: "download", Path: currentFile.entry.Path, Cause: downloadError})
			} else {
				collector.succeed(currentFile.localPath, writtenBytes)
			}
			tracker.advance(currentFile.entry.Path, currentFile.entry.Size, downloadError == nil)
			return nil
		})
	}
	_ = group.Wait()

	result := collector.snapshot()
	service.logger.Info(
		downloadCompletedMessageConstant,
		zap.String(logFieldRemotePathConstant, session.DisplayRemote(normalizedPath)),
		zap.Int(logFieldSucceededConstant, result.Succeeded),
		zap.Int(logFieldFailedConstant, result.Failed),
	)
	return result, result.Err()
}

func approveOverwrites(plan []remoteFile, guard OverwriteGuard) error {
	var existingPaths []string
	for _, planned := range plan {
		if _, statError := os.Stat(planned.localPath); statError == nil {
			existingPaths = append(existingPaths, planned.localPath)
		}
	}
	if len(existingPaths) == 0 {
		return nil
	}
	if guard == nil {
		return fmt.Errorf("%s: %w", strings.Join(existingPaths, ", "), ErrDestinationExists)
	}
	return guard(existingPaths)
}

func (service *Service) downloadOne(executionContext context.Context, planned remoteFile) (int64, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return 0, contextError
	}
	content, downloadError := service.client.DownloadFile(executionContext, service.session.Repository, service.session.Branch, planned.entry.Path)
	if downloadError != nil {
		return 0, downloadError
	}
	if mkdirError := os.MkdirAll(filepath.Dir(planned.localPath), localDirectoryPermissionsConstant); mkdirError != nil {
		return 0, mkdirError
	}
	if writeError := os.WriteFile(planned.localPath, content, localFilePermissionsConstant); writeError != nil {
		return 0, writeError
	}
	return int64(len(content)), nil
}

// ListRemote returns the remote directory with children ordered directories first.
func (service *Service) ListRemote(executionContext context.Context, remoteDirectory string) (githubapi.Node, error) {
	return service.client.Contents(executionContext, service.session.Repository, service.session.Branch, remoteDirectory)
}

// ListLocal lists localDirectory with the service's exclusion settings.
func (service *Service) ListLocal(localDirectory string) ([]LocalEntry, error) {
	return ListLocal(localDirectory, ServiceOptions{
		IgnoreFileName: service.ignoreFileName,
		AlwaysExclude:  service.alwaysExclude,
		Logger:         service.logger,
	})
}

// ListLocal lists localDirectory, flagging entries a directory upload would exclude.
func ListLocal(localDirectory string, options ServiceOptions) ([]LocalEntry, error) {
	absoluteDirectory, absoluteError := filepath.Abs(localDirectory)
	if absoluteError != nil {
		return nil, absoluteError
	}
	directoryInformation, statError := os.Stat(absoluteDirectory)
	if statError != nil {
		return nil, fmt.Errorf(missingLocalPathTemplateConstant, localDirectory, statError)
	}
	if !directoryInformation.IsDir() {
		return nil, fmt.Errorf(notDirectoryTemplateConstant, localDirectory)
	}

	directoryEntries, readError := os.ReadDir(absoluteDirectory)
	if readError != nil {
		return nil, readError
	}

	filter := newFilter(absoluteDirectory, options)
	localEntries := make([]LocalEntry, 0, len(directoryEntries))
	for _, directoryEntry := range directoryEntries {
		localEntry := LocalEntry{
			Name:        directoryEntry.Name(),
			Path:        filepath.Join(absoluteDirectory, directoryEntry.Name()),
			IsDirectory: directoryEntry.IsDir(),
			Excluded:    filter.IsExcluded(directoryEntry.Name()),
		}
		if !localEntry.IsDirectory {
			if entryInformation, infoError := directoryEntry.Info(); infoError == nil {
				localEntry.Size = entryInformation.Size()
			}
		}
		localEntries = append(localEntries, localEntry)
	}

	sort.SliceStable(localEntries, func(leftIndex int, rightIndex int) bool {
		if localEntries[leftIndex].IsDirectory != localEntries[rightIndex].IsDirectory {
			return localEntries[leftIndex].IsDirectory
		}
		return strings.ToLower(localEntries[leftIndex].Name) < strings.ToLower(localEntries[rightIndex].Name)
	})
	return localEntries, nil
}

type resultCollector struct {
	mutex  sync.Mutex
	result Result
}

func (collector *resultCollector) succeed(transferredPath string, byteCount int64) {
	collector.mutex.Lock()
	defer collector.mutex.Unlock()
	collector.result.Succeeded++
	collector.result.Bytes += byteCount
	collector.result.Paths = append(collector.result.Paths, transferredPath)
}

func (collector *resultCollector) fail(failure error) {
	collector.mutex.Lock()
	defer collector.mutex.Unlock()
	collector.result.Failed++
	collector.result.Errors = append(collector.result.Errors, failure)
}

func (collector *resultCollector) snapshot() Result {
	collector.mutex.Lock()
	defer collector.mutex.Unlock()
	snapshot := collector.result
	sort.Strings(snapshot.Paths)
	return snapshot
}
