package ignore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/danwakefield/fnmatch"
	"go.uber.org/zap"
)

const (
	// DefaultIgnoreFileName names the ignore file read from the filter root.
	DefaultIgnoreFileName = ".gitignore"

	commentPrefixConstant             = "#"
	pathSeparatorConstant             = "/"
	windowsPathSeparatorConstant      = "\\"
	currentDirectoryPrefixConstant    = "./"
	directoryContentsSuffixConstant   = "/*"
	lineSeparatorConstant             = "\n"
	fnmatchFlagsConstant              = 0
	ignoreFileReadFailedMessage       = "ignore file unreadable, continuing without exclusions"
	ignoreFileLoadedMessage           = "ignore file loaded"
	logFieldIgnoreFilePathConstant    = "ignore_file"
	logFieldPatternCountConstant      = "pattern_count"
	logFieldRootDirectoryPathConstant = "root_directory"
)

// FilterOptions customizes filter construction.
type FilterOptions struct {
	// IgnoreFileName overrides DefaultIgnoreFileName.
	IgnoreFileName string
	// AdditionalPatterns are appended after the patterns read from the ignore file.
	AdditionalPatterns []string
	Logger             *zap.Logger
}

// Filter is an immutable set of exclusion patterns anchored at a root directory.
// It is safe for concurrent use.
type Filter struct {
	rootDirectory string
	patterns      []string
}

// NewFilter loads the default ignore file found in rootDirectory.
func NewFilter(rootDirectory string) *Filter {
	return NewFilterWithOptions(rootDirectory, FilterOptions{})
}

// NewFilterWithOptions loads the configured ignore file found in rootDirectory.
// A missing or unreadable ignore file yields a filter without file patterns.
func NewFilterWithOptions(rootDirectory string, options FilterOptions) *Filter {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolvedRootDirectory := rootDirectory
	if absoluteRootDirectory, absoluteError := filepath.Abs(rootDirectory); absoluteError == nil {
		resolvedRootDirectory = absoluteRootDirectory
	}

	ignoreFileName := strings.TrimSpace(options.IgnoreFileName)
	if len(ignoreFileName) == 0 {
		ignoreFileName = DefaultIgnoreFileName
	}
	ignoreFilePath := filepath.Join(resolvedRootDirectory, ignoreFileName)

	patterns := loadPatterns(ignoreFilePath, logger)
	for _, additionalPattern := range options.AdditionalPatterns {
		if normalizedPattern, usable := normalizePatternLine(additionalPattern); usable {
			patterns = append(patterns, normalizedPattern)
		}
	}

	logger.Debug(
		ignoreFileLoadedMessage,
		zap.String(logFieldRootDirectoryPathConstant, resolvedRootDirectory),
		zap.String(logFieldIgnoreFilePathConstant, ignoreFilePath),
		zap.Int(logFieldPatternCountConstant, len(patterns)),
	)

	return &Filter{rootDirectory: resolvedRootDirectory, patterns: patterns}
}

// ParsePatterns extracts patterns from ignore file contents.
func ParsePatterns(contents string) []string {
	var patterns []string
	for _, line := range strings.Split(contents, lineSeparatorConstant) {
		if pattern, usable := normalizePatternLine(line); usable {
			patterns = append(patterns, pattern)
		}
	}
	return patterns
}

// RootDirectory returns the absolute matching base.
func (filter *Filter) RootDirectory() string {
	if filter == nil {
		return ""
	}
	return filter.rootDirectory
}

// Patterns returns a copy of the stored patterns in file order.
func (filter *Filter) Patterns() []string {
	if filter == nil || len(filter.patterns) == 0 {
		return nil
	}
	duplicatedPatterns := make([]string, len(filter.patterns))
	copy(duplicatedPatterns, filter.patterns)
	return duplicatedPatterns
}

// IsExcluded reports whether relativePath matches any stored pattern.
func (filter *Filter) IsExcluded(relativePath string) bool {
	if filter == nil || len(filter.patterns) == 0 {
		return false
	}

	normalizedPath := normalizePath(relativePath)
	pathSegments := strings.Split(normalizedPath, pathSeparatorConstant)

	for _, pattern := range filter.patterns {
		if fnmatch.Match(pattern, normalizedPath, fnmatchFlagsConstant) {
			return true
		}
		if fnmatch.Match(pattern+directoryContentsSuffixConstant, normalizedPath, fnmatchFlagsConstant) {
			return true
		}
		for _, pathSegment := range pathSegments {
			if fnmatch.Match(pattern, pathSegment, fnmatchFlagsConstant) {
				return true
			}
		}
	}

	return false
}

func loadPatterns(ignoreFilePath string, logger *zap.Logger) []string {
	contents, readError := os.ReadFile(ignoreFilePath)
	if readError != nil {
		if !errors.Is(readError, fs.ErrNotExist) {
			logger.Warn(ignoreFileReadFailedMessage, zap.String(logFieldIgnoreFilePathConstant, ignoreFilePath), zap.Error(readError))
		}
		return nil
	}
	return ParsePatterns(string(contents))
}

func normalizePatternLine(line string) (string, bool) {
	trimmedLine := strings.TrimSpace(line)
	if len(trimmedLine) == 0 || strings.HasPrefix(trimmedLine, commentPrefixConstant) {
		return "", false
	}
	pattern := strings.TrimSuffix(trimmedLine, pathSeparatorConstant)
	if len(pattern) == 0 {
		return "", false
	}
	return pattern, true
}

func normalizePath(relativePath string) string {
	normalizedPath := strings.ReplaceAll(relativePath, windowsPathSeparatorConstant, pathSeparatorConstant)
	return strings.TrimPrefix(normalizedPath, currentDirectoryPrefixConstant)
}
