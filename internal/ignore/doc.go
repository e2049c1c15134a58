// Package ignore decides which local paths are skipped during bulk uploads.
//
// A Filter loads glob patterns once from the ignore file stored at a root
// directory and answers IsExcluded for paths relative to that root. Patterns
// follow shell-glob semantics: a pattern excludes a path when it matches the
// whole path, the path as a descendant of the pattern, or any single path
// segment. Negation, anchored and double-star forms are not supported.
package ignore
