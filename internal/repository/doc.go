// Package repository checks access to, creates and resets GitHub repositories.
//
// ResetHistory replaces a branch's history with a single parentless commit that
// keeps the current tree, then force-moves the branch onto it.
package repository
