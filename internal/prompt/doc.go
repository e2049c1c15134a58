// Package prompt asks the operator to confirm destructive operations.
package prompt
