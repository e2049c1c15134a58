// Package output renders command results as a table, YAML or JSON.
package output
