// Package cli constructs the minigit command-line interface, wiring the Cobra
// command hierarchy, the Viper configuration loader with its embedded defaults,
// and structured zap logging. Every command receives an explicit session built
// from configuration and flags.
package cli
