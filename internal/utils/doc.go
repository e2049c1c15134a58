// Package utils exposes reusable helpers consumed by multiple commands.
//
// It houses ConfigurationLoader, which layers embedded defaults, optional
// configuration files and MINIGIT_* environment overrides through Viper, and
// LoggerFactory, which builds zap loggers in structured or console form.
package utils
