// Package utils exposes reusable helpers consumed by multiple commands.
//
// ConfigurationLoader layers embedded defaults, configuration files found on the
// XDG search path, and GOGSCTL_ environment overrides through Viper. LoggerFactory
// builds zap loggers in structured or console encoding, and CommandContextAccessor
// carries invocation metadata through cobra command contexts.
package utils
