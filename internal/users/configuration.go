package users

import "strings"

const (
	defaultStateConstant             = "present"
	stateConfigurationKeyConstant    = "state"
	passwordSourceConfigurationKey   = "password_source"
	configurationKeySeparatorLiteral = "."
)

// CommandConfiguration stores configured defaults for the user command.
type CommandConfiguration struct {
	State          string `mapstructure:"state"`
	PasswordSource string `mapstructure:"password_source"`
}

// DefaultCommandConfiguration supplies baseline values for the user command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{State: defaultStateConstant}
}

// DefaultConfigurationValues returns Viper defaults for the user command under configurationPrefix.
func DefaultConfigurationValues(configurationPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		joinConfigurationKey(configurationPrefix, stateConfigurationKeyConstant):  defaults.State,
		joinConfigurationKey(configurationPrefix, passwordSourceConfigurationKey): defaults.PasswordSource,
	}
}

// Sanitize trims configured values and restores the default state when none is configured.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := CommandConfiguration{
		State:          strings.ToLower(strings.TrimSpace(configuration.State)),
		PasswordSource: strings.TrimSpace(configuration.PasswordSource),
	}
	if len(sanitized.State) == 0 {
		sanitized.State = defaultStateConstant
	}
	return sanitized
}

func joinConfigurationKey(prefix string, key string) string {
	if len(prefix) == 0 {
		return key
	}
	return prefix + configurationKeySeparatorLiteral + key
}
