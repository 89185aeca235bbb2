package repositories

import "strings"

const (
	defaultStateConstant               = "present"
	configurationKeySeparatorLiteral   = "."
	stateConfigurationKeyConstant      = "state"
	groupConfigurationKeyConstant      = "group"
	publicConfigurationKeyConstant     = "public"
	licenseConfigurationKeyConstant    = "license"
	gitignoresConfigurationKeyConstant = "gitignores"
	readmeConfigurationKeyConstant     = "readme"
)

// CommandConfiguration stores configured defaults for the repo command.
type CommandConfiguration struct {
	State      string `mapstructure:"state"`
	Group      string `mapstructure:"group"`
	Public     bool   `mapstructure:"public"`
	License    string `mapstructure:"license"`
	Gitignores string `mapstructure:"gitignores"`
	Readme     string `mapstructure:"readme"`
}

// DefaultCommandConfiguration supplies baseline values for the repo command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{State: defaultStateConstant}
}

// DefaultConfigurationValues returns Viper defaults for the repo command under configurationPrefix.
func DefaultConfigurationValues(configurationPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		joinConfigurationKey(configurationPrefix, stateConfigurationKeyConstant):      defaults.State,
		joinConfigurationKey(configurationPrefix, groupConfigurationKeyConstant):      defaults.Group,
		joinConfigurationKey(configurationPrefix, publicConfigurationKeyConstant):     defaults.Public,
		joinConfigurationKey(configurationPrefix, licenseConfigurationKeyConstant):    defaults.License,
		joinConfigurationKey(configurationPrefix, gitignoresConfigurationKeyConstant): defaults.Gitignores,
		joinConfigurationKey(configurationPrefix, readmeConfigurationKeyConstant):     defaults.Readme,
	}
}

// Sanitize trims configured values and restores the default state when none is configured.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.State = strings.ToLower(strings.TrimSpace(configuration.State))
	if len(sanitized.State) == 0 {
		sanitized.State = defaultStateConstant
	}
	sanitized.Group = strings.TrimSpace(configuration.Group)
	sanitized.License = strings.TrimSpace(configuration.License)
	sanitized.Gitignores = strings.TrimSpace(configuration.Gitignores)
	sanitized.Readme = strings.TrimSpace(configuration.Readme)
	return sanitized
}

func joinConfigurationKey(prefix string, key string) string {
	if len(prefix) == 0 {
		return key
	}
	return prefix + configurationKeySeparatorLiteral + key
}
