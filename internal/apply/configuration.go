package apply

import "strings"

const (
	manifestConfigurationKeyConstant = "manifest"
	configurationKeySeparatorLiteral = "."
)

// CommandConfiguration stores configured defaults for the apply command.
type CommandConfiguration struct {
	ManifestPath string `mapstructure:"manifest"`
}

// DefaultConfigurationValues returns Viper defaults for the apply command under configurationPrefix.
func DefaultConfigurationValues(configurationPrefix string) map[string]any {
	key := manifestConfigurationKeyConstant
	if len(configurationPrefix) > 0 {
		key = configurationPrefix + configurationKeySeparatorLiteral + key
	}
	return map[string]any{key: ""}
}

// Sanitize trims configured values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	return CommandConfiguration{ManifestPath: strings.TrimSpace(configuration.ManifestPath)}
}
