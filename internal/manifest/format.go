package manifest

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	formatUnsupportedTemplateConstant = "unsupported manifest format %q (expected yaml, json, jsonc, or toml)"
	yamlExtensionConstant             = ".yaml"
	ymlExtensionConstant              = ".yml"
	jsonExtensionConstant             = ".json"
	jsoncExtensionConstant            = ".jsonc"
	tomlExtensionConstant             = ".toml"
)

// Format identifies the syntax of a manifest file.
type Format string

// Supported manifest formats.
const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatTOML  Format = "toml"
)

// ParseFormat normalizes a textual format name.
func ParseFormat(formatValue string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(formatValue))) {
	case FormatYAML, Format("yml"):
		return FormatYAML, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatJSONC:
		return FormatJSONC, nil
	case FormatTOML:
		return FormatTOML, nil
	default:
		return "", fmt.Errorf(formatUnsupportedTemplateConstant, formatValue)
	}
}

// DetectFormat infers the format from the file extension. Unknown extensions are read as YAML.
func DetectFormat(filePath string) Format {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case jsonExtensionConstant:
		return FormatJSON
	case jsoncExtensionConstant:
		return FormatJSONC
	case tomlExtensionConstant:
		return FormatTOML
	case yamlExtensionConstant, ymlExtensionConstant:
		return FormatYAML
	default:
		return FormatYAML
	}
}
