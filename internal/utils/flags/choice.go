package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choicePlaceholderPrefix      = "<"
	choicePlaceholderSuffix      = ">"
	choiceSeparatorLiteral       = "|"
	choiceUsageEmptyTemplate     = "`%s`"
	choiceUsageFullTemplate      = "`%s` %s"
	choiceListSeparatorLiteral   = ", "
	choiceUnsupportedTemplate    = "unsupported value %q (expected one of %s)"
	choiceDefaultMissingTemplate = "default %q is not among the choices"
)

// FormatChoiceUsage builds a usage string where the default option is capitalized inside a placeholder.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	placeholder := choicePlaceholderPrefix + strings.Join(highlightDefaultChoice(defaultChoice, choices), choiceSeparatorLiteral) + choicePlaceholderSuffix
	if len(strings.TrimSpace(description)) == 0 {
		return fmt.Sprintf(choiceUsageEmptyTemplate, placeholder)
	}
	return fmt.Sprintf(choiceUsageFullTemplate, placeholder, description)
}

// ParseChoice returns the lower-cased choice matching rawValue, or an error naming the accepted choices.
func ParseChoice(rawValue string, choices []string) (string, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(rawValue))
	for _, choice := range choices {
		if strings.ToLower(strings.TrimSpace(choice)) == normalizedValue {
			return normalizedValue, nil
		}
	}
	return "", fmt.Errorf(choiceUnsupportedTemplate, rawValue, strings.Join(choices, choiceListSeparatorLiteral))
}

// AddChoiceFlag registers a string flag restricted to choices. Values outside the set fail at parse time.
func AddChoiceFlag(flagSet *pflag.FlagSet, target *string, name string, defaultChoice string, choices []string, description string) error {
	if flagSet == nil || len(name) == 0 {
		return nil
	}
	if len(defaultChoice) > 0 {
		if _, defaultError := ParseChoice(defaultChoice, choices); defaultError != nil {
			return fmt.Errorf(choiceDefaultMissingTemplate, defaultChoice)
		}
	}
	value := &choiceFlagValue{choices: append([]string(nil), choices...), target: target}
	value.assign(strings.ToLower(strings.TrimSpace(defaultChoice)))
	flagSet.Var(value, name, FormatChoiceUsage(defaultChoice, choices, description))
	return nil
}

type choiceFlagValue struct {
	choices      []string
	currentValue string
	target       *string
}

func (value *choiceFlagValue) assign(choice string) {
	value.currentValue = choice
	if value.target != nil {
		*value.target = choice
	}
}

func (value *choiceFlagValue) Set(rawValue string) error {
	choice, parseError := ParseChoice(rawValue, value.choices)
	if parseError != nil {
		return parseError
	}
	value.assign(choice)
	return nil
}

func (value *choiceFlagValue) String() string {
	if value == nil {
		return ""
	}
	return value.currentValue
}

func (value *choiceFlagValue) Type() string {
	return "string"
}

func highlightDefaultChoice(defaultChoice string, choices []string) []string {
	normalizedDefault := strings.ToLower(strings.TrimSpace(defaultChoice))
	highlighted := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))

	for _, choice := range choices {
		trimmedChoice := strings.TrimSpace(choice)
		normalizedChoice := strings.ToLower(trimmedChoice)
		if len(trimmedChoice) == 0 {
			continue
		}
		if _, exists := seen[normalizedChoice]; exists {
			continue
		}
		seen[normalizedChoice] = struct{}{}

		if normalizedChoice == normalizedDefault {
			trimmedChoice = strings.ToUpper(trimmedChoice)
		}
		highlighted = append(highlighted, trimmedChoice)
	}

	return highlighted
}
