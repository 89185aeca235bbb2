package flags

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

const (
	toggleTrueCanonicalValue               = "true"
	toggleFalseCanonicalValue              = "false"
	toggleUnsetCanonicalValue              = ""
	toggleParseErrorTemplate               = "invalid toggle value %q (expected yes or no)"
	toggleArgumentTruePlaceholderConstant  = "<YES|no>"
	toggleArgumentFalsePlaceholderConstant = "<yes|NO>"
	toggleArgumentUnsetPlaceholderConstant = "<yes|no>"
	toggleUsageEmptyTemplate               = "`%s`"
	toggleUsageFullTemplate                = "`%s` %s"
	toggleTypeNameConstant                 = "bool"
	optionalToggleTypeNameConstant         = "toggle"
	longFlagPrefixConstant                 = "--"
	shortFlagPrefixConstant                = "-"
	flagValueSeparatorConstant             = "="
)

var (
	trueLiteralSet  = newLiteralSet(toggleTrueCanonicalValue, "yes", "on", "1", "t", "y")
	falseLiteralSet = newLiteralSet(toggleFalseCanonicalValue, "no", "off", "0", "f", "n")

	toggleFlagRegistryMutex sync.RWMutex
	toggleFlagNames         = map[string]struct{}{}
	toggleFlagShorthands    = map[string]struct{}{}
)

func newLiteralSet(literals ...string) map[string]struct{} {
	literalSet := make(map[string]struct{}, len(literals))
	for _, literal := range literals {
		literalSet[literal] = struct{}{}
	}
	return literalSet
}

// ParseToggle interprets yes/no style literals such as yes, no, on, off, true, false, 1, and 0.
func ParseToggle(rawValue string) (bool, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(rawValue))
	if _, isTrue := trueLiteralSet[normalizedValue]; isTrue {
		return true, nil
	}
	if _, isFalse := falseLiteralSet[normalizedValue]; isFalse {
		return false, nil
	}
	return false, fmt.Errorf(toggleParseErrorTemplate, rawValue)
}

// AddToggleFlag registers a boolean flag that accepts yes/no style values. A bare flag means yes.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}
	if target != nil {
		*target = defaultValue
	}

	placeholder := toggleArgumentFalsePlaceholderConstant
	if defaultValue {
		placeholder = toggleArgumentTruePlaceholderConstant
	}
	registerFlagValue(flagSet, &toggleFlagValue{currentValue: defaultValue, target: target}, name, shorthand, placeholder, usage)
}

// OptionalToggle is a yes/no flag value that distinguishes "not given" from "no".
type OptionalToggle struct {
	value *bool
}

// Value returns nil when the flag was never set.
func (toggle *OptionalToggle) Value() *bool {
	if toggle == nil || toggle.value == nil {
		return nil
	}
	copiedValue := *toggle.value
	return &copiedValue
}

// Set parses rawValue. An empty value means yes so a bare flag enables the option.
func (toggle *OptionalToggle) Set(rawValue string) error {
	if len(strings.TrimSpace(rawValue)) == 0 {
		rawValue = toggleTrueCanonicalValue
	}
	parsedValue, parseError := ParseToggle(rawValue)
	if parseError != nil {
		return parseError
	}
	toggle.value = &parsedValue
	return nil
}

// String renders the current value, or an empty string when unset.
func (toggle *OptionalToggle) String() string {
	if toggle == nil || toggle.value == nil {
		return toggleUnsetCanonicalValue
	}
	return canonicalToggleValue(*toggle.value)
}

// Type names the flag value type in help output.
func (toggle *OptionalToggle) Type() string {
	return optionalToggleTypeNameConstant
}

// AddOptionalToggleFlag registers a tri-state yes/no flag. The attribute stays undeclared unless the flag is given.
func AddOptionalToggleFlag(flagSet *pflag.FlagSet, target *OptionalToggle, name string, usage string) {
	if flagSet == nil || target == nil || len(name) == 0 {
		return
	}
	registerFlagValue(flagSet, target, name, "", toggleArgumentUnsetPlaceholderConstant, usage)
}

func registerFlagValue(flagSet *pflag.FlagSet, value pflag.Value, name string, shorthand string, placeholder string, usage string) {
	flag := flagSet.VarPF(value, name, shorthand, formatToggleUsage(placeholder, usage))
	flag.NoOptDefVal = toggleTrueCanonicalValue

	toggleFlagRegistryMutex.Lock()
	defer toggleFlagRegistryMutex.Unlock()
	toggleFlagNames[name] = struct{}{}
	if len(shorthand) > 0 {
		toggleFlagShorthands[shorthand] = struct{}{}
	}
}

func formatToggleUsage(placeholder string, description string) string {
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return fmt.Sprintf(toggleUsageEmptyTemplate, placeholder)
	}
	return fmt.Sprintf(toggleUsageFullTemplate, placeholder, trimmedDescription)
}

func canonicalToggleValue(value bool) string {
	if value {
		return toggleTrueCanonicalValue
	}
	return toggleFalseCanonicalValue
}

type toggleFlagValue struct {
	currentValue bool
	target       *bool
}

func (value *toggleFlagValue) Set(rawValue string) error {
	if len(strings.TrimSpace(rawValue)) == 0 {
		rawValue = toggleTrueCanonicalValue
	}
	parsedValue, parseError := ParseToggle(rawValue)
	if parseError != nil {
		return parseError
	}
	value.currentValue = parsedValue
	if value.target != nil {
		*value.target = parsedValue
	}
	return nil
}

func (value *toggleFlagValue) String() string {
	if value == nil {
		return toggleFalseCanonicalValue
	}
	return canonicalToggleValue(value.currentValue)
}

func (value *toggleFlagValue) Type() string {
	return toggleTypeNameConstant
}

// NormalizeToggleArguments joins "--flag value" into "--flag=value" for registered toggle flags so that
// pflag does not treat the value as a positional argument.
func NormalizeToggleArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == longFlagPrefixConstant {
			normalized = append(normalized, arguments[index:]...)
			break
		}
		if index+1 < len(arguments) && expectsSeparateToggleValue(current) && isToggleLiteral(arguments[index+1]) {
			normalized = append(normalized, current+flagValueSeparatorConstant+arguments[index+1])
			index++
			continue
		}
		normalized = append(normalized, current)
	}
	return normalized
}

func expectsSeparateToggleValue(argument string) bool {
	if strings.Contains(argument, flagValueSeparatorConstant) {
		return false
	}

	toggleFlagRegistryMutex.RLock()
	defer toggleFlagRegistryMutex.RUnlock()
	switch {
	case strings.HasPrefix(argument, longFlagPrefixConstant):
		_, registered := toggleFlagNames[strings.TrimPrefix(argument, longFlagPrefixConstant)]
		return registered
	case strings.HasPrefix(argument, shortFlagPrefixConstant):
		shorthand := strings.TrimPrefix(argument, shortFlagPrefixConstant)
		if len(shorthand) != 1 {
			return false
		}
		_, registered := toggleFlagShorthands[shorthand]
		return registered
	default:
		return false
	}
}

func isToggleLiteral(argument string) bool {
	if strings.HasPrefix(argument, shortFlagPrefixConstant) {
		return false
	}
	_, parseError := ParseToggle(argument)
	return parseError == nil
}
