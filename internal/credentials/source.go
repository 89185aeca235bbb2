package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	pathutils "github.com/temirov/gogsctl/internal/utils/path"
)

const (
	secretSourceSeparatorConstant              = ":"
	environmentSecretSourceTypeValueConstant   = "env"
	fileSecretSourceTypeValueConstant          = "file"
	literalSecretSourceTypeValueConstant       = "literal"
	environmentNameMissingErrorMessageConstant = "environment variable name must be provided"
	filePathMissingErrorMessageConstant        = "secret file path must be provided"
	environmentSecretMissingTemplateConstant   = "environment variable %s is not set"
	fileReadErrorTemplateConstant              = "unable to read secret file %s: %w"
	fileSecretEmptyErrorTemplateConstant       = "secret file %s is empty"
	unsupportedSecretSourceTemplateConstant    = "unsupported secret source type %q"
	lineTerminatorCharactersConstant           = "\r\n"
)

// SecretSourceType enumerates the supported secret retrieval mechanisms.
type SecretSourceType string

// Secret source types.
const (
	SecretSourceTypeEnvironment SecretSourceType = SecretSourceType(environmentSecretSourceTypeValueConstant)
	SecretSourceTypeFile        SecretSourceType = SecretSourceType(fileSecretSourceTypeValueConstant)
	SecretSourceTypeLiteral     SecretSourceType = SecretSourceType(literalSecretSourceTypeValueConstant)
)

// SecretSource specifies where a secret is read from.
type SecretSource struct {
	Type      SecretSourceType
	Reference string
}

// ParseSecretSource interprets env:NAME, file:/path, and literal:value declarations. Values without a
// recognized prefix are literal secrets, so passwords containing colons need no escaping.
func ParseSecretSource(sourceValue string) (SecretSource, error) {
	components := strings.SplitN(sourceValue, secretSourceSeparatorConstant, 2)
	if len(components) == 2 {
		reference := components[1]
		switch strings.ToLower(strings.TrimSpace(components[0])) {
		case environmentSecretSourceTypeValueConstant:
			trimmedReference := strings.TrimSpace(reference)
			if len(trimmedReference) == 0 {
				return SecretSource{}, errors.New(environmentNameMissingErrorMessageConstant)
			}
			return SecretSource{Type: SecretSourceTypeEnvironment, Reference: trimmedReference}, nil
		case fileSecretSourceTypeValueConstant:
			trimmedReference := strings.TrimSpace(reference)
			if len(trimmedReference) == 0 {
				return SecretSource{}, errors.New(filePathMissingErrorMessageConstant)
			}
			return SecretSource{Type: SecretSourceTypeFile, Reference: trimmedReference}, nil
		case literalSecretSourceTypeValueConstant:
			return SecretSource{Type: SecretSourceTypeLiteral, Reference: reference}, nil
		}
	}
	return SecretSource{Type: SecretSourceTypeLiteral, Reference: sourceValue}, nil
}

// SecretResolver retrieves secrets from their sources.
type SecretResolver interface {
	ResolveSecret(resolutionContext context.Context, source SecretSource) (string, error)
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// NewSecretResolver creates a resolver with optional dependency overrides.
func NewSecretResolver(environmentLookup EnvironmentLookup, fileReader pathutils.FileReader) SecretResolver {
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	if fileReader == nil {
		fileReader = os.ReadFile
	}
	return &secretResolver{
		environmentLookup: environmentLookup,
		fileReader:        fileReader,
		homeExpander:      pathutils.NewHomeExpander(),
	}
}

type secretResolver struct {
	environmentLookup EnvironmentLookup
	fileReader        pathutils.FileReader
	homeExpander      *pathutils.HomeExpander
}

func (resolver *secretResolver) ResolveSecret(resolutionContext context.Context, source SecretSource) (string, error) {
	_ = resolutionContext
	switch source.Type {
	case SecretSourceTypeLiteral:
		return source.Reference, nil
	case SecretSourceTypeEnvironment:
		value, found := resolver.environmentLookup(source.Reference)
		if !found || len(value) == 0 {
			return "", fmt.Errorf(environmentSecretMissingTemplateConstant, source.Reference)
		}
		return value, nil
	case SecretSourceTypeFile:
		expandedPath := resolver.homeExpander.Expand(source.Reference)
		contents, readError := resolver.fileReader(expandedPath)
		if readError != nil {
			return "", fmt.Errorf(fileReadErrorTemplateConstant, expandedPath, readError)
		}
		value := strings.TrimRight(string(contents), lineTerminatorCharactersConstant)
		if len(value) == 0 {
			return "", fmt.Errorf(fileSecretEmptyErrorTemplateConstant, expandedPath)
		}
		return value, nil
	default:
		return "", fmt.Errorf(unsupportedSecretSourceTemplateConstant, source.Type)
	}
}

// Resolve parses and resolves sourceValue in one step. An empty declaration resolves to an empty secret.
func Resolve(resolutionContext context.Context, resolver SecretResolver, sourceValue string) (string, error) {
	if len(strings.TrimSpace(sourceValue)) == 0 {
		return "", nil
	}
	source, parseError := ParseSecretSource(sourceValue)
	if parseError != nil {
		return "", parseError
	}
	return resolver.ResolveSecret(resolutionContext, source)
}
