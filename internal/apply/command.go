package apply

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/manifest"
	"github.com/temirov/gogsctl/internal/session"
	"github.com/temirov/gogsctl/internal/utils"
	"github.com/temirov/gogsctl/internal/utils/flags"
	pathutils "github.com/temirov/gogsctl/internal/utils/path"
)

const (
	commandUseConstant                    = "apply [manifest]"
	commandShortDescriptionConstant       = "Reconcile every resource declared in a manifest"
	commandLongDescriptionConstant        = "apply reads a YAML, JSON, JSONC, or TOML manifest, validates it, and reconciles its users and repositories in declaration order. The first failure stops the run. Use - to read the manifest from standard input."
	commandExecutionErrorTemplateConstant = "apply failed: %w"
	manifestReadErrorTemplateConstant     = "failed to read manifest %s: %w"
	invalidFormatTemplateConstant         = "invalid manifest format: %w"
	resourceFailureTemplateConstant       = "resource %d (%s %s): %w"
	tooManyArgumentsMessageConstant       = "apply accepts at most one manifest path"
	manifestMissingMessageConstant        = "manifest path must be given as an argument or in tools.apply.manifest"
	sessionMissingMessageConstant         = "apply command is not connected to a Gogs server"
	sessionCloseFailedMessageConstant     = "unable to finalize session"
	standardInputPathConstant             = "-"
	formatFlagNameConstant                = "format"
	formatFlagUsageConstant               = "Manifest format; detected from the file extension when omitted"
	manifestLoadedLogMessageConstant      = "manifest loaded"
	applyCompletedLogMessageConstant      = "manifest applied"
	logFieldManifestConstant              = "manifest"
	logFieldResourceCountConstant         = "resources"
	logFieldChangedCountConstant          = "changed"
	logFieldInvocationConstant            = "invocation_id"
)

var (
	errTooManyArguments = errors.New(tooManyArgumentsMessageConstant)
	errManifestMissing  = errors.New(manifestMissingMessageConstant)
	errSessionMissing   = errors.New(sessionMissingMessageConstant)
	formatChoices       = []string{
		string(manifest.FormatYAML),
		string(manifest.FormatJSON),
		string(manifest.FormatJSONC),
		string(manifest.FormatTOML),
	}
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current apply command configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the apply command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	SessionProvider       session.Provider
}

// Build constructs the apply command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	var formatValue string
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, formatValue)
		},
	}

	if choiceError := flags.AddChoiceFlag(command.Flags(), &formatValue, formatFlagNameConstant, "", formatChoices, formatFlagUsageConstant); choiceError != nil {
		return nil, choiceError
	}
	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string, formatValue string) error {
	if len(arguments) > 1 {
		return errTooManyArguments
	}

	manifestPath := builder.resolveConfiguration().ManifestPath
	if len(arguments) == 1 {
		manifestPath = strings.TrimSpace(arguments[0])
	}
	if len(manifestPath) == 0 {
		return errManifestMissing
	}

	logger := builder.resolveLogger()
	if metadata, available := utils.NewCommandContextAccessor().InvocationMetadata(command.Context()); available {
		logger = logger.With(zap.String(logFieldInvocationConstant, metadata.InvocationIdentifier))
	}

	loadedManifest, loadError := loadManifest(command.InOrStdin(), manifestPath, formatValue)
	if loadError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, loadError)
	}
	logger.Info(manifestLoadedLogMessageConstant,
		zap.String(logFieldManifestConstant, manifestPath),
		zap.Int(logFieldResourceCountConstant, len(loadedManifest.Resources)),
	)

	if builder.SessionProvider == nil {
		return errSessionMissing
	}
	activeSession, sessionError := builder.SessionProvider(command.Context(), command.OutOrStdout())
	if sessionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, sessionError)
	}

	changedCount, applyError := applyResources(command, activeSession, loadedManifest.Resources)
	if closeError := activeSession.Close(); closeError != nil {
		logger.Warn(sessionCloseFailedMessageConstant, zap.Error(closeError))
	}
	if applyError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, applyError)
	}

	logger.Info(applyCompletedLogMessageConstant,
		zap.String(logFieldManifestConstant, manifestPath),
		zap.Int(logFieldResourceCountConstant, len(loadedManifest.Resources)),
		zap.Int(logFieldChangedCountConstant, changedCount),
	)
	return nil
}

func applyResources(command *cobra.Command, activeSession *session.Session, resources []manifest.Resource) (int, error) {
	changedCount := 0
	for resourceIndex, resource := range resources {
		var changed bool
		var resourceKey desired.ResourceKey
		var applyError error

		switch resource.Kind {
		case desired.KindUser:
			resourceKey = resource.User.Key()
			result, userError := activeSession.ApplyUser(command.Context(), resource.User)
			changed, applyError = result.Changed, userError
		default:
			resourceKey = resource.Repository.Key(activeSession.LoginUser())
			result, repositoryError := activeSession.ApplyRepository(command.Context(), resource.Repository)
			changed, applyError = result.Changed, repositoryError
		}

		if applyError != nil {
			return changedCount, fmt.Errorf(resourceFailureTemplateConstant, resourceIndex+1, resource.Kind, resourceKey, applyError)
		}
		if changed {
			changedCount++
		}
	}
	return changedCount, nil
}

func loadManifest(standardInput io.Reader, manifestPath string, formatValue string) (manifest.Manifest, error) {
	expandedPath := pathutils.NewHomeExpander().Expand(manifestPath)
	if manifestPath != standardInputPathConstant && len(formatValue) == 0 {
		return manifest.Load(expandedPath)
	}

	format := manifest.FormatYAML
	if manifestPath != standardInputPathConstant {
		format = manifest.DetectFormat(expandedPath)
	}
	if len(formatValue) > 0 {
		parsedFormat, formatError := manifest.ParseFormat(formatValue)
		if formatError != nil {
			return manifest.Manifest{}, fmt.Errorf(invalidFormatTemplateConstant, formatError)
		}
		format = parsedFormat
	}

	var content []byte
	var readError error
	if manifestPath == standardInputPathConstant {
		content, readError = io.ReadAll(standardInput)
	} else {
		content, readError = os.ReadFile(expandedPath)
	}
	if readError != nil {
		return manifest.Manifest{}, fmt.Errorf(manifestReadErrorTemplateConstant, manifestPath, readError)
	}
	return manifest.Parse(content, format)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return CommandConfiguration{}
	}
	return builder.ConfigurationProvider().Sanitize()
}
