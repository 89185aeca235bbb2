package repositories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/session"
	"github.com/temirov/gogsctl/internal/utils/flags"
)

const (
	commandUseConstant                    = "repo"
	commandAliasConstant                  = "repository"
	commandShortDescriptionConstant       = "Reconcile a Gogs repository"
	commandLongDescriptionConstant        = "repo creates, imports, or deletes one Gogs repository so that it matches the given flags, registers its deploy key, and triggers a mirror sync on request."
	commandExecutionErrorTemplateConstant = "repository reconciliation failed: %w"
	unexpectedArgumentsMessageConstant    = "repo does not accept positional arguments"
	sessionMissingMessageConstant         = "repo command is not connected to a Gogs server"
	sessionCloseFailedMessageConstant     = "unable to finalize session"
	conflictingOwnerTemplateConstant      = "--%s %q and --%s %q name different owners"
	invalidStateTemplateConstant          = "invalid state: %w"
	nameFlagNameConstant                  = "name"
	nameFlagUsageConstant                 = "Repository name"
	groupFlagNameConstant                 = "group"
	groupFlagUsageConstant                = "Owning organization; defaults to the login user"
	organizationFlagNameConstant          = "organization"
	organizationFlagUsageConstant         = "Alias of --group"
	stateFlagNameConstant                 = "state"
	stateFlagUsageConstant                = "Whether the repository should exist"
	publicFlagNameConstant                = "public"
	publicFlagUsageConstant               = "Create a publicly visible repository"
	descriptionFlagNameConstant           = "description"
	descriptionFlagUsageConstant          = "Repository description"
	autoInitFlagNameConstant              = "auto-init"
	autoInitFlagUsageConstant             = "Initialize the repository with the selected templates"
	gitignoresFlagNameConstant            = "gitignores"
	gitignoresFlagUsageConstant           = "Comma-separated .gitignore templates"
	licenseFlagNameConstant               = "license"
	licenseFlagUsageConstant              = "License template"
	readmeFlagNameConstant                = "readme"
	readmeFlagUsageConstant               = "README template"
	importURLFlagNameConstant             = "import-url"
	importURLFlagUsageConstant            = "Clone URL to import the repository from"
	importUsernameFlagNameConstant        = "import-username"
	importUsernameFlagUsageConstant       = "Username for the import source"
	importPasswordSourceFlagNameConstant  = "import-password-source"
	importPasswordSourceFlagUsageConstant = "Import password source (env:NAME, file:/path, or literal value)"
	mirrorFlagNameConstant                = "mirror"
	mirrorFlagUsageConstant               = "Create a pull mirror"
	mirrorSyncFlagNameConstant            = "mirror-sync"
	mirrorSyncFlagUsageConstant           = "Trigger a mirror sync when the repository already exists"
	deployKeyNameFlagNameConstant         = "deploy-key-name"
	deployKeyNameFlagUsageConstant        = "Title of the deploy key"
	deployKeyFlagNameConstant             = "deploy-key"
	deployKeyFlagUsageConstant            = "Deploy public key, inline or @path to a key file"
)

var (
	errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)
	errSessionMissing      = errors.New(sessionMissingMessageConstant)
	lifecycleChoices       = []string{string(desired.LifecyclePresent), string(desired.LifecycleAbsent)}
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current repo command configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the repo command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	SessionProvider       session.Provider
}

type commandFlags struct {
	state      string
	public     bool
	mirror     bool
	mirrorSync bool
	autoInit   flags.OptionalToggle
}

// Build constructs the repo command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	boundFlags := &commandFlags{}
	command := &cobra.Command{
		Use:     commandUseConstant,
		Aliases: []string{commandAliasConstant},
		Short:   commandShortDescriptionConstant,
		Long:    commandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, boundFlags)
		},
	}

	flagSet := command.Flags()
	flagSet.String(nameFlagNameConstant, "", nameFlagUsageConstant)
	flagSet.String(groupFlagNameConstant, "", groupFlagUsageConstant)
	flagSet.String(organizationFlagNameConstant, "", organizationFlagUsageConstant)
	if choiceError := flags.AddChoiceFlag(flagSet, &boundFlags.state, stateFlagNameConstant, "", lifecycleChoices, stateFlagUsageConstant); choiceError != nil {
		return nil, choiceError
	}
	flags.AddToggleFlag(flagSet, &boundFlags.public, publicFlagNameConstant, "", false, publicFlagUsageConstant)
	flagSet.String(descriptionFlagNameConstant, "", descriptionFlagUsageConstant)
	flags.AddOptionalToggleFlag(flagSet, &boundFlags.autoInit, autoInitFlagNameConstant, autoInitFlagUsageConstant)
	flagSet.String(gitignoresFlagNameConstant, "", gitignoresFlagUsageConstant)
	flagSet.String(licenseFlagNameConstant, "", licenseFlagUsageConstant)
	flagSet.String(readmeFlagNameConstant, "", readmeFlagUsageConstant)
	flagSet.String(importURLFlagNameConstant, "", importURLFlagUsageConstant)
	flagSet.String(importUsernameFlagNameConstant, "", importUsernameFlagUsageConstant)
	flagSet.String(importPasswordSourceFlagNameConstant, "", importPasswordSourceFlagUsageConstant)
	flags.AddToggleFlag(flagSet, &boundFlags.mirror, mirrorFlagNameConstant, "", false, mirrorFlagUsageConstant)
	flags.AddToggleFlag(flagSet, &boundFlags.mirrorSync, mirrorSyncFlagNameConstant, "", false, mirrorSyncFlagUsageConstant)
	flagSet.String(deployKeyNameFlagNameConstant, "", deployKeyNameFlagUsageConstant)
	flagSet.String(deployKeyFlagNameConstant, "", deployKeyFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string, boundFlags *commandFlags) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	state, stateError := builder.parseState(command, boundFlags)
	if stateError != nil {
		return stateError
	}

	if builder.SessionProvider == nil {
		return errSessionMissing
	}
	activeSession, sessionError := builder.SessionProvider(command.Context(), command.OutOrStdout())
	if sessionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, sessionError)
	}

	_, applyError := activeSession.ApplyRepository(command.Context(), state)
	closeError := activeSession.Close()
	if applyError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, applyError)
	}
	if closeError != nil {
		builder.resolveLogger().Warn(sessionCloseFailedMessageConstant, zap.Error(closeError))
	}
	return nil
}

func (builder *CommandBuilder) parseState(command *cobra.Command, boundFlags *commandFlags) (desired.RepositoryState, error) {
	configuration := builder.resolveConfiguration()
	flagSet := command.Flags()

	lifecycleValue := configuration.State
	if flagSet.Changed(stateFlagNameConstant) {
		lifecycleValue = boundFlags.state
	}
	lifecycle, lifecycleError := desired.ParseLifecycle(lifecycleValue)
	if lifecycleError != nil {
		return desired.RepositoryState{}, fmt.Errorf(invalidStateTemplateConstant, lifecycleError)
	}

	group, groupError := resolveGroup(command, configuration.Group)
	if groupError != nil {
		return desired.RepositoryState{}, groupError
	}

	public := configuration.Public
	if flagSet.Changed(publicFlagNameConstant) {
		public = boundFlags.public
	}

	return desired.RepositoryState{
		Lifecycle:       lifecycle,
		Name:            stringFlagValue(command, nameFlagNameConstant),
		Group:           group,
		Description:     stringFlagValue(command, descriptionFlagNameConstant),
		Public:          public,
		AutoInit:        boundFlags.autoInit.Value(),
		Gitignores:      stringFlagOrConfigured(command, gitignoresFlagNameConstant, configuration.Gitignores),
		License:         stringFlagOrConfigured(command, licenseFlagNameConstant, configuration.License),
		Readme:          stringFlagOrConfigured(command, readmeFlagNameConstant, configuration.Readme),
		ImportSourceURL: stringFlagValue(command, importURLFlagNameConstant),
		ImportUsername:  stringFlagValue(command, importUsernameFlagNameConstant),
		ImportPassword:  stringFlagValue(command, importPasswordSourceFlagNameConstant),
		Mirror:          boundFlags.mirror,
		MirrorSync:      boundFlags.mirrorSync,
		DeployKey: desired.SSHKey{
			Title:    stringFlagValue(command, deployKeyNameFlagNameConstant),
			Material: stringFlagValue(command, deployKeyFlagNameConstant),
		},
	}, nil
}

// resolveGroup merges --group with its --organization alias; giving both with different owners is an error.
func resolveGroup(command *cobra.Command, configuredGroup string) (string, error) {
	groupValue := stringFlagValue(command, groupFlagNameConstant)
	organizationValue := stringFlagValue(command, organizationFlagNameConstant)
	switch {
	case len(groupValue) > 0 && len(organizationValue) > 0 && groupValue != organizationValue:
		return "", fmt.Errorf(conflictingOwnerTemplateConstant, groupFlagNameConstant, groupValue, organizationFlagNameConstant, organizationValue)
	case len(groupValue) > 0:
		return groupValue, nil
	case len(organizationValue) > 0:
		return organizationValue, nil
	default:
		return configuredGroup, nil
	}
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
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	return configuration.Sanitize()
}

func stringFlagValue(command *cobra.Command, flagName string) string {
	value, _ := command.Flags().GetString(flagName)
	return strings.TrimSpace(value)
}

func stringFlagOrConfigured(command *cobra.Command, flagName string, configuredValue string) string {
	if command.Flags().Changed(flagName) {
		return stringFlagValue(command, flagName)
	}
	return configuredValue
}
