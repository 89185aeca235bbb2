package users

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
	commandUseConstant                    = "user"
	commandShortDescriptionConstant       = "Reconcile a Gogs user account"
	commandLongDescriptionConstant        = "user creates, updates, or deletes one Gogs account so that it matches the given flags. Repeated runs with the same flags report no changes."
	commandExecutionErrorTemplateConstant = "user reconciliation failed: %w"
	unexpectedArgumentsMessageConstant    = "user does not accept positional arguments"
	sessionMissingMessageConstant         = "user command is not connected to a Gogs server"
	nameFlagNameConstant                  = "name"
	nameFlagUsageConstant                 = "Username of the account"
	stateFlagNameConstant                 = "state"
	stateFlagUsageConstant                = "Whether the account should exist"
	emailFlagNameConstant                 = "email"
	emailFlagUsageConstant                = "E-mail address, required when the account is created"
	passwordSourceFlagNameConstant        = "password-source"
	passwordSourceFlagUsageConstant       = "Password source (env:NAME, file:/path, or literal value), required when the account is created"
	fullNameFlagNameConstant              = "full-name"
	fullNameFlagUsageConstant             = "Display name"
	websiteFlagNameConstant               = "website"
	websiteFlagUsageConstant              = "Website URL"
	locationFlagNameConstant              = "location"
	locationFlagUsageConstant             = "Location"
	adminFlagNameConstant                 = "admin"
	adminFlagUsageConstant                = "Grant site administrator rights"
	allowGitHookFlagNameConstant          = "allow-git-hook"
	allowGitHookFlagUsageConstant         = "Allow the account to edit Git hooks"
	allowImportLocalFlagNameConstant      = "allow-import-local"
	allowImportLocalFlagUsageConstant     = "Allow the account to import local repositories"
	sshKeyNameFlagNameConstant            = "sshkey-name"
	sshKeyNameFlagUsageConstant           = "Title of the SSH public key"
	sshKeyFlagNameConstant                = "sshkey"
	sshKeyFlagUsageConstant               = "SSH public key, inline or @path to a key file"
	invalidStateTemplateConstant          = "invalid state: %w"
	sessionCloseFailedMessageConstant     = "unable to finalize session"
)

var (
	errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)
	errSessionMissing      = errors.New(sessionMissingMessageConstant)
	lifecycleChoices       = []string{string(desired.LifecyclePresent), string(desired.LifecycleAbsent)}
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current user command configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the user command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	SessionProvider       session.Provider
}

type commandFlags struct {
	state            string
	admin            flags.OptionalToggle
	allowGitHook     flags.OptionalToggle
	allowImportLocal flags.OptionalToggle
}

// Build constructs the user command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	boundFlags := &commandFlags{}
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, boundFlags)
		},
	}

	flagSet := command.Flags()
	flagSet.String(nameFlagNameConstant, "", nameFlagUsageConstant)
	if choiceError := flags.AddChoiceFlag(flagSet, &boundFlags.state, stateFlagNameConstant, "", lifecycleChoices, stateFlagUsageConstant); choiceError != nil {
		return nil, choiceError
	}
	flagSet.String(emailFlagNameConstant, "", emailFlagUsageConstant)
	flagSet.String(passwordSourceFlagNameConstant, "", passwordSourceFlagUsageConstant)
	flagSet.String(fullNameFlagNameConstant, "", fullNameFlagUsageConstant)
	flagSet.String(websiteFlagNameConstant, "", websiteFlagUsageConstant)
	flagSet.String(locationFlagNameConstant, "", locationFlagUsageConstant)
	flags.AddOptionalToggleFlag(flagSet, &boundFlags.admin, adminFlagNameConstant, adminFlagUsageConstant)
	flags.AddOptionalToggleFlag(flagSet, &boundFlags.allowGitHook, allowGitHookFlagNameConstant, allowGitHookFlagUsageConstant)
	flags.AddOptionalToggleFlag(flagSet, &boundFlags.allowImportLocal, allowImportLocalFlagNameConstant, allowImportLocalFlagUsageConstant)
	flagSet.String(sshKeyNameFlagNameConstant, "", sshKeyNameFlagUsageConstant)
	flagSet.String(sshKeyFlagNameConstant, "", sshKeyFlagUsageConstant)

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

	_, applyError := activeSession.ApplyUser(command.Context(), state)
	closeError := activeSession.Close()
	if applyError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, applyError)
	}
	if closeError != nil {
		builder.resolveLogger().Warn(sessionCloseFailedMessageConstant, zap.Error(closeError))
	}
	return nil
}

func (builder *CommandBuilder) parseState(command *cobra.Command, boundFlags *commandFlags) (desired.UserState, error) {
	configuration := builder.resolveConfiguration()
	flagSet := command.Flags()

	lifecycleValue := configuration.State
	if flagSet.Changed(stateFlagNameConstant) {
		lifecycleValue = boundFlags.state
	}
	lifecycle, lifecycleError := desired.ParseLifecycle(lifecycleValue)
	if lifecycleError != nil {
		return desired.UserState{}, fmt.Errorf(invalidStateTemplateConstant, lifecycleError)
	}

	passwordSource := stringFlagValue(command, passwordSourceFlagNameConstant)
	if !flagSet.Changed(passwordSourceFlagNameConstant) {
		passwordSource = configuration.PasswordSource
	}

	return desired.UserState{
		Lifecycle:        lifecycle,
		Username:         stringFlagValue(command, nameFlagNameConstant),
		Email:            stringFlagValue(command, emailFlagNameConstant),
		Password:         passwordSource,
		FullName:         stringFlagValue(command, fullNameFlagNameConstant),
		Website:          stringFlagValue(command, websiteFlagNameConstant),
		Location:         stringFlagValue(command, locationFlagNameConstant),
		Admin:            boundFlags.admin.Value(),
		AllowGitHook:     boundFlags.allowGitHook.Value(),
		AllowImportLocal: boundFlags.allowImportLocal.Value(),
		SSHKey: desired.SSHKey{
			Title:    stringFlagValue(command, sshKeyNameFlagNameConstant),
			Material: stringFlagValue(command, sshKeyFlagNameConstant),
		},
	}, nil
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
