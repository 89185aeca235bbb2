package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/gogsctl/internal/apply"
	"github.com/temirov/gogsctl/internal/repositories"
	"github.com/temirov/gogsctl/internal/session"
	"github.com/temirov/gogsctl/internal/users"
	"github.com/temirov/gogsctl/internal/utils"
	"github.com/temirov/gogsctl/internal/utils/flags"
)

const (
	applicationNameConstant                 = "gogsctl"
	applicationShortDescriptionConstant     = "Reconcile Gogs users and repositories against a declared state"
	applicationLongDescriptionConstant      = "gogsctl creates, updates, and deletes Gogs accounts and repositories through the server's REST API. Every command is idempotent: repeating it reports no changes."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level (debug, info, warn, error)."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	outputFlagNameConstant                  = "output"
	outputFlagUsageConstant                 = "Result rendering on standard output."
	metricsFileFlagNameConstant             = "metrics-file"
	metricsFileFlagUsageConstant            = "Write request metrics in the node exporter textfile format to this path."
	versionFlagNameConstant                 = "version"
	versionFlagUsageConstant                = "Print the gogsctl version and exit."
	versionOutputTemplateConstant           = "%s version: %s\n"
	unknownVersionConstant                  = "unknown"
	develVersionConstant                    = "(devel)"
	commonLogLevelConfigKeyConstant         = "common.log_level"
	commonLogFormatConfigKeyConstant        = "common.log_format"
	commonOutputConfigKeyConstant           = "common.output"
	commonMetricsFileConfigKeyConstant      = "common.metrics_file"
	serverURLConfigKeyConstant              = "server.url"
	serverLoginUserConfigKeyConstant        = "server.login_user"
	serverLoginPasswordSourceConfigKey      = "server.login_password_source"
	serverLoginPasswordConfigKeyConstant    = "server.login_password"
	serverTimeoutConfigKeyConstant          = "server.timeout"
	userToolConfigurationKeyConstant        = "tools.user"
	repoToolConfigurationKeyConstant        = "tools.repo"
	applyToolConfigurationKeyConstant       = "tools.apply"
	outputFormatJSONConstant                = "json"
	outputFormatTextConstant                = "text"
	environmentPrefixConstant               = "GOGSCTL"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationServerFieldConstant        = "server_url"
	invocationIdentifierFieldConstant       = "invocation_id"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	outputFormatErrorTemplateConstant       = "unable to select output: %w"
	loggerNotInitializedMessageConstant     = "logger not initialized"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Server ApplicationServerConfiguration `mapstructure:"server"`
	Tools  ApplicationToolsConfiguration  `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging and output settings shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	Output      string `mapstructure:"output"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// ApplicationServerConfiguration locates the Gogs server and its credentials.
// login_password is accepted as an alias of login_password_source.
type ApplicationServerConfiguration struct {
	URL                 string        `mapstructure:"url"`
	LoginUser           string        `mapstructure:"login_user"`
	LoginPasswordSource string        `mapstructure:"login_password_source"`
	LoginPassword       string        `mapstructure:"login_password"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// ApplicationToolsConfiguration holds configured defaults of the subcommands.
type ApplicationToolsConfiguration struct {
	User  users.CommandConfiguration        `mapstructure:"user"`
	Repo  repositories.CommandConfiguration `mapstructure:"repo"`
	Apply apply.CommandConfiguration        `mapstructure:"apply"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	outputFlagValue        string
	metricsFileFlagValue   string
	serverFlagValues       *flags.ServerFlagValues
	commandContextAccessor utils.CommandContextAccessor
	sessionDependencies    session.Dependencies
	versionResolver        func(context.Context) string
	exitFunction           func(int)
	standardOutput         io.Writer
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		utils.DefaultConfigurationSearchPaths(applicationNameConstant),
	)
	embeddedConfiguration, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	configurationLoader.SetEmbeddedConfiguration(embeddedConfiguration, embeddedConfigurationType)

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		versionResolver:        resolveBuildVersion,
		exitFunction:           os.Exit,
		standardOutput:         os.Stdout,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	cobraCommand.SetContext(context.Background())
	persistentFlagSet := cobraCommand.PersistentFlags()
	persistentFlagSet.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlagSet.StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	persistentFlagSet.StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	_ = flags.AddChoiceFlag(persistentFlagSet, &application.outputFlagValue, outputFlagNameConstant, outputFormatJSONConstant, []string{outputFormatJSONConstant, outputFormatTextConstant}, outputFlagUsageConstant)
	persistentFlagSet.StringVar(&application.metricsFileFlagValue, metricsFileFlagNameConstant, "", metricsFileFlagUsageConstant)
	persistentFlagSet.Bool(versionFlagNameConstant, false, versionFlagUsageConstant)
	application.serverFlagValues = flags.BindServerFlags(cobraCommand, flags.ServerFlagValues{})

	sessionProvider := session.NewProvider(application.sessionSettings, application.currentSessionDependencies)
	loggerProvider := func() *zap.Logger {
		return application.logger
	}

	userBuilder := users.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() users.CommandConfiguration {
			return application.configuration.Tools.User
		},
		SessionProvider: sessionProvider,
	}
	if userCommand, userBuildError := userBuilder.Build(); userBuildError == nil {
		cobraCommand.AddCommand(userCommand)
	}

	repositoryBuilder := repositories.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() repositories.CommandConfiguration {
			return application.configuration.Tools.Repo
		},
		SessionProvider: sessionProvider,
	}
	if repositoryCommand, repositoryBuildError := repositoryBuilder.Build(); repositoryBuildError == nil {
		cobraCommand.AddCommand(repositoryCommand)
	}

	applyBuilder := apply.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() apply.CommandConfiguration {
			return application.configuration.Tools.Apply
		},
		SessionProvider: sessionProvider,
	}
	if applyCommand, applyBuildError := applyBuilder.Build(); applyBuildError == nil {
		cobraCommand.AddCommand(applyCommand)
	}

	application.rootCommand = cobraCommand
	return application
}

// Execute runs the command hierarchy with the process arguments and flushes the logger.
func (application *Application) Execute() error {
	arguments := flags.NormalizeToggleArguments(os.Args[1:])
	if versionRequested(arguments) {
		fmt.Fprintf(application.standardOutput, versionOutputTemplateConstant, applicationNameConstant, application.versionResolver(application.rootCommand.Context()))
		application.exitFunction(0)
		return nil
	}

	application.rootCommand.SetArgs(arguments)
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return errors.Join(executionError, fmt.Errorf(loggerSyncErrorTemplateConstant, syncError))
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:      string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:     string(utils.LogFormatStructured),
		commonOutputConfigKeyConstant:        outputFormatJSONConstant,
		commonMetricsFileConfigKeyConstant:   "",
		serverURLConfigKeyConstant:           "",
		serverLoginUserConfigKeyConstant:     "",
		serverLoginPasswordSourceConfigKey:   "",
		serverLoginPasswordConfigKeyConstant: "",
		serverTimeoutConfigKeyConstant:       "30s",
	}
	for configurationKey, configurationValue := range users.DefaultConfigurationValues(userToolConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}
	for configurationKey, configurationValue := range repositories.DefaultConfigurationValues(repoToolConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}
	for configurationKey, configurationValue := range apply.DefaultConfigurationValues(applyToolConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}
	if application.persistentFlagChanged(command, outputFlagNameConstant) {
		application.configuration.Common.Output = application.outputFlagValue
	}
	if application.persistentFlagChanged(command, metricsFileFlagNameConstant) {
		application.configuration.Common.MetricsFile = application.metricsFileFlagValue
	}
	if _, outputError := flags.ParseChoice(application.configuration.Common.Output, []string{outputFormatJSONConstant, outputFormatTextConstant}); outputError != nil {
		return fmt.Errorf(outputFormatErrorTemplateConstant, outputError)
	}
	application.applyServerFlags(command)

	logLevel, logLevelError := utils.ParseLogLevel(application.configuration.Common.LogLevel)
	if logLevelError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, logLevelError)
	}
	logFormat, logFormatError := utils.ParseLogFormat(application.configuration.Common.LogFormat)
	if logFormatError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, logFormatError)
	}
	logger, loggerCreationError := application.loggerFactory.CreateLogger(logLevel, logFormat)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	invocationMetadata := utils.InvocationMetadata{
		InvocationIdentifier:  uuid.NewString(),
		ConfigurationFilePath: application.configurationMetadata.ConfigFileUsed,
	}
	application.logger = logger.With(zap.String(invocationIdentifierFieldConstant, invocationMetadata.InvocationIdentifier))
	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, invocationMetadata.ConfigurationFilePath),
		zap.String(configurationServerFieldConstant, application.configuration.Server.URL),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithInvocationMetadata(command.Context(), invocationMetadata)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) applyServerFlags(command *cobra.Command) {
	serverConfiguration := &application.configuration.Server
	if len(strings.TrimSpace(serverConfiguration.LoginPasswordSource)) == 0 {
		serverConfiguration.LoginPasswordSource = serverConfiguration.LoginPassword
	}

	configuredValues := flags.ServerFlagValues{
		URL:                 serverConfiguration.URL,
		LoginUser:           serverConfiguration.LoginUser,
		LoginPasswordSource: serverConfiguration.LoginPasswordSource,
		Timeout:             serverConfiguration.Timeout,
	}
	var rootFlagSet *pflag.FlagSet
	if command != nil && command.Root() != nil {
		rootFlagSet = command.Root().PersistentFlags()
	}
	mergedValues := application.serverFlagValues.Overlay(rootFlagSet, configuredValues)

	serverConfiguration.URL = mergedValues.URL
	serverConfiguration.LoginUser = mergedValues.LoginUser
	serverConfiguration.LoginPasswordSource = mergedValues.LoginPasswordSource
	serverConfiguration.Timeout = mergedValues.Timeout
}

func (application *Application) sessionSettings() session.Settings {
	return session.Settings{
		ServerURL:            application.configuration.Server.URL,
		LoginUser:            application.configuration.Server.LoginUser,
		LoginPasswordSource:  application.configuration.Server.LoginPasswordSource,
		Timeout:              application.configuration.Server.Timeout,
		OutputFormat:         application.configuration.Common.Output,
		MetricsFile:          strings.TrimSpace(application.configuration.Common.MetricsFile),
		HumanReadableLogging: application.humanReadableLoggingEnabled(),
	}
}

func (application *Application) currentSessionDependencies() session.Dependencies {
	dependencies := application.sessionDependencies
	dependencies.Logger = application.logger
	return dependencies
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}
	return application.syncLoggerInstance(application.logger)
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}

func versionRequested(arguments []string) bool {
	for _, argument := range arguments {
		if argument == "--" {
			return false
		}
		if argument == "--"+versionFlagNameConstant {
			return true
		}
	}
	return false
}

func resolveBuildVersion(context.Context) string {
	buildInformation, available := debug.ReadBuildInfo()
	if !available {
		return unknownVersionConstant
	}
	version := strings.TrimSpace(buildInformation.Main.Version)
	if len(version) == 0 || version == develVersionConstant {
		return unknownVersionConstant
	}
	return version
}
