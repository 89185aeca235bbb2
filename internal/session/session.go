package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/temirov/gogsctl/internal/credentials"
	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/gogsapi"
	"github.com/temirov/gogsctl/internal/reconcile"
	"github.com/temirov/gogsctl/internal/ui"
	"github.com/temirov/gogsctl/internal/utils"
	pathutils "github.com/temirov/gogsctl/internal/utils/path"
)

const (
	loginPasswordFieldNameConstant        = "login_password"
	userPasswordFieldNameConstant         = "password"
	userKeyFieldNameConstant              = "sshkey"
	importPasswordFieldNameConstant       = "import_password"
	deployKeyFieldNameConstant            = "deploy_key"
	reportFormatErrorTemplateConstant     = "invalid output format: %w"
	metricsSetupErrorTemplateConstant     = "unable to register request metrics: %w"
	clientSetupErrorTemplateConstant      = "unable to configure gogs api client: %w"
	serviceSetupErrorTemplateConstant     = "unable to configure reconciliation: %w"
	metricsExportErrorTemplateConstant    = "unable to write metrics file %s: %w"
	reportErrorTemplateConstant           = "unable to report result: %w"
	metricsWrittenLogMessageConstant      = "request metrics written"
	logFieldMetricsFileConstant           = "metrics_file"
	secretResolutionFailedMessageConstant = "could not be resolved: %s"
)

// Settings describes the server connection and output of an invocation.
type Settings struct {
	ServerURL            string
	LoginUser            string
	LoginPasswordSource  string
	Timeout              time.Duration
	OutputFormat         string
	MetricsFile          string
	HumanReadableLogging bool
}

// Dependencies supplies optional collaborators. Zero values select production defaults.
type Dependencies struct {
	Logger                 *zap.Logger
	Output                 io.Writer
	HTTPClient             gogsapi.HTTPClient
	SecretResolver         credentials.SecretResolver
	KeyMaterialLoader      *pathutils.KeyMaterialLoader
	RunIdentifierGenerator func() string
}

// Provider opens a session whose reports are written to output. Command builders receive one from the application.
type Provider func(executionContext context.Context, output io.Writer) (*Session, error)

// NewProvider returns a Provider that opens sessions with the settings and dependencies current at call time.
func NewProvider(settingsProvider func() Settings, dependenciesProvider func() Dependencies) Provider {
	return func(executionContext context.Context, output io.Writer) (*Session, error) {
		var settings Settings
		if settingsProvider != nil {
			settings = settingsProvider()
		}
		var dependencies Dependencies
		if dependenciesProvider != nil {
			dependencies = dependenciesProvider()
		}
		dependencies.Output = output
		return Open(executionContext, settings, dependencies)
	}
}

// Session reconciles declarations against one server and reports every outcome.
type Session struct {
	logger            *zap.Logger
	loginUser         string
	service           *reconcile.Service
	reporter          *reconcile.Reporter
	registry          *prometheus.Registry
	metricsFile       string
	secretResolver    credentials.SecretResolver
	keyMaterialLoader *pathutils.KeyMaterialLoader
}

// Open validates the settings, resolves the login password, and wires the client, service, and reporter.
func Open(executionContext context.Context, settings Settings, dependencies Dependencies) (*Session, error) {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reportFormat, formatError := reconcile.ParseReportFormat(settings.OutputFormat)
	if formatError != nil {
		return nil, fmt.Errorf(reportFormatErrorTemplateConstant, formatError)
	}

	secretResolver := dependencies.SecretResolver
	if secretResolver == nil {
		secretResolver = credentials.NewSecretResolver(nil, nil)
	}
	keyMaterialLoader := dependencies.KeyMaterialLoader
	if keyMaterialLoader == nil {
		keyMaterialLoader = pathutils.NewKeyMaterialLoader()
	}

	loginPassword, passwordError := credentials.Resolve(executionContext, secretResolver, settings.LoginPasswordSource)
	if passwordError != nil {
		return nil, secretValidationError(loginPasswordFieldNameConstant, passwordError)
	}

	registry := prometheus.NewRegistry()
	metrics, metricsError := gogsapi.NewMetrics(registry)
	if metricsError != nil {
		return nil, fmt.Errorf(metricsSetupErrorTemplateConstant, metricsError)
	}

	clientDependencies := gogsapi.ClientDependencies{
		HTTPClient: dependencies.HTTPClient,
		Logger:     logger,
		Metrics:    metrics,
	}
	if settings.HumanReadableLogging {
		clientDependencies.EventObserver = ui.NewConsoleRequestEventLogger(logger)
	}

	client, clientError := gogsapi.NewClient(gogsapi.Configuration{
		BaseURL:       settings.ServerURL,
		LoginUser:     settings.LoginUser,
		LoginPassword: loginPassword,
		Timeout:       settings.Timeout,
	}, clientDependencies)
	if clientError != nil {
		return nil, fmt.Errorf(clientSetupErrorTemplateConstant, clientError)
	}

	service, serviceError := reconcile.NewService(reconcile.ServiceDependencies{
		Logger:                 logger,
		Client:                 client,
		RunIdentifierGenerator: dependencies.RunIdentifierGenerator,
	})
	if serviceError != nil {
		return nil, fmt.Errorf(serviceSetupErrorTemplateConstant, serviceError)
	}

	return &Session{
		logger:            logger,
		loginUser:         client.LoginUser(),
		service:           service,
		reporter:          reconcile.NewReporter(utils.NewFlushingWriter(dependencies.Output), reportFormat),
		registry:          registry,
		metricsFile:       settings.MetricsFile,
		secretResolver:    secretResolver,
		keyMaterialLoader: keyMaterialLoader,
	}, nil
}

// LoginUser returns the account the session authenticates as.
func (session *Session) LoginUser() string {
	return session.loginUser
}

// ApplyUser resolves the referenced secrets of state, reconciles it, and reports the outcome.
func (session *Session) ApplyUser(executionContext context.Context, state desired.UserState) (reconcile.Result, error) {
	resolvedState, resolutionError := session.resolveUser(executionContext, state)
	if resolutionError != nil {
		return reconcile.Result{}, session.reportFailure(desired.KindUser, state.Key(), resolutionError)
	}

	result, reconcileError := session.service.ReconcileUser(executionContext, resolvedState)
	if reconcileError != nil {
		return reconcile.Result{}, session.reportFailure(desired.KindUser, state.Key(), reconcileError)
	}
	return result, session.reportResult(result)
}

// ApplyRepository resolves the referenced secrets of state, reconciles it, and reports the outcome.
func (session *Session) ApplyRepository(executionContext context.Context, state desired.RepositoryState) (reconcile.Result, error) {
	key := state.Key(session.loginUser)
	resolvedState, resolutionError := session.resolveRepository(executionContext, state)
	if resolutionError != nil {
		return reconcile.Result{}, session.reportFailure(desired.KindRepository, key, resolutionError)
	}

	result, reconcileError := session.service.ReconcileRepository(executionContext, resolvedState)
	if reconcileError != nil {
		return reconcile.Result{}, session.reportFailure(desired.KindRepository, key, reconcileError)
	}
	return result, session.reportResult(result)
}

// Close exports the request metrics when a metrics file is configured.
func (session *Session) Close() error {
	if session == nil || len(session.metricsFile) == 0 {
		return nil
	}
	if exportError := gogsapi.WriteTextfile(session.metricsFile, session.registry); exportError != nil {
		return fmt.Errorf(metricsExportErrorTemplateConstant, session.metricsFile, exportError)
	}
	session.logger.Debug(metricsWrittenLogMessageConstant, zap.String(logFieldMetricsFileConstant, session.metricsFile))
	return nil
}

func (session *Session) resolveUser(executionContext context.Context, state desired.UserState) (desired.UserState, error) {
	resolvedState := state
	password, passwordError := credentials.Resolve(executionContext, session.secretResolver, state.Password)
	if passwordError != nil {
		return desired.UserState{}, secretValidationError(userPasswordFieldNameConstant, passwordError)
	}
	resolvedState.Password = password

	material, materialError := session.loadKeyMaterial(state.SSHKey.Material)
	if materialError != nil {
		return desired.UserState{}, secretValidationError(userKeyFieldNameConstant, materialError)
	}
	resolvedState.SSHKey.Material = material
	return resolvedState, nil
}

func (session *Session) resolveRepository(executionContext context.Context, state desired.RepositoryState) (desired.RepositoryState, error) {
	resolvedState := state
	password, passwordError := credentials.Resolve(executionContext, session.secretResolver, state.ImportPassword)
	if passwordError != nil {
		return desired.RepositoryState{}, secretValidationError(importPasswordFieldNameConstant, passwordError)
	}
	resolvedState.ImportPassword = password

	material, materialError := session.loadKeyMaterial(state.DeployKey.Material)
	if materialError != nil {
		return desired.RepositoryState{}, secretValidationError(deployKeyFieldNameConstant, materialError)
	}
	resolvedState.DeployKey.Material = material
	return resolvedState, nil
}

func (session *Session) loadKeyMaterial(declaredMaterial string) (string, error) {
	if len(declaredMaterial) == 0 {
		return "", nil
	}
	return session.keyMaterialLoader.Load(declaredMaterial)
}

func (session *Session) reportResult(result reconcile.Result) error {
	if reportError := session.reporter.ReportResult(result); reportError != nil {
		return fmt.Errorf(reportErrorTemplateConstant, reportError)
	}
	return nil
}

func (session *Session) reportFailure(kind desired.ResourceKind, key desired.ResourceKey, failure error) error {
	if reportError := session.reporter.ReportFailure(kind, key, failure); reportError != nil {
		return errors.Join(failure, fmt.Errorf(reportErrorTemplateConstant, reportError))
	}
	return failure
}

func secretValidationError(fieldName string, cause error) error {
	return desired.ValidationError{
		FieldName: fieldName,
		Message:   fmt.Sprintf(secretResolutionFailedMessageConstant, cause),
	}
}
