package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/gogsapi"
)

const (
	apiClientMissingMessageConstant      = "gogs api client not configured"
	deleteFailureSummaryTemplateConstant = "failed to delete %s %s"
	runStartedLogMessageConstant         = "reconciliation started"
	runCompletedLogMessageConstant       = "reconciliation completed"
	runFailedLogMessageConstant          = "reconciliation failed"
	logFieldRunIdentifierConstant        = "run_id"
	logFieldResourceKindConstant         = "kind"
	logFieldResourceKeyConstant          = "resource"
	logFieldLifecycleConstant            = "state"
	logFieldChangedConstant              = "changed"
	logFieldMessageConstant              = "message"
	logFieldStepConstant                 = "step"
	stepStartedLogMessageConstant        = "reconciliation step"
	stepCreateConstant                   = "create"
	stepAttributeSyncConstant            = "attribute_sync"
	stepKeySyncConstant                  = "key_sync"
	stepMirrorSyncConstant               = "mirror_sync"
	stepDeleteConstant                   = "delete"
)

// Result is the terminal report of one run.
type Result struct {
	Kind      desired.ResourceKind
	Key       desired.ResourceKey
	Lifecycle desired.Lifecycle
	Changed   bool
	Message   string
}

// ServiceDependencies describes the collaborators of a Service.
type ServiceDependencies struct {
	Logger                 *zap.Logger
	Client                 APIClient
	RunIdentifierGenerator func() string
}

// Service reconciles users and repositories one at a time.
type Service struct {
	logger                 *zap.Logger
	client                 APIClient
	reader                 *Reader
	runIdentifierGenerator func() string
}

var errAPIClientMissing = errors.New(apiClientMissingMessageConstant)

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Client == nil {
		return nil, errAPIClientMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runIdentifierGenerator := dependencies.RunIdentifierGenerator
	if runIdentifierGenerator == nil {
		runIdentifierGenerator = uuid.NewString
	}

	return &Service{
		logger:                 logger,
		client:                 dependencies.Client,
		reader:                 NewReader(dependencies.Client),
		runIdentifierGenerator: runIdentifierGenerator,
	}, nil
}

// run carries the per-invocation state shared by the steps.
type run struct {
	logger    *zap.Logger
	kind      desired.ResourceKind
	key       desired.ResourceKey
	lifecycle desired.Lifecycle
	remote    RemoteState
	changes   ChangeSet
}

func (service *Service) startRun(kind desired.ResourceKind, key desired.ResourceKey, lifecycle desired.Lifecycle) *run {
	runLogger := service.logger.With(
		zap.String(logFieldRunIdentifierConstant, service.runIdentifierGenerator()),
		zap.String(logFieldResourceKindConstant, string(kind)),
		zap.String(logFieldResourceKeyConstant, key.String()),
		zap.String(logFieldLifecycleConstant, string(lifecycle)),
	)
	runLogger.Debug(runStartedLogMessageConstant)
	return &run{logger: runLogger, kind: kind, key: key, lifecycle: lifecycle}
}

func (currentRun *run) step(stepName string) {
	currentRun.logger.Debug(stepStartedLogMessageConstant, zap.String(logFieldStepConstant, stepName))
}

func (currentRun *run) finish(changed bool, message string) Result {
	result := Result{
		Kind:      currentRun.kind,
		Key:       currentRun.key,
		Lifecycle: currentRun.lifecycle,
		Changed:   changed,
		Message:   message,
	}
	currentRun.logger.Info(
		runCompletedLogMessageConstant,
		zap.Bool(logFieldChangedConstant, result.Changed),
		zap.String(logFieldMessageConstant, result.Message),
	)
	return result
}

func (currentRun *run) finishWithChanges() Result {
	return currentRun.finish(currentRun.changes.Changed(), currentRun.changes.Message())
}

func (currentRun *run) fail(failure error) error {
	currentRun.logger.Warn(runFailedLogMessageConstant, zap.Error(failure))
	return failure
}

// deleteResource issues the single DELETE of the absent branch. Only 204 counts as success.
func (service *Service) deleteResource(executionContext context.Context, currentRun *run, request gogsapi.Request) (Result, error) {
	if !currentRun.remote.Exists() {
		return currentRun.finish(false, fmt.Sprintf(alreadyDeletedMessageTemplateConstant, currentRun.key)), nil
	}

	currentRun.step(stepDeleteConstant)
	outcome, executionError := service.client.Execute(executionContext, request)
	if executionError != nil {
		return Result{}, currentRun.fail(executionError)
	}
	if outcome.StatusCode != http.StatusNoContent {
		return Result{}, currentRun.fail(gogsapi.NewUnexpectedStatusError(request, outcome, fmt.Sprintf(deleteFailureSummaryTemplateConstant, currentRun.kind, currentRun.key)))
	}
	return currentRun.finish(true, fmt.Sprintf(deletedMessageTemplateConstant, currentRun.key)), nil
}

// expectStatus executes request and converts any status other than expectedStatus into an UnexpectedStatusError.
func (service *Service) expectStatus(executionContext context.Context, request gogsapi.Request, expectedStatus int, failureSummary string) (gogsapi.Outcome, error) {
	outcome, executionError := service.client.Execute(executionContext, request)
	if executionError != nil {
		return gogsapi.Outcome{}, executionError
	}
	if outcome.StatusCode != expectedStatus {
		return gogsapi.Outcome{}, gogsapi.NewUnexpectedStatusError(request, outcome, failureSummary)
	}
	return outcome, nil
}
