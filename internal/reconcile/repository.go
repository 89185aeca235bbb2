package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/gogsapi"
)

const (
	createFailureSummaryTemplateConstant     = "failed to create %s %s"
	mirrorNotFoundSummaryTemplateConstant    = "%s is not a mirror"
	mirrorSyncFailureSummaryTemplateConstant = "failed to sync mirror %s"
	creationVariantPlainConstant             = "plain"
	creationVariantMigrateConstant           = "migrate"
	logFieldCreationVariantConstant          = "creation_variant"

	desiredFieldName            = "name"
	desiredFieldDescription     = "description"
	desiredFieldAutoInit        = "auto_init"
	desiredFieldGitignores      = "gitignores"
	desiredFieldLicense         = "license"
	desiredFieldReadme          = "readme"
	desiredFieldPublic          = "public"
	desiredFieldImportSourceURL = "import_source_url"
	desiredFieldImportUsername  = "import_username"
	desiredFieldImportPassword  = "import_password"
	desiredFieldOwner           = "owner"
	desiredFieldMirror          = "mirror"

	autoInitDefaultReadmeConstant = "Default"
)

// creationVariant selects between the two mutually exclusive repository creation endpoints.
type creationVariant int

const (
	plainCreation creationVariant = iota
	migrateCreation
)

// String names the variant in diagnostics.
func (variant creationVariant) String() string {
	if variant == migrateCreation {
		return creationVariantMigrateConstant
	}
	return creationVariantPlainConstant
}

// creationFieldMapping pairs a declared attribute with the API field it is sent as.
type creationFieldMapping struct {
	DesiredField string
	APIField     string
}

var plainCreationFieldMappings = []creationFieldMapping{
	{DesiredField: desiredFieldName, APIField: "name"},
	{DesiredField: desiredFieldDescription, APIField: "description"},
	{DesiredField: desiredFieldAutoInit, APIField: "auto_init"},
	{DesiredField: desiredFieldGitignores, APIField: "gitignores"},
	{DesiredField: desiredFieldLicense, APIField: "license"},
	{DesiredField: desiredFieldReadme, APIField: "readme"},
	{DesiredField: desiredFieldPublic, APIField: "private"},
}

var migrateCreationFieldMappings = []creationFieldMapping{
	{DesiredField: desiredFieldImportSourceURL, APIField: "clone_addr"},
	{DesiredField: desiredFieldImportUsername, APIField: "auth_username"},
	{DesiredField: desiredFieldImportPassword, APIField: "auth_password"},
	{DesiredField: desiredFieldOwner, APIField: "uid"},
	{DesiredField: desiredFieldName, APIField: "repo_name"},
	{DesiredField: desiredFieldMirror, APIField: "mirror"},
	{DesiredField: desiredFieldDescription, APIField: "description"},
	{DesiredField: desiredFieldPublic, APIField: "private"},
}

// repositoryCreation is the resolved creation request for one variant.
type repositoryCreation struct {
	variant   creationVariant
	operation gogsapi.OperationName
	path      string
	mappings  []creationFieldMapping
}

func selectRepositoryCreation(state desired.RepositoryState) (repositoryCreation, error) {
	if state.Migrated() {
		return repositoryCreation{
			variant:   migrateCreation,
			operation: gogsapi.OperationMigrateRepository,
			path:      gogsapi.MigrateRepositoryPath(),
			mappings:  migrateCreationFieldMappings,
		}, nil
	}

	creationPath, pathError := gogsapi.ResolveOwnerScope(state.Group).RepositoryCreationPath(state.Group)
	if pathError != nil {
		return repositoryCreation{}, pathError
	}
	return repositoryCreation{
		variant:   plainCreation,
		operation: gogsapi.OperationCreateRepository,
		path:      creationPath,
		mappings:  plainCreationFieldMappings,
	}, nil
}

// payload copies the declared attributes named by the variant's mappings into an API body.
func (creation repositoryCreation) payload(state desired.RepositoryState, key desired.ResourceKey) gogsapi.Payload {
	declaredAttributes := declaredRepositoryAttributes(state, key)
	body := gogsapi.Payload{}
	for _, mapping := range creation.mappings {
		attributeValue, declared := declaredAttributes[mapping.DesiredField]
		if !declared {
			continue
		}
		body[mapping.APIField] = attributeValue
	}
	return body
}

// declaredRepositoryAttributes lists the attributes the declaration sets. Visibility is sent inverted as private.
// Auto-initialized repositories get the Default readme unless one is declared; the server rejects auto_init without it.
func declaredRepositoryAttributes(state desired.RepositoryState, key desired.ResourceKey) map[string]any {
	attributes := map[string]any{
		desiredFieldName:   key.Name,
		desiredFieldOwner:  key.Owner,
		desiredFieldPublic: !state.Public,
		desiredFieldMirror: state.Mirror,
	}
	addDeclaredString(attributes, desiredFieldDescription, state.Description)
	addDeclaredString(attributes, desiredFieldGitignores, state.Gitignores)
	addDeclaredString(attributes, desiredFieldLicense, state.License)
	addDeclaredString(attributes, desiredFieldReadme, state.Readme)
	addDeclaredString(attributes, desiredFieldImportSourceURL, state.ImportSourceURL)
	addDeclaredString(attributes, desiredFieldImportUsername, state.ImportUsername)
	addDeclaredString(attributes, desiredFieldImportPassword, state.ImportPassword)
	if state.AutoInit != nil {
		attributes[desiredFieldAutoInit] = *state.AutoInit
		if _, readmeDeclared := attributes[desiredFieldReadme]; *state.AutoInit && !readmeDeclared {
			attributes[desiredFieldReadme] = autoInitDefaultReadmeConstant
		}
	}
	return attributes
}

func addDeclaredString(attributes map[string]any, fieldName string, value string) {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return
	}
	attributes[fieldName] = trimmedValue
}

// ReconcileRepository converges one repository towards state.
func (service *Service) ReconcileRepository(executionContext context.Context, state desired.RepositoryState) (Result, error) {
	if validationError := desired.ValidateRepository(state); validationError != nil {
		return Result{}, validationError
	}

	key := state.Key(service.client.LoginUser())
	currentRun := service.startRun(desired.KindRepository, key, state.Lifecycle)

	remoteState, readError := service.reader.FetchRepository(executionContext, key)
	if readError != nil {
		return Result{}, currentRun.fail(readError)
	}
	currentRun.remote = remoteState

	if state.Lifecycle == desired.LifecycleAbsent {
		return service.deleteResource(executionContext, currentRun, gogsapi.Request{
			Operation: gogsapi.OperationDeleteRepository,
			Method:    gogsapi.MethodDelete,
			Path:      gogsapi.RepositoryPath(key.Owner, key.Name),
		})
	}

	if !remoteState.Exists() {
		if creationError := service.createRepository(executionContext, currentRun, state); creationError != nil {
			return Result{}, currentRun.fail(creationError)
		}
	}

	if keyError := service.synchronizeKey(executionContext, currentRun, repositoryKeyEndpoints(key), state.DeployKey); keyError != nil {
		return Result{}, currentRun.fail(keyError)
	}

	if remoteState.Exists() && state.MirrorSync {
		if mirrorError := service.synchronizeMirror(executionContext, currentRun); mirrorError != nil {
			return Result{}, currentRun.fail(mirrorError)
		}
	}

	return currentRun.finishWithChanges(), nil
}

func (service *Service) createRepository(executionContext context.Context, currentRun *run, state desired.RepositoryState) error {
	creation, selectionError := selectRepositoryCreation(state)
	if selectionError != nil {
		return selectionError
	}
	currentRun.logger.Debug(stepStartedLogMessageConstant, zap.String(logFieldStepConstant, stepCreateConstant), zap.Stringer(logFieldCreationVariantConstant, creation.variant))

	request := gogsapi.Request{
		Operation: creation.operation,
		Method:    gogsapi.MethodPost,
		Path:      creation.path,
		Body:      creation.payload(state, currentRun.key),
	}
	if _, creationError := service.expectStatus(executionContext, request, http.StatusCreated, fmt.Sprintf(createFailureSummaryTemplateConstant, currentRun.kind, currentRun.key)); creationError != nil {
		return creationError
	}
	currentRun.changes.Append(changeCreatedConstant)
	return nil
}

// synchronizeMirror triggers a pull of the mirror source. 404 means the repository is not a mirror.
func (service *Service) synchronizeMirror(executionContext context.Context, currentRun *run) error {
	currentRun.step(stepMirrorSyncConstant)
	request := gogsapi.Request{
		Operation: gogsapi.OperationSyncMirror,
		Method:    gogsapi.MethodPost,
		Path:      gogsapi.MirrorSyncPath(currentRun.key.Owner, currentRun.key.Name),
	}
	outcome, executionError := service.client.Execute(executionContext, request)
	if executionError != nil {
		return executionError
	}
	switch outcome.StatusCode {
	case http.StatusAccepted:
		currentRun.changes.Append(changeSyncedConstant)
		return nil
	case http.StatusNotFound:
		return gogsapi.NewUnexpectedStatusError(request, outcome, fmt.Sprintf(mirrorNotFoundSummaryTemplateConstant, currentRun.key))
	default:
		return gogsapi.NewUnexpectedStatusError(request, outcome, fmt.Sprintf(mirrorSyncFailureSummaryTemplateConstant, currentRun.key))
	}
}
