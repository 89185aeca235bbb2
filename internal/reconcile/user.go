package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/gogsapi"
)

const (
	updateFailureSummaryTemplateConstant = "failed to update user %s"
	userFieldUsernameConstant            = "username"
	userFieldEmailConstant               = "email"
	userFieldPasswordConstant            = "password"
	userFieldFullNameConstant            = "full_name"
	userFieldWebsiteConstant             = "website"
	userFieldLocationConstant            = "location"
	userFieldAdminConstant               = "admin"
	userFieldAllowGitHookConstant        = "allow_git_hook"
	userFieldAllowImportLocalConstant    = "allow_import_local"
)

// userAttribute is a mutable user field settable through the administrative update endpoint.
type userAttribute struct {
	field    string
	declared func(state desired.UserState) (any, bool)
}

// userAttributes lists the updatable fields in the order they are compared.
var userAttributes = []userAttribute{
	{field: userFieldEmailConstant, declared: declaredString(func(state desired.UserState) string { return state.Email })},
	{field: userFieldPasswordConstant, declared: declaredString(func(state desired.UserState) string { return state.Password })},
	{field: userFieldFullNameConstant, declared: declaredString(func(state desired.UserState) string { return state.FullName })},
	{field: userFieldWebsiteConstant, declared: declaredString(func(state desired.UserState) string { return state.Website })},
	{field: userFieldLocationConstant, declared: declaredString(func(state desired.UserState) string { return state.Location })},
	{field: userFieldAdminConstant, declared: declaredBool(func(state desired.UserState) *bool { return state.Admin })},
	{field: userFieldAllowGitHookConstant, declared: declaredBool(func(state desired.UserState) *bool { return state.AllowGitHook })},
	{field: userFieldAllowImportLocalConstant, declared: declaredBool(func(state desired.UserState) *bool { return state.AllowImportLocal })},
}

func declaredString(accessor func(state desired.UserState) string) func(state desired.UserState) (any, bool) {
	return func(state desired.UserState) (any, bool) {
		value := accessor(state)
		if len(strings.TrimSpace(value)) == 0 {
			return nil, false
		}
		return value, true
	}
}

// declaredBool treats false like an undeclared flag, so the API is never asked to clear one.
func declaredBool(accessor func(state desired.UserState) *bool) func(state desired.UserState) (any, bool) {
	return func(state desired.UserState) (any, bool) {
		value := accessor(state)
		if value == nil || !*value {
			return nil, false
		}
		return *value, true
	}
}

// ReconcileUser converges one user account towards state.
func (service *Service) ReconcileUser(executionContext context.Context, state desired.UserState) (Result, error) {
	if validationError := desired.ValidateUser(state); validationError != nil {
		return Result{}, validationError
	}

	key := state.Key()
	currentRun := service.startRun(desired.KindUser, key, state.Lifecycle)

	remoteState, readError := service.reader.FetchUser(executionContext, key)
	if readError != nil {
		return Result{}, currentRun.fail(readError)
	}
	currentRun.remote = remoteState

	if state.Lifecycle == desired.LifecycleAbsent {
		return service.deleteResource(executionContext, currentRun, gogsapi.Request{
			Operation: gogsapi.OperationDeleteUser,
			Method:    gogsapi.MethodDelete,
			Path:      gogsapi.AdminUserPath(key.Name),
		})
	}

	if !remoteState.Exists() {
		if creationError := service.createUser(executionContext, currentRun, state); creationError != nil {
			return Result{}, currentRun.fail(creationError)
		}
	}

	if updateError := service.synchronizeUserAttributes(executionContext, currentRun, state); updateError != nil {
		return Result{}, currentRun.fail(updateError)
	}

	if keyError := service.synchronizeKey(executionContext, currentRun, userKeyEndpoints(key), state.SSHKey); keyError != nil {
		return Result{}, currentRun.fail(keyError)
	}

	return currentRun.finishWithChanges(), nil
}

func (service *Service) createUser(executionContext context.Context, currentRun *run, state desired.UserState) error {
	if validationError := desired.ValidateUserCreation(state); validationError != nil {
		return validationError
	}
	currentRun.step(stepCreateConstant)

	request := gogsapi.Request{
		Operation: gogsapi.OperationCreateUser,
		Method:    gogsapi.MethodPost,
		Path:      gogsapi.AdminUsersPath(),
		Body: gogsapi.Payload{
			userFieldUsernameConstant: currentRun.key.Name,
			userFieldEmailConstant:    state.Email,
			userFieldPasswordConstant: state.Password,
		},
	}
	if _, creationError := service.expectStatus(executionContext, request, http.StatusCreated, fmt.Sprintf(createFailureSummaryTemplateConstant, currentRun.kind, currentRun.key)); creationError != nil {
		return creationError
	}
	currentRun.changes.Append(changeCreatedConstant)
	return nil
}

// synchronizeUserAttributes patches declared attributes that the read did not confirm.
// Fields the server never returns on read always count as changed.
func (service *Service) synchronizeUserAttributes(executionContext context.Context, currentRun *run, state desired.UserState) error {
	payload := gogsapi.Payload{}
	attributesChanged := false
	anyDeclared := false

	for _, attribute := range userAttributes {
		declaredValue, declared := attribute.declared(state)
		if !declared {
			continue
		}
		anyDeclared = true
		remoteValue := currentRun.remote.Field(attribute.field)
		if remoteValue.Exists() && remoteMatches(remoteValue, declaredValue) {
			continue
		}
		payload[attribute.field] = declaredValue
		attributesChanged = true
	}

	if !currentRun.remote.Exists() && !anyDeclared {
		return nil
	}

	if _, emailIncluded := payload[userFieldEmailConstant]; !emailIncluded {
		if remoteEmail := currentRun.remote.Field(userFieldEmailConstant); remoteEmail.Exists() {
			payload[userFieldEmailConstant] = remoteEmail.String()
		}
	}

	currentRun.step(stepAttributeSyncConstant)
	request := gogsapi.Request{
		Operation: gogsapi.OperationUpdateUser,
		Method:    gogsapi.MethodPatch,
		Path:      gogsapi.AdminUserPath(currentRun.key.Name),
		Body:      payload,
	}
	if _, updateError := service.expectStatus(executionContext, request, http.StatusOK, fmt.Sprintf(updateFailureSummaryTemplateConstant, currentRun.key)); updateError != nil {
		return updateError
	}

	if attributesChanged && !currentRun.changes.Contains(changeCreatedConstant) {
		currentRun.changes.Append(changeUpdatedConstant)
	}
	return nil
}

func remoteMatches(remoteValue gjson.Result, declaredValue any) bool {
	switch typedValue := declaredValue.(type) {
	case bool:
		if remoteValue.Type != gjson.True && remoteValue.Type != gjson.False {
			return false
		}
		return remoteValue.Bool() == typedValue
	case string:
		return remoteValue.Type == gjson.String && remoteValue.String() == typedValue
	default:
		return false
	}
}
