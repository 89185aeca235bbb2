package reconcile

import (
	"context"
	"fmt"
	"net/http"

	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/gogsapi"
)

const (
	keyListFailureSummaryTemplateConstant = "failed to list keys of %s"
	keyAddFailureSummaryTemplateConstant  = "failed to add key %q to %s"
	keyTitleFieldConstant                 = "title"
	keyMaterialFieldConstant              = "key"
	keyMaterialListPathConstant           = "#.key"
)

// keyEndpoints addresses the key collection of one resource.
type keyEndpoints struct {
	listOperation gogsapi.OperationName
	addOperation  gogsapi.OperationName
	path          string
}

func repositoryKeyEndpoints(key desired.ResourceKey) keyEndpoints {
	return keyEndpoints{
		listOperation: gogsapi.OperationListDeployKeys,
		addOperation:  gogsapi.OperationAddDeployKey,
		path:          gogsapi.RepositoryKeysPath(key.Owner, key.Name),
	}
}

func userKeyEndpoints(key desired.ResourceKey) keyEndpoints {
	return keyEndpoints{
		listOperation: gogsapi.OperationListUserKeys,
		addOperation:  gogsapi.OperationAddUserKey,
		path:          gogsapi.AdminUserKeysPath(key.Name),
	}
}

// synchronizeKey adds the declared key unless its material is already registered under any title.
// Existing keys are never removed or replaced.
func (service *Service) synchronizeKey(executionContext context.Context, currentRun *run, endpoints keyEndpoints, declaredKey desired.SSHKey) error {
	if !declaredKey.Declared() {
		return nil
	}
	currentRun.step(stepKeySyncConstant)

	listRequest := gogsapi.Request{
		Operation: endpoints.listOperation,
		Method:    gogsapi.MethodGet,
		Path:      endpoints.path,
	}
	listOutcome, listError := service.expectStatus(executionContext, listRequest, http.StatusOK, fmt.Sprintf(keyListFailureSummaryTemplateConstant, currentRun.key))
	if listError != nil {
		return listError
	}

	for _, registeredMaterial := range listOutcome.Field(keyMaterialListPathConstant).Array() {
		if registeredMaterial.String() == declaredKey.Material {
			return nil
		}
	}

	addRequest := gogsapi.Request{
		Operation: endpoints.addOperation,
		Method:    gogsapi.MethodPost,
		Path:      endpoints.path,
		Body: gogsapi.Payload{
			keyTitleFieldConstant:    declaredKey.Title,
			keyMaterialFieldConstant: declaredKey.Material,
		},
	}
	if _, addError := service.expectStatus(executionContext, addRequest, http.StatusCreated, fmt.Sprintf(keyAddFailureSummaryTemplateConstant, declaredKey.Title, currentRun.key)); addError != nil {
		return addError
	}
	currentRun.changes.Append(changeKeyUpdatedConstant)
	return nil
}
