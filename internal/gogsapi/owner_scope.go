package gogsapi

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ownerScopeUserConstant                 OwnerScope = "user"
	ownerScopeOrganizationConstant         OwnerScope = "org"
	ownerScopeInvalidTemplateConstant                 = "owner scope %q is not supported"
	ownerScopeOrganizationNameMissingConst            = "organization name must be provided for organization scope"
)

// OwnerScope enumerates the namespaces a repository can be created in.
type OwnerScope string

// UserOwnerScope creates repositories under the authenticated login user.
const UserOwnerScope OwnerScope = ownerScopeUserConstant

// OrganizationOwnerScope creates repositories under an organization.
const OrganizationOwnerScope OwnerScope = ownerScopeOrganizationConstant

// ResolveOwnerScope selects the organization scope when a group is declared.
func ResolveOwnerScope(groupName string) OwnerScope {
	if len(strings.TrimSpace(groupName)) > 0 {
		return OrganizationOwnerScope
	}
	return UserOwnerScope
}

// RepositoryCreationPath resolves the plain repository creation endpoint for the scope.
func (ownerScope OwnerScope) RepositoryCreationPath(groupName string) (string, error) {
	switch ownerScope {
	case OrganizationOwnerScope:
		trimmedGroupName := strings.TrimSpace(groupName)
		if len(trimmedGroupName) == 0 {
			return "", errors.New(ownerScopeOrganizationNameMissingConst)
		}
		return joinAPIPath(organizationSegmentConstant, trimmedGroupName, repositoriesSegmentConstant), nil
	case UserOwnerScope:
		return joinAPIPath(userSegmentConstant, repositoriesSegmentConstant), nil
	default:
		return "", fmt.Errorf(ownerScopeInvalidTemplateConstant, string(ownerScope))
	}
}
