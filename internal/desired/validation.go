package desired

import (
	"fmt"
	"strings"
)

const (
	validationErrorTemplateConstant        = "%s: %s"
	fieldNameConstant                      = "name"
	fieldUsernameConstant                  = "username"
	fieldStateConstant                     = "state"
	fieldEmailConstant                     = "email"
	fieldPasswordConstant                  = "password"
	fieldMirrorConstant                    = "mirror"
	fieldMirrorSyncConstant                = "mirror_sync"
	fieldSSHKeyNameConstant                = "sshkey_name"
	fieldSSHKeyConstant                    = "sshkey"
	fieldDeployKeyNameConstant             = "deploy_key_name"
	fieldDeployKeyConstant                 = "deploy_key"
	requiredMessageConstant                = "must be provided"
	mirrorWithoutImportMessageConstant     = "mirror enabled but no import_source_url given"
	mirrorSyncWithoutMirrorMessageConstant = "mirror_sync requested, but mirror is disabled"
	keyPairIncompleteTemplateConstant      = "given without %s"
	creationRequirementMessageConstant     = "must be given when the user does not exist yet"
	lifecycleUnsupportedMessageConstant    = "must be present or absent"
)

// ValidationError describes a declaration that violates a constraint. No network call is made after one.
type ValidationError struct {
	FieldName string
	Message   string
}

// Error describes the invalid declaration.
func (validationError ValidationError) Error() string {
	return fmt.Sprintf(validationErrorTemplateConstant, validationError.FieldName, validationError.Message)
}

// ValidateUser checks a user declaration.
func ValidateUser(state UserState) error {
	if len(strings.TrimSpace(state.Username)) == 0 {
		return ValidationError{FieldName: fieldUsernameConstant, Message: requiredMessageConstant}
	}
	if lifecycleError := validateLifecycle(state.Lifecycle); lifecycleError != nil {
		return lifecycleError
	}
	return validateKeyPair(state.SSHKey, fieldSSHKeyNameConstant, fieldSSHKeyConstant)
}

// ValidateUserCreation checks the attributes the server requires to create a user.
func ValidateUserCreation(state UserState) error {
	if len(strings.TrimSpace(state.Password)) == 0 {
		return ValidationError{FieldName: fieldPasswordConstant, Message: creationRequirementMessageConstant}
	}
	if len(strings.TrimSpace(state.Email)) == 0 {
		return ValidationError{FieldName: fieldEmailConstant, Message: creationRequirementMessageConstant}
	}
	return nil
}

// ValidateRepository checks a repository declaration: mirror_sync requires mirror, which requires an import source.
func ValidateRepository(state RepositoryState) error {
	if len(strings.TrimSpace(state.Name)) == 0 {
		return ValidationError{FieldName: fieldNameConstant, Message: requiredMessageConstant}
	}
	if lifecycleError := validateLifecycle(state.Lifecycle); lifecycleError != nil {
		return lifecycleError
	}
	if state.Mirror && !state.Migrated() {
		return ValidationError{FieldName: fieldMirrorConstant, Message: mirrorWithoutImportMessageConstant}
	}
	if state.MirrorSync && !state.Mirror {
		return ValidationError{FieldName: fieldMirrorSyncConstant, Message: mirrorSyncWithoutMirrorMessageConstant}
	}
	return validateKeyPair(state.DeployKey, fieldDeployKeyNameConstant, fieldDeployKeyConstant)
}

func validateLifecycle(lifecycle Lifecycle) error {
	switch lifecycle {
	case LifecyclePresent, LifecycleAbsent:
		return nil
	default:
		return ValidationError{FieldName: fieldStateConstant, Message: lifecycleUnsupportedMessageConstant}
	}
}

func validateKeyPair(key SSHKey, titleFieldName string, materialFieldName string) error {
	titleDeclared := len(strings.TrimSpace(key.Title)) > 0
	materialDeclared := len(strings.TrimSpace(key.Material)) > 0
	switch {
	case titleDeclared && !materialDeclared:
		return ValidationError{FieldName: titleFieldName, Message: fmt.Sprintf(keyPairIncompleteTemplateConstant, materialFieldName)}
	case materialDeclared && !titleDeclared:
		return ValidationError{FieldName: materialFieldName, Message: fmt.Sprintf(keyPairIncompleteTemplateConstant, titleFieldName)}
	default:
		return nil
	}
}
