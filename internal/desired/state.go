package desired

import (
	"fmt"
	"strings"
)

const (
	lifecyclePresentValueConstant       = "present"
	lifecycleAbsentValueConstant        = "absent"
	kindUserValueConstant               = "user"
	kindRepositoryValueConstant         = "repository"
	kindRepositoryShortValueConstant    = "repo"
	kindProjectValueConstant            = "project"
	resourceKeySeparatorConstant        = "/"
	lifecycleInvalidTemplateConstant    = "unsupported state %q (expected present or absent)"
	resourceKindInvalidTemplateConstant = "unsupported resource kind %q (expected user or repository)"
)

// Lifecycle is the declared target existence state of a resource.
type Lifecycle string

// Supported lifecycles.
const (
	LifecyclePresent Lifecycle = lifecyclePresentValueConstant
	LifecycleAbsent  Lifecycle = lifecycleAbsentValueConstant
)

// ParseLifecycle normalizes textual lifecycle values. An empty value means present.
func ParseLifecycle(lifecycleValue string) (Lifecycle, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(lifecycleValue))
	switch Lifecycle(normalizedValue) {
	case "", LifecyclePresent:
		return LifecyclePresent, nil
	case LifecycleAbsent:
		return LifecycleAbsent, nil
	default:
		return "", fmt.Errorf(lifecycleInvalidTemplateConstant, lifecycleValue)
	}
}

// ResourceKind distinguishes users from repositories.
type ResourceKind string

// Supported resource kinds.
const (
	KindUser       ResourceKind = kindUserValueConstant
	KindRepository ResourceKind = kindRepositoryValueConstant
)

// ParseResourceKind normalizes textual resource kind values. "repo" and "project" name repositories.
func ParseResourceKind(kindValue string) (ResourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(kindValue)) {
	case kindUserValueConstant:
		return KindUser, nil
	case kindRepositoryValueConstant, kindRepositoryShortValueConstant, kindProjectValueConstant:
		return KindRepository, nil
	default:
		return "", fmt.Errorf(resourceKindInvalidTemplateConstant, kindValue)
	}
}

// ResourceKey addresses a resource in the API.
type ResourceKey struct {
	Owner string
	Name  string
}

// String renders owner/name for repositories and the bare name for users.
func (key ResourceKey) String() string {
	if len(key.Owner) == 0 {
		return key.Name
	}
	return key.Owner + resourceKeySeparatorConstant + key.Name
}

// SSHKey is a named public key. Both fields are set or both are empty in a valid declaration.
type SSHKey struct {
	Title    string
	Material string
}

// Declared reports whether both the title and the key material are present.
func (key SSHKey) Declared() bool {
	return len(strings.TrimSpace(key.Title)) > 0 && len(strings.TrimSpace(key.Material)) > 0
}

// UserState is the declared state of a user account.
type UserState struct {
	Lifecycle        Lifecycle
	Username         string
	Email            string
	Password         string
	FullName         string
	Website          string
	Location         string
	Admin            *bool
	AllowGitHook     *bool
	AllowImportLocal *bool
	SSHKey           SSHKey
}

// Key derives the resource key of the user.
func (state UserState) Key() ResourceKey {
	return ResourceKey{Name: strings.TrimSpace(state.Username)}
}

// RepositoryState is the declared state of a repository.
type RepositoryState struct {
	Lifecycle       Lifecycle
	Name            string
	Group           string
	Description     string
	Public          bool
	AutoInit        *bool
	Gitignores      string
	License         string
	Readme          string
	ImportSourceURL string
	ImportUsername  string
	ImportPassword  string
	Mirror          bool
	MirrorSync      bool
	DeployKey       SSHKey
}

// Key derives the resource key of the repository. The owner is the declared group or, without one, the login user.
func (state RepositoryState) Key(loginUser string) ResourceKey {
	owner := strings.TrimSpace(state.Group)
	if len(owner) == 0 {
		owner = strings.TrimSpace(loginUser)
	}
	return ResourceKey{Owner: owner, Name: strings.TrimSpace(state.Name)}
}

// Migrated reports whether the repository is created by importing an external source.
func (state RepositoryState) Migrated() bool {
	return len(strings.TrimSpace(state.ImportSourceURL)) > 0
}

// Bool returns a pointer to value for optional boolean attributes.
func Bool(value bool) *bool {
	return &value
}
