package manifest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/utils/flags"
)

const (
	resourceKindFieldConstant            = "kind"
	aliasConflictTemplateConstant        = "%s and its alias %s are both set"
	declarationDecodeErrorTemplate       = "unable to decode %s declaration: %w"
	resourceKindMissingMessageConstant   = "resource kind must be a string"
	mapstructureTagNameConstant          = "mapstructure"
	toggleDecodeErrorTemplateConstant    = "invalid toggle value: %w"
	lifecycleDecodeErrorTemplateConstant = "invalid state: %w"
)

var errResourceKindMissing = errors.New(resourceKindMissingMessageConstant)

// userFieldAliases maps accepted alternative spellings to canonical user fields.
var userFieldAliases = map[string]string{
	"name":        "username",
	"sshkey_file": "sshkey",
}

// repositoryFieldAliases maps accepted alternative spellings to canonical repository fields.
var repositoryFieldAliases = map[string]string{
	"organization": "group",
	"import_url":   "import_source_url",
	"sshkey_name":  "deploy_key_name",
	"sshkey":       "deploy_key",
	"sshkey_file":  "deploy_key",
}

// userDeclaration is the manifest form of a user. Password holds a secret source, SSHKey inline material or @path.
type userDeclaration struct {
	Kind             string `mapstructure:"kind"`
	State            string `mapstructure:"state"`
	Username         string `mapstructure:"username"`
	Email            string `mapstructure:"email"`
	Password         string `mapstructure:"password"`
	FullName         string `mapstructure:"full_name"`
	Website          string `mapstructure:"website"`
	Location         string `mapstructure:"location"`
	Admin            *bool  `mapstructure:"admin"`
	AllowGitHook     *bool  `mapstructure:"allow_git_hook"`
	AllowImportLocal *bool  `mapstructure:"allow_import_local"`
	SSHKeyName       string `mapstructure:"sshkey_name"`
	SSHKey           string `mapstructure:"sshkey"`
}

// repositoryDeclaration is the manifest form of a repository.
type repositoryDeclaration struct {
	Kind            string `mapstructure:"kind"`
	State           string `mapstructure:"state"`
	Name            string `mapstructure:"name"`
	Group           string `mapstructure:"group"`
	Description     string `mapstructure:"description"`
	Public          *bool  `mapstructure:"public"`
	AutoInit        *bool  `mapstructure:"auto_init"`
	Gitignores      string `mapstructure:"gitignores"`
	License         string `mapstructure:"license"`
	Readme          string `mapstructure:"readme"`
	ImportSourceURL string `mapstructure:"import_source_url"`
	ImportUsername  string `mapstructure:"import_username"`
	ImportPassword  string `mapstructure:"import_password"`
	Mirror          *bool  `mapstructure:"mirror"`
	MirrorSync      *bool  `mapstructure:"mirror_sync"`
	DeployKeyName   string `mapstructure:"deploy_key_name"`
	DeployKey       string `mapstructure:"deploy_key"`
}

func decodeResource(entry map[string]any) (Resource, error) {
	kindValue, kindIsString := entry[resourceKindFieldConstant].(string)
	if !kindIsString {
		return Resource{}, errResourceKindMissing
	}
	kind, kindError := desired.ParseResourceKind(kindValue)
	if kindError != nil {
		return Resource{}, kindError
	}

	switch kind {
	case desired.KindUser:
		var declaration userDeclaration
		if decodeError := decodeDeclaration(entry, userFieldAliases, &declaration); decodeError != nil {
			return Resource{}, fmt.Errorf(declarationDecodeErrorTemplate, kind, decodeError)
		}
		state, stateError := declaration.userState()
		if stateError != nil {
			return Resource{}, stateError
		}
		return Resource{Kind: kind, User: state}, nil
	default:
		var declaration repositoryDeclaration
		if decodeError := decodeDeclaration(entry, repositoryFieldAliases, &declaration); decodeError != nil {
			return Resource{}, fmt.Errorf(declarationDecodeErrorTemplate, kind, decodeError)
		}
		state, stateError := declaration.repositoryState()
		if stateError != nil {
			return Resource{}, stateError
		}
		return Resource{Kind: kind, Repository: state}, nil
	}
}

// decodeDeclaration decodes entry into target, rejecting fields the resource kind does not define.
func decodeDeclaration(entry map[string]any, aliases map[string]string, target any) error {
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.ComposeDecodeHookFunc(aliasRenamingHook(aliases), toggleDecodeHook),
		ErrorUnused: true,
		TagName:     mapstructureTagNameConstant,
		Result:      target,
	})
	if decoderError != nil {
		return decoderError
	}
	return decoder.Decode(entry)
}

// aliasRenamingHook rewrites alias keys to their canonical names before a map is decoded into a struct.
func aliasRenamingHook(aliases map[string]string) mapstructure.DecodeHookFuncType {
	return func(sourceType reflect.Type, targetType reflect.Type, data any) (any, error) {
		if targetType.Kind() != reflect.Struct {
			return data, nil
		}
		fields, isMap := data.(map[string]any)
		if !isMap {
			return data, nil
		}

		renamed := make(map[string]any, len(fields))
		for fieldName, fieldValue := range fields {
			renamed[fieldName] = fieldValue
		}
		for aliasName, canonicalName := range aliases {
			aliasValue, aliasDeclared := renamed[aliasName]
			if !aliasDeclared {
				continue
			}
			if _, canonicalDeclared := renamed[canonicalName]; canonicalDeclared {
				return nil, fmt.Errorf(aliasConflictTemplateConstant, canonicalName, aliasName)
			}
			renamed[canonicalName] = aliasValue
			delete(renamed, aliasName)
		}
		return renamed, nil
	}
}

// toggleDecodeHook accepts yes/no style strings for boolean fields.
func toggleDecodeHook(sourceType reflect.Type, targetType reflect.Type, data any) (any, error) {
	if sourceType.Kind() != reflect.String || targetType.Kind() != reflect.Bool {
		return data, nil
	}
	parsedValue, parseError := flags.ParseToggle(data.(string))
	if parseError != nil {
		return nil, fmt.Errorf(toggleDecodeErrorTemplateConstant, parseError)
	}
	return parsedValue, nil
}

func (declaration userDeclaration) userState() (desired.UserState, error) {
	lifecycle, lifecycleError := desired.ParseLifecycle(declaration.State)
	if lifecycleError != nil {
		return desired.UserState{}, fmt.Errorf(lifecycleDecodeErrorTemplateConstant, lifecycleError)
	}
	return desired.UserState{
		Lifecycle:        lifecycle,
		Username:         strings.TrimSpace(declaration.Username),
		Email:            strings.TrimSpace(declaration.Email),
		Password:         declaration.Password,
		FullName:         declaration.FullName,
		Website:          strings.TrimSpace(declaration.Website),
		Location:         declaration.Location,
		Admin:            declaration.Admin,
		AllowGitHook:     declaration.AllowGitHook,
		AllowImportLocal: declaration.AllowImportLocal,
		SSHKey:           desired.SSHKey{Title: strings.TrimSpace(declaration.SSHKeyName), Material: strings.TrimSpace(declaration.SSHKey)},
	}, nil
}

func (declaration repositoryDeclaration) repositoryState() (desired.RepositoryState, error) {
	lifecycle, lifecycleError := desired.ParseLifecycle(declaration.State)
	if lifecycleError != nil {
		return desired.RepositoryState{}, fmt.Errorf(lifecycleDecodeErrorTemplateConstant, lifecycleError)
	}
	return desired.RepositoryState{
		Lifecycle:       lifecycle,
		Name:            strings.TrimSpace(declaration.Name),
		Group:           strings.TrimSpace(declaration.Group),
		Description:     declaration.Description,
		Public:          valueOrFalse(declaration.Public),
		AutoInit:        declaration.AutoInit,
		Gitignores:      declaration.Gitignores,
		License:         declaration.License,
		Readme:          declaration.Readme,
		ImportSourceURL: strings.TrimSpace(declaration.ImportSourceURL),
		ImportUsername:  declaration.ImportUsername,
		ImportPassword:  declaration.ImportPassword,
		Mirror:          valueOrFalse(declaration.Mirror),
		MirrorSync:      valueOrFalse(declaration.MirrorSync),
		DeployKey:       desired.SSHKey{Title: strings.TrimSpace(declaration.DeployKeyName), Material: strings.TrimSpace(declaration.DeployKey)},
	}, nil
}

func valueOrFalse(value *bool) bool {
	return value != nil && *value
}
