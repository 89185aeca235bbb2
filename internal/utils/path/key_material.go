package pathutils

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	keyMaterialFileReferencePrefixConstant = "@"
	keyMaterialPathMissingMessageConstant  = "key file reference must name a path"
	keyMaterialReadErrorTemplateConstant   = "unable to read key file %s: %w"
	keyMaterialEmptyTemplateConstant       = "key file %s is empty"
)

// FileReader reads the contents of a file path.
type FileReader func(path string) ([]byte, error)

// KeyMaterialLoader resolves public key declarations that are either inline or an @path file reference.
type KeyMaterialLoader struct {
	homeExpander *HomeExpander
	fileReader   FileReader
}

// NewKeyMaterialLoader constructs a loader reading from the local filesystem.
func NewKeyMaterialLoader() *KeyMaterialLoader {
	return NewKeyMaterialLoaderWithDependencies(nil, nil)
}

// NewKeyMaterialLoaderWithDependencies constructs a loader with optional dependency overrides.
func NewKeyMaterialLoaderWithDependencies(homeExpander *HomeExpander, fileReader FileReader) *KeyMaterialLoader {
	if homeExpander == nil {
		homeExpander = NewHomeExpander()
	}
	if fileReader == nil {
		fileReader = os.ReadFile
	}
	return &KeyMaterialLoader{homeExpander: homeExpander, fileReader: fileReader}
}

// Load returns inline material unchanged apart from surrounding whitespace. Values of the form @path,
// including @~/path, are replaced by the trimmed file contents.
func (loader *KeyMaterialLoader) Load(declaredValue string) (string, error) {
	trimmedValue := strings.TrimSpace(declaredValue)
	if !strings.HasPrefix(trimmedValue, keyMaterialFileReferencePrefixConstant) {
		return trimmedValue, nil
	}

	referencedPath := strings.TrimSpace(strings.TrimPrefix(trimmedValue, keyMaterialFileReferencePrefixConstant))
	if len(referencedPath) == 0 {
		return "", errors.New(keyMaterialPathMissingMessageConstant)
	}
	expandedPath := loader.homeExpander.Expand(referencedPath)

	contents, readError := loader.fileReader(expandedPath)
	if readError != nil {
		return "", fmt.Errorf(keyMaterialReadErrorTemplateConstant, expandedPath, readError)
	}
	material := strings.TrimSpace(string(contents))
	if len(material) == 0 {
		return "", fmt.Errorf(keyMaterialEmptyTemplateConstant, expandedPath)
	}
	return material, nil
}
