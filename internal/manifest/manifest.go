package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/temirov/gogsctl/internal/desired"
)

const (
	manifestWrapperFieldConstant          = "manifest"
	manifestResourcesFieldConstant        = "resources"
	manifestPathRequiredMessageConstant   = "manifest path must be provided"
	manifestReadErrorTemplateConstant     = "failed to read manifest %s: %w"
	manifestParseErrorTemplateConstant    = "failed to parse %s manifest: %w"
	manifestNormalizeErrorTemplate        = "failed to normalize manifest: %w"
	manifestResourceErrorTemplateConstant = "resource %d: %w"
	manifestLoadErrorTemplateConstant     = "%s: %w"
)

var errManifestPathRequired = errors.New(manifestPathRequiredMessageConstant)

// Resource is one declared user or repository. Only the state matching Kind is populated.
type Resource struct {
	Kind       desired.ResourceKind
	User       desired.UserState
	Repository desired.RepositoryState
}

// Manifest lists resources in declaration order.
type Manifest struct {
	Resources []Resource
}

// Load reads, validates, and decodes the manifest at filePath. The format follows the file extension.
func Load(filePath string) (Manifest, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return Manifest{}, errManifestPathRequired
	}

	contentBytes, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return Manifest{}, fmt.Errorf(manifestReadErrorTemplateConstant, trimmedPath, readError)
	}

	loadedManifest, parseError := Parse(contentBytes, DetectFormat(trimmedPath))
	if parseError != nil {
		return Manifest{}, fmt.Errorf(manifestLoadErrorTemplateConstant, trimmedPath, parseError)
	}
	return loadedManifest, nil
}

// Parse validates and decodes manifest content written in format.
// Documents may nest their content under a top-level "manifest" key.
func Parse(content []byte, format Format) (Manifest, error) {
	document, documentError := decodeDocument(content, format)
	if documentError != nil {
		return Manifest{}, documentError
	}
	document = unwrapManifest(document)

	if validationError := validateDocument(document); validationError != nil {
		return Manifest{}, validationError
	}

	rootObject := document.(map[string]any)
	entries := rootObject[manifestResourcesFieldConstant].([]any)
	resources := make([]Resource, 0, len(entries))
	for entryIndex, entry := range entries {
		resource, resourceError := decodeResource(entry.(map[string]any))
		if resourceError != nil {
			return Manifest{}, fmt.Errorf(manifestResourceErrorTemplateConstant, entryIndex+1, resourceError)
		}
		resources = append(resources, resource)
	}
	return Manifest{Resources: resources}, nil
}

// decodeDocument parses content and re-reads it as JSON so that every format yields the same value types.
func decodeDocument(content []byte, format Format) (any, error) {
	var jsonContent []byte
	switch format {
	case FormatJSON, FormatJSONC:
		jsonContent = jsonc.ToJSON(content)
	case FormatTOML:
		var tomlDocument map[string]any
		if decodeError := toml.Unmarshal(content, &tomlDocument); decodeError != nil {
			return nil, fmt.Errorf(manifestParseErrorTemplateConstant, format, decodeError)
		}
		encodedDocument, encodeError := json.Marshal(tomlDocument)
		if encodeError != nil {
			return nil, fmt.Errorf(manifestNormalizeErrorTemplate, encodeError)
		}
		jsonContent = encodedDocument
	default:
		var yamlDocument any
		if decodeError := yaml.Unmarshal(content, &yamlDocument); decodeError != nil {
			return nil, fmt.Errorf(manifestParseErrorTemplateConstant, format, decodeError)
		}
		encodedDocument, encodeError := json.Marshal(yamlDocument)
		if encodeError != nil {
			return nil, fmt.Errorf(manifestNormalizeErrorTemplate, encodeError)
		}
		jsonContent = encodedDocument
	}

	document, unmarshalError := unmarshalJSON(bytes.NewReader(jsonContent))
	if unmarshalError != nil {
		return nil, fmt.Errorf(manifestParseErrorTemplateConstant, format, unmarshalError)
	}
	return document, nil
}

// unmarshalJSON decodes a single JSON value with numbers kept as json.Number, as jsonschema expects.
func unmarshalJSON(reader io.Reader) (any, error) {
	decoder := json.NewDecoder(reader)
	decoder.UseNumber()
	var document any
	if decodeError := decoder.Decode(&document); decodeError != nil {
		return nil, decodeError
	}
	if _, tokenError := decoder.Token(); tokenError != io.EOF {
		return nil, errors.New("invalid character after top-level value")
	}
	return document, nil
}

func unwrapManifest(document any) any {
	rootObject, isObject := document.(map[string]any)
	if !isObject || len(rootObject) != 1 {
		return document
	}
	if wrapped, wrapperPresent := rootObject[manifestWrapperFieldConstant]; wrapperPresent {
		return wrapped
	}
	return document
}
