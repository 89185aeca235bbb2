package gogsapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// RedactedValueMask replaces secret values in reported request echoes.
	RedactedValueMask                   = "********"
	requestEchoTemplateConstant         = "%s %s"
	requestEchoWithBodyTemplateConstant = "%s %s %s"
	unrenderableBodyPlaceholder         = "<unrenderable body>"
)

// secretPayloadFields lists body fields that never appear in diagnostics.
var secretPayloadFields = map[string]struct{}{
	"password":      {},
	"auth_password": {},
}

// RequestEcho describes an issued request for diagnostics with secrets masked.
type RequestEcho struct {
	Method Method
	Path   string
	Body   Payload
}

// NewRequestEcho builds a diagnostic copy of the request. The request itself is left untouched.
func NewRequestEcho(request Request) RequestEcho {
	return RequestEcho{
		Method: request.Method,
		Path:   request.Path,
		Body:   RedactPayload(request.Body),
	}
}

// String renders the echo as "METHOD path {json}".
func (echo RequestEcho) String() string {
	if len(echo.Body) == 0 {
		return fmt.Sprintf(requestEchoTemplateConstant, echo.Method, echo.Path)
	}
	encodedBody, encodingError := json.Marshal(echo.Body)
	if encodingError != nil {
		return fmt.Sprintf(requestEchoWithBodyTemplateConstant, echo.Method, echo.Path, unrenderableBodyPlaceholder)
	}
	return fmt.Sprintf(requestEchoWithBodyTemplateConstant, echo.Method, echo.Path, string(encodedBody))
}

// RedactPayload returns a copy of payload with secret fields masked.
func RedactPayload(payload Payload) Payload {
	if payload == nil {
		return nil
	}
	redacted := make(Payload, len(payload))
	for fieldName, fieldValue := range payload {
		if _, secret := secretPayloadFields[strings.ToLower(fieldName)]; secret {
			redacted[fieldName] = RedactedValueMask
			continue
		}
		redacted[fieldName] = fieldValue
	}
	return redacted
}
