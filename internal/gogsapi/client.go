package gogsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single request when the configuration leaves the timeout unset.
	DefaultTimeout = 30 * time.Second

	contentTypeHeaderNameConstant        = "Content-Type"
	acceptHeaderNameConstant             = "Accept"
	requestIdentifierHeaderNameConstant  = "X-Request-ID"
	jsonContentTypeConstant              = "application/json"
	baseURLMissingMessageConstant        = "server url must be provided"
	loginUserMissingMessageConstant      = "login user must be provided"
	baseURLSchemeTemplateConstant        = "server url %q must start with http:// or https://"
	requestEncodingErrorTemplateConstant = "unable to encode request body: %w"
	requestBuildErrorTemplateConstant    = "unable to build request: %w"
	responseReadErrorTemplateConstant    = "unable to read response body: %w"
	documentNotStructuredMessageConstant = "response body is not a JSON object or array"
	documentInvalidMessageConstant       = "response body is not valid JSON"
	serverMessageFieldConstant           = "message"
	httpSchemePrefixConstant             = "http://"
	httpsSchemePrefixConstant            = "https://"
	urlPathSeparatorConstant             = "/"
	logMessageRequestCompletedConstant   = "gogs api request completed"
	logMessageRequestFailedConstant      = "gogs api request failed"
	logFieldOperationConstant            = "operation"
	logFieldMethodConstant               = "method"
	logFieldPathConstant                 = "path"
	logFieldStatusConstant               = "status"
	logFieldRequestIdentifierConstant    = "request_id"
	logFieldDurationConstant             = "duration"
	logFieldRequestEchoConstant          = "request"
)

// Method enumerates the HTTP verbs used against the API.
type Method string

// Supported HTTP methods.
const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// OperationName identifies an API operation in diagnostics and metrics.
type OperationName string

// Operations issued by the reconciler.
const (
	OperationReadUser          OperationName = "ReadUser"
	OperationCreateUser        OperationName = "CreateUser"
	OperationUpdateUser        OperationName = "UpdateUser"
	OperationDeleteUser        OperationName = "DeleteUser"
	OperationListUserKeys      OperationName = "ListUserKeys"
	OperationAddUserKey        OperationName = "AddUserKey"
	OperationReadRepository    OperationName = "ReadRepository"
	OperationCreateRepository  OperationName = "CreateRepository"
	OperationMigrateRepository OperationName = "MigrateRepository"
	OperationDeleteRepository  OperationName = "DeleteRepository"
	OperationListDeployKeys    OperationName = "ListDeployKeys"
	OperationAddDeployKey      OperationName = "AddDeployKey"
	OperationSyncMirror        OperationName = "SyncMirror"
)

// Payload is a JSON object request body.
type Payload map[string]any

// Request describes one API call relative to the configured server URL.
type Request struct {
	Operation OperationName
	Method    Method
	Path      string
	Body      Payload
}

// Outcome is the normalized response of one API call.
type Outcome struct {
	StatusCode        int
	Document          []byte
	RawBody           string
	RequestIdentifier string
}

// HasDocument reports whether the response carried a JSON document.
func (outcome Outcome) HasDocument() bool {
	return len(outcome.Document) > 0
}

// Field looks up a value in the decoded document using gjson path syntax.
func (outcome Outcome) Field(path string) gjson.Result {
	if !outcome.HasDocument() {
		return gjson.Result{}
	}
	return gjson.GetBytes(outcome.Document, path)
}

// ServerMessage extracts the most descriptive message the server returned.
func (outcome Outcome) ServerMessage() string {
	if messageField := outcome.Field(serverMessageFieldConstant); messageField.Exists() {
		if trimmedMessage := strings.TrimSpace(messageField.String()); len(trimmedMessage) > 0 {
			return trimmedMessage
		}
	}
	if trimmedBody := strings.TrimSpace(outcome.RawBody); len(trimmedBody) > 0 {
		return trimmedBody
	}
	return http.StatusText(outcome.StatusCode)
}

// Configuration captures the server location and credentials.
type Configuration struct {
	BaseURL       string
	LoginUser     string
	LoginPassword string
	Timeout       time.Duration
}

// HTTPClient executes HTTP requests.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// ClientDependencies supplies optional collaborators for the Client.
type ClientDependencies struct {
	HTTPClient                 HTTPClient
	Logger                     *zap.Logger
	EventObserver              RequestEventObserver
	Metrics                    *Metrics
	RequestIdentifierGenerator func() string
}

// Client issues authenticated JSON requests against a Gogs server.
type Client struct {
	configuration              Configuration
	httpClient                 HTTPClient
	logger                     *zap.Logger
	eventObserver              RequestEventObserver
	metrics                    *Metrics
	requestIdentifierGenerator func() string
}

var (
	errBaseURLMissing   = errors.New(baseURLMissingMessageConstant)
	errLoginUserMissing = errors.New(loginUserMissingMessageConstant)
)

// NewClient validates the configuration and constructs a Client.
func NewClient(configuration Configuration, dependencies ClientDependencies) (*Client, error) {
	trimmedBaseURL := strings.TrimSpace(configuration.BaseURL)
	if len(trimmedBaseURL) == 0 {
		return nil, errBaseURLMissing
	}
	if !strings.HasPrefix(trimmedBaseURL, httpSchemePrefixConstant) && !strings.HasPrefix(trimmedBaseURL, httpsSchemePrefixConstant) {
		return nil, fmt.Errorf(baseURLSchemeTemplateConstant, trimmedBaseURL)
	}
	if len(strings.TrimSpace(configuration.LoginUser)) == 0 {
		return nil, errLoginUserMissing
	}

	normalizedConfiguration := configuration
	normalizedConfiguration.BaseURL = strings.TrimRight(trimmedBaseURL, urlPathSeparatorConstant)
	normalizedConfiguration.LoginUser = strings.TrimSpace(configuration.LoginUser)
	if normalizedConfiguration.Timeout <= 0 {
		normalizedConfiguration.Timeout = DefaultTimeout
	}

	httpClient := dependencies.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	eventObserver := dependencies.EventObserver
	if eventObserver == nil {
		eventObserver = noopRequestEventObserver{}
	}

	requestIdentifierGenerator := dependencies.RequestIdentifierGenerator
	if requestIdentifierGenerator == nil {
		requestIdentifierGenerator = uuid.NewString
	}

	return &Client{
		configuration:              normalizedConfiguration,
		httpClient:                 httpClient,
		logger:                     logger,
		eventObserver:              eventObserver,
		metrics:                    dependencies.Metrics,
		requestIdentifierGenerator: requestIdentifierGenerator,
	}, nil
}

// LoginUser returns the authenticated account name.
func (client *Client) LoginUser() string {
	return client.configuration.LoginUser
}

// Execute performs the request and returns its outcome. Non-2xx statuses are not errors.
func (client *Client) Execute(executionContext context.Context, request Request) (Outcome, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	descriptor := RequestDescriptor{
		Operation:         request.Operation,
		Method:            request.Method,
		Path:              request.Path,
		RequestIdentifier: client.requestIdentifierGenerator(),
	}
	client.eventObserver.RequestStarted(descriptor)
	startTime := time.Now()

	outcome, executionError := client.execute(executionContext, request, descriptor)
	duration := time.Since(startTime)
	if executionError != nil {
		client.metrics.ObserveFailure(request.Operation, request.Method, duration)
		client.eventObserver.RequestFailed(descriptor, executionError)
		client.logger.Debug(
			logMessageRequestFailedConstant,
			zap.String(logFieldOperationConstant, string(request.Operation)),
			zap.String(logFieldRequestIdentifierConstant, descriptor.RequestIdentifier),
			zap.Stringer(logFieldRequestEchoConstant, NewRequestEcho(request)),
			zap.Duration(logFieldDurationConstant, duration),
			zap.Error(executionError),
		)
		return Outcome{}, executionError
	}

	client.metrics.ObserveResponse(request.Operation, request.Method, outcome.StatusCode, duration)
	client.eventObserver.RequestCompleted(descriptor, outcome)
	client.logger.Debug(
		logMessageRequestCompletedConstant,
		zap.String(logFieldOperationConstant, string(request.Operation)),
		zap.String(logFieldMethodConstant, string(request.Method)),
		zap.String(logFieldPathConstant, request.Path),
		zap.Int(logFieldStatusConstant, outcome.StatusCode),
		zap.String(logFieldRequestIdentifierConstant, descriptor.RequestIdentifier),
		zap.Duration(logFieldDurationConstant, duration),
	)

	return outcome, nil
}

func (client *Client) execute(executionContext context.Context, request Request, descriptor RequestDescriptor) (Outcome, error) {
	var bodyReader io.Reader
	if request.Body != nil {
		encodedBody, encodingError := json.Marshal(request.Body)
		if encodingError != nil {
			return Outcome{}, fmt.Errorf(requestEncodingErrorTemplateConstant, encodingError)
		}
		bodyReader = bytes.NewReader(encodedBody)
	}

	timeoutContext, cancel := context.WithTimeout(executionContext, client.configuration.Timeout)
	defer cancel()

	httpRequest, requestError := http.NewRequestWithContext(timeoutContext, string(request.Method), client.resolveURL(request.Path), bodyReader)
	if requestError != nil {
		return Outcome{}, fmt.Errorf(requestBuildErrorTemplateConstant, requestError)
	}
	if bodyReader != nil {
		httpRequest.Header.Set(contentTypeHeaderNameConstant, jsonContentTypeConstant)
	}
	httpRequest.Header.Set(acceptHeaderNameConstant, jsonContentTypeConstant)
	httpRequest.Header.Set(requestIdentifierHeaderNameConstant, descriptor.RequestIdentifier)
	httpRequest.SetBasicAuth(client.configuration.LoginUser, client.configuration.LoginPassword)

	httpResponse, transportFailure := client.httpClient.Do(httpRequest)
	if transportFailure != nil {
		return Outcome{}, TransportError{Operation: request.Operation, Method: request.Method, Path: request.Path, Cause: transportFailure}
	}
	defer httpResponse.Body.Close()

	responseBody, readError := io.ReadAll(httpResponse.Body)
	if readError != nil {
		return Outcome{}, TransportError{
			Operation: request.Operation,
			Method:    request.Method,
			Path:      request.Path,
			Cause:     fmt.Errorf(responseReadErrorTemplateConstant, readError),
		}
	}

	return decodeOutcome(request.Operation, httpResponse.StatusCode, responseBody, descriptor.RequestIdentifier)
}

func (client *Client) resolveURL(path string) string {
	return client.configuration.BaseURL + urlPathSeparatorConstant + strings.TrimLeft(path, urlPathSeparatorConstant)
}

func decodeOutcome(operation OperationName, statusCode int, responseBody []byte, requestIdentifier string) (Outcome, error) {
	outcome := Outcome{StatusCode: statusCode, RequestIdentifier: requestIdentifier}
	trimmedBody := bytes.TrimSpace(responseBody)
	if len(trimmedBody) == 0 {
		return outcome, nil
	}

	successful := statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
	if !gjson.ValidBytes(trimmedBody) {
		if successful {
			return Outcome{}, MalformedResponseError{Operation: operation, StatusCode: statusCode, Cause: errors.New(documentInvalidMessageConstant)}
		}
		outcome.RawBody = string(trimmedBody)
		return outcome, nil
	}

	parsedDocument := gjson.ParseBytes(trimmedBody)
	if parsedDocument.Type == gjson.Null {
		return outcome, nil
	}
	if !parsedDocument.IsObject() && !parsedDocument.IsArray() {
		if successful {
			return Outcome{}, MalformedResponseError{Operation: operation, StatusCode: statusCode, Cause: errors.New(documentNotStructuredMessageConstant)}
		}
		outcome.RawBody = string(trimmedBody)
		return outcome, nil
	}

	outcome.Document = trimmedBody
	return outcome, nil
}
