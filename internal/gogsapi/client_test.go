package gogsapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temirov/gogsctl/internal/gogsapi"
)

const (
	testLoginUserConstant             = "root"
	testLoginPasswordConstant         = "s3cret"
	testRequestIdentifierConstant     = "request-0001"
	testUserPasswordConstant          = "hunter2"
	testUserEmailConstant             = "alice@example.com"
	testMalformedBodyConstant         = "{not json"
	testServerErrorBodyConstant       = "internal failure"
	testMetricsFileNameConstant       = "gogsctl.prom"
	testExpectedCounterLineConstant   = `gogsctl_api_requests_total{method="GET",operation="ReadUser",status="200"} 1`
	testCaseJSONBodyConstant          = "json_body_with_basic_auth"
	testCaseBodylessConstant          = "bodyless_request"
	testCaseEmptyResponseConstant     = "empty_response_body"
	testCaseServerErrorConstant       = "server_error_is_not_an_error"
	testCaseMalformedSuccessConstant  = "malformed_success_body"
	testCaseNullResponseConstant      = "null_body_is_no_document"
	testCaseMalformedFailureConstant  = "malformed_failure_body_is_kept_raw"
	testCaseScalarSuccessBodyConstant = "scalar_success_body"
)

type capturedRequest struct {
	method            string
	path              string
	contentType       string
	requestIdentifier string
	username          string
	password          string
	body              []byte
}

type requestEventObserverMock struct {
	mock.Mock
}

func (observer *requestEventObserverMock) RequestStarted(descriptor gogsapi.RequestDescriptor) {
	observer.Called(descriptor)
}

func (observer *requestEventObserverMock) RequestCompleted(descriptor gogsapi.RequestDescriptor, outcome gogsapi.Outcome) {
	observer.Called(descriptor, outcome)
}

func (observer *requestEventObserverMock) RequestFailed(descriptor gogsapi.RequestDescriptor, failure error) {
	observer.Called(descriptor, failure)
}

func newCapturingServer(testInstance *testing.T, statusCode int, responseBody string, captured *capturedRequest) *httptest.Server {
	testInstance.Helper()
	router := chi.NewRouter()
	router.HandleFunc("/*", func(responseWriter http.ResponseWriter, request *http.Request) {
		bodyBytes, readError := io.ReadAll(request.Body)
		require.NoError(testInstance, readError)
		username, password, _ := request.BasicAuth()
		*captured = capturedRequest{
			method:            request.Method,
			path:              request.URL.Path,
			contentType:       request.Header.Get("Content-Type"),
			requestIdentifier: request.Header.Get("X-Request-ID"),
			username:          username,
			password:          password,
			body:              bodyBytes,
		}
		responseWriter.WriteHeader(statusCode)
		_, _ = responseWriter.Write([]byte(responseBody))
	})
	server := httptest.NewServer(router)
	testInstance.Cleanup(server.Close)
	return server
}

func newTestClient(testInstance *testing.T, baseURL string, dependencies gogsapi.ClientDependencies) *gogsapi.Client {
	testInstance.Helper()
	if dependencies.RequestIdentifierGenerator == nil {
		dependencies.RequestIdentifierGenerator = func() string { return testRequestIdentifierConstant }
	}
	client, clientError := gogsapi.NewClient(gogsapi.Configuration{
		BaseURL:       baseURL + "/",
		LoginUser:     testLoginUserConstant,
		LoginPassword: testLoginPasswordConstant,
		Timeout:       time.Second,
	}, dependencies)
	require.NoError(testInstance, clientError)
	return client
}

func TestClientExecute(testInstance *testing.T) {
	testCases := []struct {
		name                string
		request             gogsapi.Request
		responseStatus      int
		responseBody        string
		expectContentType   string
		expectBody          map[string]any
		expectDocument      bool
		expectRawBody       string
		expectMalformedType bool
	}{
		{
			name: testCaseJSONBodyConstant,
			request: gogsapi.Request{
				Operation: gogsapi.OperationCreateUser,
				Method:    gogsapi.MethodPost,
				Path:      gogsapi.AdminUsersPath(),
				Body:      gogsapi.Payload{"email": testUserEmailConstant, "password": testUserPasswordConstant},
			},
			responseStatus:    http.StatusCreated,
			responseBody:      `{"id":7,"username":"alice"}`,
			expectContentType: "application/json",
			expectBody:        map[string]any{"email": testUserEmailConstant, "password": testUserPasswordConstant},
			expectDocument:    true,
		},
		{
			name: testCaseBodylessConstant,
			request: gogsapi.Request{
				Operation: gogsapi.OperationReadUser,
				Method:    gogsapi.MethodGet,
				Path:      gogsapi.UserPath("alice"),
			},
			responseStatus: http.StatusOK,
			responseBody:   `{"username":"alice"}`,
			expectDocument: true,
		},
		{
			name: testCaseEmptyResponseConstant,
			request: gogsapi.Request{
				Operation: gogsapi.OperationDeleteUser,
				Method:    gogsapi.MethodDelete,
				Path:      gogsapi.AdminUserPath("alice"),
			},
			responseStatus: http.StatusNoContent,
		},
		{
			name: testCaseNullResponseConstant,
			request: gogsapi.Request{
				Operation: gogsapi.OperationSyncMirror,
				Method:    gogsapi.MethodPost,
				Path:      gogsapi.MirrorSyncPath("alice", "demo"),
			},
			responseStatus: http.StatusAccepted,
			responseBody:   " null\n",
		},
		{
			name: testCaseServerErrorConstant,
			request: gogsapi.Request{
				Operation: gogsapi.OperationReadUser,
				Method:    gogsapi.MethodGet,
				Path:      gogsapi.UserPath("alice"),
			},
			responseStatus: http.StatusInternalServerError,
			responseBody:   `{"message":"database locked"}`,
			expectDocument: true,
		},
		{
			name: testCaseMalformedSuccessConstant,
			request: gogsapi.Request{
				Operation: gogsapi.OperationReadUser,
				Method:    gogsapi.MethodGet,
				Path:      gogsapi.UserPath("alice"),
			},
			responseStatus:      http.StatusOK,
			responseBody:        testMalformedBodyConstant,
			expectMalformedType: true,
		},
		{
			name: testCaseScalarSuccessBodyConstant,
			request: gogsapi.Request{
				Operation: gogsapi.OperationReadUser,
				Method:    gogsapi.MethodGet,
				Path:      gogsapi.UserPath("alice"),
			},
			responseStatus:      http.StatusOK,
			responseBody:        `"alice"`,
			expectMalformedType: true,
		},
		{
			name: testCaseMalformedFailureConstant,
			request: gogsapi.Request{
				Operation: gogsapi.OperationReadUser,
				Method:    gogsapi.MethodGet,
				Path:      gogsapi.UserPath("alice"),
			},
			responseStatus: http.StatusBadGateway,
			responseBody:   testServerErrorBodyConstant,
			expectRawBody:  testServerErrorBodyConstant,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			captured := capturedRequest{}
			server := newCapturingServer(testInstance, testCase.responseStatus, testCase.responseBody, &captured)
			client := newTestClient(testInstance, server.URL, gogsapi.ClientDependencies{})

			outcome, executionError := client.Execute(context.Background(), testCase.request)

			require.Equal(testInstance, string(testCase.request.Method), captured.method)
			require.Equal(testInstance, testCase.request.Path, captured.path)
			require.Equal(testInstance, testCase.expectContentType, captured.contentType)
			require.Equal(testInstance, testRequestIdentifierConstant, captured.requestIdentifier)
			require.Equal(testInstance, testLoginUserConstant, captured.username)
			require.Equal(testInstance, testLoginPasswordConstant, captured.password)

			if testCase.expectBody != nil {
				decodedBody := map[string]any{}
				require.NoError(testInstance, json.Unmarshal(captured.body, &decodedBody))
				require.Equal(testInstance, testCase.expectBody, decodedBody)
			} else {
				require.Empty(testInstance, captured.body)
			}

			if testCase.expectMalformedType {
				var malformedError gogsapi.MalformedResponseError
				require.ErrorAs(testInstance, executionError, &malformedError)
				require.Equal(testInstance, testCase.responseStatus, malformedError.StatusCode)
				return
			}

			require.NoError(testInstance, executionError)
			require.Equal(testInstance, testCase.responseStatus, outcome.StatusCode)
			require.Equal(testInstance, testCase.expectDocument, outcome.HasDocument())
			require.Equal(testInstance, testCase.expectRawBody, outcome.RawBody)
			require.Equal(testInstance, testRequestIdentifierConstant, outcome.RequestIdentifier)
		})
	}
}

func TestClientExecuteReportsTransportFailures(testInstance *testing.T) {
	blockingServer := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		select {
		case <-request.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	testInstance.Cleanup(blockingServer.Close)

	closedServer := httptest.NewServer(http.NotFoundHandler())
	closedServerURL := closedServer.URL
	closedServer.Close()

	testCases := []struct {
		name    string
		baseURL string
		timeout time.Duration
	}{
		{name: "connection_refused", baseURL: closedServerURL, timeout: time.Second},
		{name: "request_timeout", baseURL: blockingServer.URL, timeout: 50 * time.Millisecond},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, clientError := gogsapi.NewClient(gogsapi.Configuration{
				BaseURL:   testCase.baseURL,
				LoginUser: testLoginUserConstant,
				Timeout:   testCase.timeout,
			}, gogsapi.ClientDependencies{})
			require.NoError(testInstance, clientError)

			_, executionError := client.Execute(context.Background(), gogsapi.Request{
				Operation: gogsapi.OperationReadUser,
				Method:    gogsapi.MethodGet,
				Path:      gogsapi.UserPath("alice"),
			})

			var transportError gogsapi.TransportError
			require.ErrorAs(testInstance, executionError, &transportError)
			require.Equal(testInstance, gogsapi.OperationReadUser, transportError.Operation)
			require.Equal(testInstance, gogsapi.MethodGet, transportError.Method)
		})
	}
}

func TestClientExecuteNotifiesObserver(testInstance *testing.T) {
	captured := capturedRequest{}
	server := newCapturingServer(testInstance, http.StatusOK, `{"username":"alice"}`, &captured)

	observer := &requestEventObserverMock{}
	expectedDescriptor := gogsapi.RequestDescriptor{
		Operation:         gogsapi.OperationReadUser,
		Method:            gogsapi.MethodGet,
		Path:              gogsapi.UserPath("alice"),
		RequestIdentifier: testRequestIdentifierConstant,
	}
	observer.On("RequestStarted", expectedDescriptor).Once()
	observer.On("RequestCompleted", expectedDescriptor, mock.MatchedBy(func(outcome gogsapi.Outcome) bool {
		return outcome.StatusCode == http.StatusOK && outcome.Field("username").String() == "alice"
	})).Once()

	client := newTestClient(testInstance, server.URL, gogsapi.ClientDependencies{EventObserver: observer})
	_, executionError := client.Execute(context.Background(), gogsapi.Request{
		Operation: gogsapi.OperationReadUser,
		Method:    gogsapi.MethodGet,
		Path:      gogsapi.UserPath("alice"),
	})
	require.NoError(testInstance, executionError)

	observer.AssertExpectations(testInstance)
	observer.AssertNotCalled(testInstance, "RequestFailed", mock.Anything, mock.Anything)
}

func TestClientExecuteRecordsMetrics(testInstance *testing.T) {
	captured := capturedRequest{}
	server := newCapturingServer(testInstance, http.StatusOK, `{"username":"alice"}`, &captured)

	registry := prometheus.NewRegistry()
	metrics, metricsError := gogsapi.NewMetrics(registry)
	require.NoError(testInstance, metricsError)

	reusedMetrics, reuseError := gogsapi.NewMetrics(registry)
	require.NoError(testInstance, reuseError)
	require.NotNil(testInstance, reusedMetrics)

	client := newTestClient(testInstance, server.URL, gogsapi.ClientDependencies{Metrics: metrics})
	_, executionError := client.Execute(context.Background(), gogsapi.Request{
		Operation: gogsapi.OperationReadUser,
		Method:    gogsapi.MethodGet,
		Path:      gogsapi.UserPath("alice"),
	})
	require.NoError(testInstance, executionError)

	metricsFilePath := filepath.Join(testInstance.TempDir(), testMetricsFileNameConstant)
	require.NoError(testInstance, gogsapi.WriteTextfile(metricsFilePath, registry))

	exportedMetrics, readError := os.ReadFile(metricsFilePath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(exportedMetrics), testExpectedCounterLineConstant)
}

func TestNewClientValidatesConfiguration(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configuration gogsapi.Configuration
	}{
		{name: "missing_base_url", configuration: gogsapi.Configuration{LoginUser: testLoginUserConstant}},
		{name: "unsupported_scheme", configuration: gogsapi.Configuration{BaseURL: "ftp://gogs.example.com", LoginUser: testLoginUserConstant}},
		{name: "missing_login_user", configuration: gogsapi.Configuration{BaseURL: "https://gogs.example.com"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, clientError := gogsapi.NewClient(testCase.configuration, gogsapi.ClientDependencies{})
			require.Error(testInstance, clientError)
			require.Nil(testInstance, client)
		})
	}
}

func TestOutcomeServerMessage(testInstance *testing.T) {
	testCases := []struct {
		name            string
		outcome         gogsapi.Outcome
		expectedMessage string
	}{
		{name: "message_field", outcome: gogsapi.Outcome{StatusCode: 422, Document: []byte(`{"message":"user already exists"}`)}, expectedMessage: "user already exists"},
		{name: "raw_body", outcome: gogsapi.Outcome{StatusCode: 502, RawBody: "bad gateway upstream"}, expectedMessage: "bad gateway upstream"},
		{name: "status_text", outcome: gogsapi.Outcome{StatusCode: http.StatusForbidden}, expectedMessage: "Forbidden"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedMessage, testCase.outcome.ServerMessage())
		})
	}
}

func TestUnexpectedStatusErrorRedactsPassword(testInstance *testing.T) {
	request := gogsapi.Request{
		Operation: gogsapi.OperationCreateUser,
		Method:    gogsapi.MethodPost,
		Path:      gogsapi.AdminUsersPath(),
		Body:      gogsapi.Payload{"username": "alice", "password": testUserPasswordConstant},
	}
	outcome := gogsapi.Outcome{StatusCode: http.StatusUnprocessableEntity, Document: []byte(`{"message":"e-mail already used"}`)}

	statusError := gogsapi.NewUnexpectedStatusError(request, outcome, "failed to create user alice")

	require.Equal(testInstance, http.StatusUnprocessableEntity, statusError.StatusCode)
	require.Equal(testInstance, "e-mail already used", statusError.ServerMessage)
	require.Equal(testInstance, gogsapi.RedactedValueMask, statusError.Request.Body["password"])
	require.Equal(testInstance, testUserPasswordConstant, request.Body["password"])
	require.NotContains(testInstance, statusError.Error(), testUserPasswordConstant)
	require.True(testInstance, strings.Contains(statusError.Error(), "failed to create user alice: e-mail already used"))

	var unwrapped gogsapi.UnexpectedStatusError
	require.True(testInstance, errors.As(error(statusError), &unwrapped))
	require.False(testInstance, unwrapped.NotFound())
}
