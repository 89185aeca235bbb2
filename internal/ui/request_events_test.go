package ui_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gogsctl/internal/gogsapi"
	"github.com/temirov/gogsctl/internal/ui"
)

const (
	testRequestLabelConstant            = "ReadRepository (GET /api/v1/repos/alice/demo)"
	testTransportFailureReasonConstant  = "connection refused"
	testStartMessageExpectation         = "Calling " + testRequestLabelConstant
	testSuccessMessageExpectation       = testRequestLabelConstant + " returned 200"
	testAbsentMessageExpectation        = testRequestLabelConstant + " returned 404"
	testRejectionMessageExpectation     = testRequestLabelConstant + " returned 403: permission denied"
	testTransportFailureMessageExpected = testRequestLabelConstant + " failed: " + testTransportFailureReasonConstant
)

func TestConsoleRequestEventLoggerEmitsMessages(testInstance *testing.T) {
	descriptor := gogsapi.RequestDescriptor{
		Operation:         gogsapi.OperationReadRepository,
		Method:            gogsapi.MethodGet,
		Path:              "/api/v1/repos/alice/demo",
		RequestIdentifier: "request-1",
	}

	testCases := []struct {
		name            string
		invoke          func(logger gogsapi.RequestEventObserver)
		expectedLevel   zapcore.Level
		expectedMessage string
	}{
		{
			name: "request_started",
			invoke: func(logger gogsapi.RequestEventObserver) {
				logger.RequestStarted(descriptor)
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testStartMessageExpectation,
		},
		{
			name: "request_succeeded",
			invoke: func(logger gogsapi.RequestEventObserver) {
				logger.RequestCompleted(descriptor, gogsapi.Outcome{StatusCode: 200, Document: []byte(`{"name":"demo"}`)})
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testSuccessMessageExpectation,
		},
		{
			name: "resource_absent",
			invoke: func(logger gogsapi.RequestEventObserver) {
				logger.RequestCompleted(descriptor, gogsapi.Outcome{StatusCode: 404})
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testAbsentMessageExpectation,
		},
		{
			name: "request_rejected",
			invoke: func(logger gogsapi.RequestEventObserver) {
				logger.RequestCompleted(descriptor, gogsapi.Outcome{StatusCode: 403, Document: []byte(`{"message":"permission denied"}`)})
			},
			expectedLevel:   zapcore.WarnLevel,
			expectedMessage: testRejectionMessageExpectation,
		},
		{
			name: "transport_failure",
			invoke: func(logger gogsapi.RequestEventObserver) {
				logger.RequestFailed(descriptor, errors.New(testTransportFailureReasonConstant))
			},
			expectedLevel:   zapcore.ErrorLevel,
			expectedMessage: testTransportFailureMessageExpected,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zapcore.DebugLevel)
			eventLogger := ui.NewConsoleRequestEventLogger(zap.New(observerCore))

			testCase.invoke(eventLogger)

			entries := observedLogs.All()
			require.Len(testInstance, entries, 1)
			require.Equal(testInstance, testCase.expectedLevel, entries[0].Level)
			require.Equal(testInstance, testCase.expectedMessage, entries[0].Message)
		})
	}
}

func TestRequestEventFormatterHandlesNilFailure(testInstance *testing.T) {
	message := ui.RequestEventFormatter{}.BuildFailureMessage(gogsapi.RequestDescriptor{
		Operation: gogsapi.OperationDeleteUser,
		Method:    gogsapi.MethodDelete,
		Path:      "/api/v1/admin/users/bob",
	}, nil)
	require.Equal(testInstance, "DeleteUser (DELETE /api/v1/admin/users/bob) failed: unknown error", message)
}
