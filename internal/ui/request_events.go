package ui

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/temirov/gogsctl/internal/gogsapi"
)

const (
	requestStartedMessageTemplateConstant   = "Calling %s"
	requestCompletedMessageTemplateConstant = "%s returned %d"
	requestRejectedMessageTemplateConstant  = "%s returned %d: %s"
	requestFailureMessageTemplateConstant   = "%s failed: %s"
	requestLabelTemplateConstant            = "%s (%s %s)"
	unknownFailureMessageConstant           = "unknown error"
	firstRejectedStatusCodeConstant         = http.StatusBadRequest
	acknowledgedRejectionStatusCodeConstant = http.StatusNotFound
)

// RequestEventFormatter builds human-readable messages for API request lifecycle events.
type RequestEventFormatter struct{}

// BuildStartedMessage formats the message describing a request about to be sent.
func (formatter RequestEventFormatter) BuildStartedMessage(descriptor gogsapi.RequestDescriptor) string {
	return fmt.Sprintf(requestStartedMessageTemplateConstant, formatter.formatRequestLabel(descriptor))
}

// BuildCompletedMessage formats the message describing a received response.
func (formatter RequestEventFormatter) BuildCompletedMessage(descriptor gogsapi.RequestDescriptor, outcome gogsapi.Outcome) string {
	if !isRejection(outcome.StatusCode) {
		return fmt.Sprintf(requestCompletedMessageTemplateConstant, formatter.formatRequestLabel(descriptor), outcome.StatusCode)
	}
	return fmt.Sprintf(requestRejectedMessageTemplateConstant, formatter.formatRequestLabel(descriptor), outcome.StatusCode, outcome.ServerMessage())
}

// BuildFailureMessage formats the message describing a request that produced no usable response.
func (formatter RequestEventFormatter) BuildFailureMessage(descriptor gogsapi.RequestDescriptor, failure error) string {
	failureMessage := unknownFailureMessageConstant
	if failure != nil {
		failureMessage = failure.Error()
	}
	return fmt.Sprintf(requestFailureMessageTemplateConstant, formatter.formatRequestLabel(descriptor), failureMessage)
}

func (formatter RequestEventFormatter) formatRequestLabel(descriptor gogsapi.RequestDescriptor) string {
	return fmt.Sprintf(requestLabelTemplateConstant, descriptor.Operation, descriptor.Method, descriptor.Path)
}

// isRejection treats 404 as an ordinary answer since reads use it to report absent resources.
func isRejection(statusCode int) bool {
	return statusCode >= firstRejectedStatusCodeConstant && statusCode != acknowledgedRejectionStatusCodeConstant
}

// ConsoleRequestEventLogger renders request lifecycle events using a zap logger configured for human-readable output.
type ConsoleRequestEventLogger struct {
	logger    *zap.Logger
	formatter RequestEventFormatter
}

// NewConsoleRequestEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleRequestEventLogger(logger *zap.Logger) *ConsoleRequestEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleRequestEventLogger{logger: logger, formatter: RequestEventFormatter{}}
}

// RequestStarted implements gogsapi.RequestEventObserver.
func (eventLogger *ConsoleRequestEventLogger) RequestStarted(descriptor gogsapi.RequestDescriptor) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(descriptor))
}

// RequestCompleted implements gogsapi.RequestEventObserver. Rejected requests are logged as warnings.
func (eventLogger *ConsoleRequestEventLogger) RequestCompleted(descriptor gogsapi.RequestDescriptor, outcome gogsapi.Outcome) {
	if eventLogger == nil {
		return
	}
	message := eventLogger.formatter.BuildCompletedMessage(descriptor, outcome)
	if isRejection(outcome.StatusCode) {
		eventLogger.logger.Warn(message)
		return
	}
	eventLogger.logger.Info(message)
}

// RequestFailed implements gogsapi.RequestEventObserver.
func (eventLogger *ConsoleRequestEventLogger) RequestFailed(descriptor gogsapi.RequestDescriptor, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildFailureMessage(descriptor, failure))
}
