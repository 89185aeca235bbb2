package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/gogsapi"
)

const (
	reportFormatJSONConstant            = "json"
	reportFormatTextConstant            = "text"
	reportFormatInvalidTemplateConstant = "unsupported output format %q (expected json or text)"
	textChangedLabelConstant            = "changed"
	textUnchangedLabelConstant          = "ok"
	textFailedLabelConstant             = "failed"
	textResultTemplateConstant          = "%s: %s (%s)\n"
	textFailureTemplateConstant         = "%s: %s: %s\n"
	reportEncodingErrorTemplateConstant = "unable to encode report: %w"
	reportWriteErrorTemplateConstant    = "unable to write report: %w"
)

// ReportFormat selects how results are rendered.
type ReportFormat string

// Supported report formats.
const (
	ReportFormatJSON ReportFormat = reportFormatJSONConstant
	ReportFormatText ReportFormat = reportFormatTextConstant
)

// ParseReportFormat normalizes textual report formats. An empty value selects JSON.
func ParseReportFormat(formatValue string) (ReportFormat, error) {
	switch ReportFormat(strings.ToLower(strings.TrimSpace(formatValue))) {
	case "", ReportFormatJSON:
		return ReportFormatJSON, nil
	case ReportFormatText:
		return ReportFormatText, nil
	default:
		return "", fmt.Errorf(reportFormatInvalidTemplateConstant, formatValue)
	}
}

// resultRecord is the JSON rendering of a run outcome.
type resultRecord struct {
	Kind       desired.ResourceKind `json:"kind"`
	Resource   string               `json:"resource"`
	State      desired.Lifecycle    `json:"state,omitempty"`
	Changed    bool                 `json:"changed"`
	Failed     bool                 `json:"failed,omitempty"`
	Message    string               `json:"message"`
	StatusCode int                  `json:"status,omitempty"`
	Request    string               `json:"request,omitempty"`
}

// Reporter writes run outcomes to an output stream.
type Reporter struct {
	writer io.Writer
	format ReportFormat
}

// NewReporter constructs a Reporter writing format to writer.
func NewReporter(writer io.Writer, format ReportFormat) *Reporter {
	if writer == nil {
		writer = io.Discard
	}
	if len(format) == 0 {
		format = ReportFormatJSON
	}
	return &Reporter{writer: writer, format: format}
}

// ReportResult renders a successful run.
func (reporter *Reporter) ReportResult(result Result) error {
	if reporter.format == ReportFormatText {
		changedLabel := textUnchangedLabelConstant
		if result.Changed {
			changedLabel = textChangedLabelConstant
		}
		return reporter.writeText(fmt.Sprintf(textResultTemplateConstant, result.Key, changedLabel, result.Message))
	}
	return reporter.writeRecord(resultRecord{
		Kind:     result.Kind,
		Resource: result.Key.String(),
		State:    result.Lifecycle,
		Changed:  result.Changed,
		Message:  result.Message,
	})
}

// ReportFailure renders a failed run, including the status and redacted request when the server rejected a call.
func (reporter *Reporter) ReportFailure(kind desired.ResourceKind, key desired.ResourceKey, failure error) error {
	if failure == nil {
		return nil
	}
	if reporter.format == ReportFormatText {
		return reporter.writeText(fmt.Sprintf(textFailureTemplateConstant, key, textFailedLabelConstant, failure.Error()))
	}

	record := resultRecord{
		Kind:     kind,
		Resource: key.String(),
		Failed:   true,
		Message:  failure.Error(),
	}
	var statusError gogsapi.UnexpectedStatusError
	if errors.As(failure, &statusError) {
		record.StatusCode = statusError.StatusCode
		record.Request = statusError.Request.String()
	}
	return reporter.writeRecord(record)
}

func (reporter *Reporter) writeRecord(record resultRecord) error {
	encodedRecord, encodingError := json.Marshal(record)
	if encodingError != nil {
		return fmt.Errorf(reportEncodingErrorTemplateConstant, encodingError)
	}
	return reporter.writeText(string(encodedRecord) + "\n")
}

func (reporter *Reporter) writeText(text string) error {
	if _, writeError := io.WriteString(reporter.writer, text); writeError != nil {
		return fmt.Errorf(reportWriteErrorTemplateConstant, writeError)
	}
	return nil
}
