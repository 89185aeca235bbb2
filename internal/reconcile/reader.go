package reconcile

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/gogsapi"
)

const (
	readFailureSummaryTemplateConstant = "unable to query %s %s"
)

// APIClient executes Gogs API requests.
type APIClient interface {
	Execute(executionContext context.Context, request gogsapi.Request) (gogsapi.Outcome, error)
	LoginUser() string
}

// RemoteState is the current state of a resource as reported by the server.
type RemoteState struct {
	exists   bool
	document []byte
}

// AbsentRemoteState represents a resource the server does not know.
func AbsentRemoteState() RemoteState {
	return RemoteState{}
}

// FoundRemoteState wraps the decoded document of an existing resource.
func FoundRemoteState(document []byte) RemoteState {
	return RemoteState{exists: true, document: document}
}

// Exists reports whether the resource was found.
func (state RemoteState) Exists() bool {
	return state.exists
}

// Field looks up an attribute of the remote document.
func (state RemoteState) Field(path string) gjson.Result {
	if len(state.document) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(state.document, path)
}

// Reader fetches the current state of resources.
type Reader struct {
	client APIClient
}

// NewReader constructs a Reader backed by client.
func NewReader(client APIClient) *Reader {
	return &Reader{client: client}
}

// FetchUser reads a user by username.
func (reader *Reader) FetchUser(executionContext context.Context, key desired.ResourceKey) (RemoteState, error) {
	request := gogsapi.Request{
		Operation: gogsapi.OperationReadUser,
		Method:    gogsapi.MethodGet,
		Path:      gogsapi.UserPath(key.Name),
	}
	return reader.fetch(executionContext, request, desired.KindUser, key)
}

// FetchRepository reads a repository by owner and name.
func (reader *Reader) FetchRepository(executionContext context.Context, key desired.ResourceKey) (RemoteState, error) {
	request := gogsapi.Request{
		Operation: gogsapi.OperationReadRepository,
		Method:    gogsapi.MethodGet,
		Path:      gogsapi.RepositoryPath(key.Owner, key.Name),
	}
	return reader.fetch(executionContext, request, desired.KindRepository, key)
}

// fetch maps 200 to found and 404 to absent; every other status is fatal.
func (reader *Reader) fetch(executionContext context.Context, request gogsapi.Request, kind desired.ResourceKind, key desired.ResourceKey) (RemoteState, error) {
	outcome, executionError := reader.client.Execute(executionContext, request)
	if executionError != nil {
		return RemoteState{}, executionError
	}

	switch outcome.StatusCode {
	case http.StatusOK:
		return FoundRemoteState(outcome.Document), nil
	case http.StatusNotFound:
		return AbsentRemoteState(), nil
	default:
		return RemoteState{}, gogsapi.NewUnexpectedStatusError(request, outcome, fmt.Sprintf(readFailureSummaryTemplateConstant, kind, key))
	}
}
