package gogstest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	apiRootPattern           = "/api/v1"
	usernameParameter        = "username"
	ownerParameter           = "owner"
	nameParameter            = "name"
	groupParameter           = "group"
	repositoryKeySeparator   = "/"
	forcedStatusKeySeparator = " "
	contentTypeHeaderName    = "Content-Type"
	jsonContentType          = "application/json"
	notFoundMessage          = "Not Found"
	alreadyExistsMessage     = "resource already exists"
	emailRequiredMessage     = "email is required"
	unauthorizedMessage      = "basic authentication required"
	malformedBodyMessage     = "request body is not valid JSON"
)

// RecordedRequest is one request received by the fake server.
type RecordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// Key is a stored SSH or deploy key.
type Key struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Key   string `json:"key"`
}

type userRecord struct {
	attributes map[string]any
	keys       []Key
}

type repositoryRecord struct {
	owner   string
	name    string
	private bool
	mirror  bool
	keys    []Key
	payload map[string]any
}

// Server is an in-memory Gogs API.
type Server struct {
	mutex          sync.Mutex
	httpServer     *httptest.Server
	users          map[string]*userRecord
	repositories   map[string]*repositoryRecord
	requests       []RecordedRequest
	forcedStatuses map[string]int
	nextIdentifier int
}

// NewServer starts a fake server that is closed when the test finishes.
func NewServer(testInstance testing.TB) *Server {
	testInstance.Helper()
	server := &Server{
		users:          map[string]*userRecord{},
		repositories:   map[string]*repositoryRecord{},
		forcedStatuses: map[string]int{},
		nextIdentifier: 1,
	}
	server.httpServer = httptest.NewServer(server.routes())
	testInstance.Cleanup(server.httpServer.Close)
	return server
}

// URL returns the base URL of the fake server.
func (server *Server) URL() string {
	return server.httpServer.URL
}

// AddUser stores a user. Attributes are returned verbatim when the user is read.
func (server *Server) AddUser(username string, attributes map[string]any) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	server.storeUserLocked(username, attributes)
}

// AddRepository stores a repository owned by owner.
func (server *Server) AddRepository(owner string, name string, mirror bool) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	server.repositories[repositoryKey(owner, name)] = &repositoryRecord{owner: owner, name: name, mirror: mirror, private: true}
}

// AddUserKey registers an SSH key for an existing user.
func (server *Server) AddUserKey(username string, title string, material string) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if user, exists := server.users[username]; exists {
		user.keys = append(user.keys, server.newKeyLocked(title, material))
	}
}

// AddDeployKey registers a deploy key for an existing repository.
func (server *Server) AddDeployKey(owner string, name string, title string, material string) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if repository, exists := server.repositories[repositoryKey(owner, name)]; exists {
		repository.keys = append(repository.keys, server.newKeyLocked(title, material))
	}
}

// ForceStatus answers every request with method and path using statusCode and a JSON message.
func (server *Server) ForceStatus(method string, path string, statusCode int) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	server.forcedStatuses[method+forcedStatusKeySeparator+path] = statusCode
}

// Requests returns the requests received so far.
func (server *Server) Requests() []RecordedRequest {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	duplicated := make([]RecordedRequest, len(server.requests))
	copy(duplicated, server.requests)
	return duplicated
}

// ResetRequests forgets the recorded requests.
func (server *Server) ResetRequests() {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	server.requests = nil
}

// HasUser reports whether the user exists.
func (server *Server) HasUser(username string) bool {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	_, exists := server.users[username]
	return exists
}

// HasRepository reports whether the repository exists.
func (server *Server) HasRepository(owner string, name string) bool {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	_, exists := server.repositories[repositoryKey(owner, name)]
	return exists
}

// RepositoryPayload returns the creation body the repository was created with.
func (server *Server) RepositoryPayload(owner string, name string) map[string]any {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if repository, exists := server.repositories[repositoryKey(owner, name)]; exists {
		return repository.payload
	}
	return nil
}

// UserKeys returns the SSH keys of a user.
func (server *Server) UserKeys(username string) []Key {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if user, exists := server.users[username]; exists {
		return append([]Key(nil), user.keys...)
	}
	return nil
}

// DeployKeys returns the deploy keys of a repository.
func (server *Server) DeployKeys(owner string, name string) []Key {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if repository, exists := server.repositories[repositoryKey(owner, name)]; exists {
		return append([]Key(nil), repository.keys...)
	}
	return nil
}

func (server *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(server.recordRequest)
	router.Use(server.applyForcedStatus)
	router.Use(requireBasicAuth)

	router.Route(apiRootPattern, func(apiRouter chi.Router) {
		apiRouter.Get("/users/{username}", server.handleReadUser)
		apiRouter.Post("/admin/users", server.handleCreateUser)
		apiRouter.Patch("/admin/users/{username}", server.handleUpdateUser)
		apiRouter.Delete("/admin/users/{username}", server.handleDeleteUser)
		apiRouter.Get("/admin/users/{username}/keys", server.handleListUserKeys)
		apiRouter.Post("/admin/users/{username}/keys", server.handleAddUserKey)

		apiRouter.Post("/user/repos", server.handleCreateUserRepository)
		apiRouter.Post("/org/{group}/repos", server.handleCreateOrganizationRepository)
		apiRouter.Post("/repos/migrate", server.handleMigrateRepository)
		apiRouter.Get("/repos/{owner}/{name}", server.handleReadRepository)
		apiRouter.Delete("/repos/{owner}/{name}", server.handleDeleteRepository)
		apiRouter.Get("/repos/{owner}/{name}/keys", server.handleListDeployKeys)
		apiRouter.Post("/repos/{owner}/{name}/keys", server.handleAddDeployKey)
		apiRouter.Post("/repos/{owner}/{name}/mirror-sync", server.handleMirrorSync)
	})

	return router
}

func (server *Server) recordRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		bodyBytes, _ := io.ReadAll(request.Body)
		request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		var decodedBody map[string]any
		if len(bytes.TrimSpace(bodyBytes)) > 0 {
			_ = json.Unmarshal(bodyBytes, &decodedBody)
		}

		server.mutex.Lock()
		server.requests = append(server.requests, RecordedRequest{Method: request.Method, Path: request.URL.Path, Body: decodedBody})
		server.mutex.Unlock()

		next.ServeHTTP(responseWriter, request)
	})
}

func (server *Server) applyForcedStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		server.mutex.Lock()
		forcedStatus, forced := server.forcedStatuses[request.Method+forcedStatusKeySeparator+request.URL.Path]
		server.mutex.Unlock()
		if forced {
			writeMessage(responseWriter, forcedStatus, http.StatusText(forcedStatus))
			return
		}
		next.ServeHTTP(responseWriter, request)
	})
}

func requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if _, _, provided := request.BasicAuth(); !provided {
			writeMessage(responseWriter, http.StatusUnauthorized, unauthorizedMessage)
			return
		}
		next.ServeHTTP(responseWriter, request)
	})
}

func (server *Server) handleReadUser(responseWriter http.ResponseWriter, request *http.Request) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	user, exists := server.users[chi.URLParam(request, usernameParameter)]
	if !exists {
		writeMessage(responseWriter, http.StatusNotFound, notFoundMessage)
		return
	}
	writeJSON(responseWriter, http.StatusOK, visibleUserAttributes(user.attributes))
}

func (server *Server) handleCreateUser(responseWriter http.ResponseWriter, request *http.Request) {
	body, decoded := decodeBody(responseWriter, request)
	if !decoded {
		return
	}
	username, _ := body["username"].(string)

	server.mutex.Lock()
	defer server.mutex.Unlock()
	if _, exists := server.users[username]; exists {
		writeMessage(responseWriter, http.StatusUnprocessableEntity, alreadyExistsMessage)
		return
	}
	user := server.storeUserLocked(username, body)
	writeJSON(responseWriter, http.StatusCreated, visibleUserAttributes(user.attributes))
}

func (server *Server) handleUpdateUser(responseWriter http.ResponseWriter, request *http.Request) {
	body, decoded := decodeBody(responseWriter, request)
	if !decoded {
		return
	}

	server.mutex.Lock()
	defer server.mutex.Unlock()
	user, exists := server.users[chi.URLParam(request, usernameParameter)]
	if !exists {
		writeMessage(responseWriter, http.StatusNotFound, notFoundMessage)
		return
	}
	if email, _ := body["email"].(string); len(email) == 0 {
		writeMessage(responseWriter, http.StatusUnprocessableEntity, emailRequiredMessage)
		return
	}
	for fieldName, fieldValue := range body {
		user.attributes[fieldName] = fieldValue
	}
	writeJSON(responseWriter, http.StatusOK, visibleUserAttributes(user.attributes))
}

func (server *Server) handleDeleteUser(responseWriter http.ResponseWriter, request *http.Request) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	username := chi.URLParam(request, usernameParameter)
	if _, exists := server.users[username]; !exists {
		writeMessage(responseWriter, http.StatusNotFound, notFoundMessage)
		return
	}
	delete(server.users, username)
	responseWriter.WriteHeader(http.StatusNoContent)
}

func (server *Server) handleListUserKeys(responseWriter http.ResponseWriter, request *http.Request) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	user, exists := server.users[chi.URLParam(request, usernameParameter)]
	if !exists {
		writeMessage(responseWriter, http.StatusNotFound, notFoundMessage)
		return
	}
	writeJSON(responseWriter, http.StatusOK, nonNilKeys(user.keys))
}

func (server *Server) handleAddUserKey(responseWriter http.ResponseWriter, request *http.Request) {
	body, decoded := decodeBody(responseWriter, request)
	if !decoded {
		return
	}

	server.mutex.Lock()
	defer server.mutex.Unlock()
	user, exists := server.users[chi.URLParam(request, usernameParameter)]
	if !exists {
		writeMessage(responseWriter, http.StatusNotFound, notFoundMessage)
		return
	}
	title, _ := body["title"].(string)
	material, _ := body["key"].(string)
	key := server.newKeyLocked(title, material)
	user.keys = append(user.keys, key)
	writeJSON(responseWriter, http.StatusCreated, key)
}

func (server *Server) handleCreateUserRepository(responseWriter http.ResponseWriter, request *http.Request) {
	owner, _, _ := request.BasicAuth()
	server.createRepository(responseWriter, request, owner, "name", false)
}

func (server *Server) handleCreateOrganizationRepository(responseWriter http.ResponseWriter, request *http.Request) {
	server.createRepository(responseWriter, request, chi.URLParam(request, groupParameter), "name", false)
}

func (server *Server) handleMigrateRepository(responseWriter http.ResponseWriter, request *http.Request) {
	server.createRepository(responseWriter, request, "", "repo_name", true)
}

// createRepository stores a repository from a creation body. Migrations take their owner from uid.
func (server *Server) createRepository(responseWriter http.ResponseWriter, request *http.Request, owner string, nameField string, migrated bool) {
	body, decoded := decodeBody(responseWriter, request)
	if !decoded {
		return
	}
	name, _ := body[nameField].(string)
	if migrated {
		owner, _ = body["uid"].(string)
	}
	private, _ := body["private"].(bool)
	mirror, _ := body["mirror"].(bool)

	server.mutex.Lock()
	defer server.mutex.Unlock()
	key := repositoryKey(owner, name)
	if _, exists := server.repositories[key]; exists {
		writeMessage(responseWriter, http.StatusConflict, alreadyExistsMessage)
		return
	}
	repository := &repositoryRecord{owner: owner, name: name, private: private, mirror: migrated && mirror, payload: body}
	server.repositories[key] = repository
	writeJSON(responseWriter, http.StatusCreated, repositoryDocument(repository))
}

func (server *Server) handleReadRepository(responseWriter http.ResponseWriter, request *http.Request) {
	server.withRepository(responseWriter, request, func(repository *repositoryRecord) {
		writeJSON(responseWriter, http.StatusOK, repositoryDocument(repository))
	})
}

func (server *Server) handleDeleteRepository(responseWriter http.ResponseWriter, request *http.Request) {
	server.withRepository(responseWriter, request, func(repository *repositoryRecord) {
		delete(server.repositories, repositoryKey(repository.owner, repository.name))
		responseWriter.WriteHeader(http.StatusNoContent)
	})
}

func (server *Server) handleListDeployKeys(responseWriter http.ResponseWriter, request *http.Request) {
	server.withRepository(responseWriter, request, func(repository *repositoryRecord) {
		writeJSON(responseWriter, http.StatusOK, nonNilKeys(repository.keys))
	})
}

func (server *Server) handleAddDeployKey(responseWriter http.ResponseWriter, request *http.Request) {
	body, decoded := decodeBody(responseWriter, request)
	if !decoded {
		return
	}
	server.withRepository(responseWriter, request, func(repository *repositoryRecord) {
		title, _ := body["title"].(string)
		material, _ := body["key"].(string)
		key := server.newKeyLocked(title, material)
		repository.keys = append(repository.keys, key)
		writeJSON(responseWriter, http.StatusCreated, key)
	})
}

func (server *Server) handleMirrorSync(responseWriter http.ResponseWriter, request *http.Request) {
	server.withRepository(responseWriter, request, func(repository *repositoryRecord) {
		if !repository.mirror {
			writeMessage(responseWriter, http.StatusNotFound, notFoundMessage)
			return
		}
		responseWriter.WriteHeader(http.StatusAccepted)
	})
}

// withRepository runs handler under the server lock when the addressed repository exists.
func (server *Server) withRepository(responseWriter http.ResponseWriter, request *http.Request, handler func(repository *repositoryRecord)) {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	repository, exists := server.repositories[repositoryKey(chi.URLParam(request, ownerParameter), chi.URLParam(request, nameParameter))]
	if !exists {
		writeMessage(responseWriter, http.StatusNotFound, notFoundMessage)
		return
	}
	handler(repository)
}

func (server *Server) storeUserLocked(username string, attributes map[string]any) *userRecord {
	storedAttributes := map[string]any{"id": server.nextIdentifier, "username": username, "login": username}
	server.nextIdentifier++
	for fieldName, fieldValue := range attributes {
		storedAttributes[fieldName] = fieldValue
	}
	user := &userRecord{attributes: storedAttributes}
	server.users[username] = user
	return user
}

func (server *Server) newKeyLocked(title string, material string) Key {
	key := Key{ID: server.nextIdentifier, Title: title, Key: material}
	server.nextIdentifier++
	return key
}

// visibleUserAttributes mirrors the public user document, which omits secrets and permission flags.
func visibleUserAttributes(attributes map[string]any) map[string]any {
	visible := map[string]any{}
	for _, fieldName := range []string{"id", "username", "login", "full_name", "email", "avatar_url"} {
		if fieldValue, exists := attributes[fieldName]; exists {
			visible[fieldName] = fieldValue
		}
	}
	return visible
}

func repositoryDocument(repository *repositoryRecord) map[string]any {
	return map[string]any{
		"name":      repository.name,
		"full_name": repositoryKey(repository.owner, repository.name),
		"owner":     map[string]any{"username": repository.owner},
		"private":   repository.private,
		"mirror":    repository.mirror,
	}
}

func nonNilKeys(keys []Key) []Key {
	if keys == nil {
		return []Key{}
	}
	return keys
}

func repositoryKey(owner string, name string) string {
	return strings.TrimSpace(owner) + repositoryKeySeparator + strings.TrimSpace(name)
}

func decodeBody(responseWriter http.ResponseWriter, request *http.Request) (map[string]any, bool) {
	body := map[string]any{}
	if decodeError := json.NewDecoder(request.Body).Decode(&body); decodeError != nil {
		writeMessage(responseWriter, http.StatusUnprocessableEntity, malformedBodyMessage)
		return nil, false
	}
	return body, true
}

func writeMessage(responseWriter http.ResponseWriter, statusCode int, message string) {
	writeJSON(responseWriter, statusCode, map[string]string{"message": message})
}

func writeJSON(responseWriter http.ResponseWriter, statusCode int, document any) {
	responseWriter.Header().Set(contentTypeHeaderName, jsonContentType)
	responseWriter.WriteHeader(statusCode)
	_ = json.NewEncoder(responseWriter).Encode(document)
}
