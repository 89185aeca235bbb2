package session_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/gogstest"
	"github.com/temirov/gogsctl/internal/session"
)

const (
	testLoginUserConstant      = "alice"
	testLoginPasswordConstant  = "literal:alice-pass"
	testRepositoryNameConstant = "demo"
	testMissingVariableName    = "GOGSCTL_SESSION_TEST_UNSET_VARIABLE"
)

func newSettings(server *gogstest.Server) session.Settings {
	return session.Settings{
		ServerURL:           server.URL(),
		LoginUser:           testLoginUserConstant,
		LoginPasswordSource: testLoginPasswordConstant,
		OutputFormat:        "text",
	}
}

func TestOpenRejectsInvalidSettings(testInstance *testing.T) {
	server := gogstest.NewServer(testInstance)

	testCases := []struct {
		name              string
		mutate            func(settings *session.Settings)
		expectedField     string
		expectedErrorText string
	}{
		{
			name:              "unsupported_output",
			mutate:            func(settings *session.Settings) { settings.OutputFormat = "xml" },
			expectedErrorText: "invalid output format",
		},
		{
			name:          "unresolved_login_password",
			mutate:        func(settings *session.Settings) { settings.LoginPasswordSource = "env:" + testMissingVariableName },
			expectedField: "login_password",
		},
		{
			name:              "missing_server_url",
			mutate:            func(settings *session.Settings) { settings.ServerURL = "" },
			expectedErrorText: "unable to configure gogs api client",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			settings := newSettings(server)
			testCase.mutate(&settings)

			openedSession, openError := session.Open(context.Background(), settings, session.Dependencies{Output: &bytes.Buffer{}})
			require.Error(testInstance, openError)
			require.Nil(testInstance, openedSession)
			if len(testCase.expectedField) > 0 {
				var validationError desired.ValidationError
				require.True(testInstance, errors.As(openError, &validationError))
				require.Equal(testInstance, testCase.expectedField, validationError.FieldName)
			}
			if len(testCase.expectedErrorText) > 0 {
				require.ErrorContains(testInstance, openError, testCase.expectedErrorText)
			}
		})
	}
	require.Empty(testInstance, server.Requests())
}

func TestSessionReportsResultsAndExportsMetrics(testInstance *testing.T) {
	server := gogstest.NewServer(testInstance)
	settings := newSettings(server)
	settings.MetricsFile = filepath.Join(testInstance.TempDir(), "gogsctl.prom")

	outputBuffer := &bytes.Buffer{}
	provider := session.NewProvider(
		func() session.Settings { return settings },
		func() session.Dependencies {
			return session.Dependencies{RunIdentifierGenerator: func() string { return "run-1" }}
		},
	)
	openedSession, openError := provider(context.Background(), outputBuffer)
	require.NoError(testInstance, openError)
	require.Equal(testInstance, testLoginUserConstant, openedSession.LoginUser())

	result, applyError := openedSession.ApplyRepository(context.Background(), desired.RepositoryState{
		Lifecycle: desired.LifecyclePresent,
		Name:      testRepositoryNameConstant,
	})
	require.NoError(testInstance, applyError)
	require.True(testInstance, result.Changed)
	require.Equal(testInstance, "alice/demo: changed (created)\n", outputBuffer.String())

	require.NoError(testInstance, openedSession.Close())
	metricsContent, readError := os.ReadFile(settings.MetricsFile)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(metricsContent), "gogsctl_api_requests_total")
}

func TestSessionResolvesSecretsBeforeReconciling(testInstance *testing.T) {
	keyPath := filepath.Join(testInstance.TempDir(), "deploy.pub")
	require.NoError(testInstance, os.WriteFile(keyPath, []byte("ssh-ed25519 AAAAdeploy ci\n"), 0o600))

	testCases := []struct {
		name          string
		state         desired.RepositoryState
		expectedField string
	}{
		{
			name: "unresolved_import_password",
			state: desired.RepositoryState{
				Lifecycle:       desired.LifecyclePresent,
				Name:            testRepositoryNameConstant,
				ImportSourceURL: "https://github.com/example/demo.git",
				ImportPassword:  "env:" + testMissingVariableName,
			},
			expectedField: "import_password",
		},
		{
			name: "unreadable_deploy_key",
			state: desired.RepositoryState{
				Lifecycle: desired.LifecyclePresent,
				Name:      testRepositoryNameConstant,
				DeployKey: desired.SSHKey{Title: "ci", Material: "@" + filepath.Join(testInstance.TempDir(), "missing.pub")},
			},
			expectedField: "deploy_key",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			server := gogstest.NewServer(testInstance)
			outputBuffer := &bytes.Buffer{}
			openedSession, openError := session.Open(context.Background(), newSettings(server), session.Dependencies{Output: outputBuffer})
			require.NoError(testInstance, openError)

			_, applyError := openedSession.ApplyRepository(context.Background(), testCase.state)
			var validationError desired.ValidationError
			require.True(testInstance, errors.As(applyError, &validationError))
			require.Equal(testInstance, testCase.expectedField, validationError.FieldName)
			require.True(testInstance, strings.HasPrefix(outputBuffer.String(), "alice/demo: failed: "))
			require.Empty(testInstance, server.Requests())
		})
	}

	server := gogstest.NewServer(testInstance)
	openedSession, openError := session.Open(context.Background(), newSettings(server), session.Dependencies{Output: &bytes.Buffer{}})
	require.NoError(testInstance, openError)
	_, applyError := openedSession.ApplyRepository(context.Background(), desired.RepositoryState{
		Lifecycle: desired.LifecyclePresent,
		Name:      testRepositoryNameConstant,
		DeployKey: desired.SSHKey{Title: "ci", Material: "@" + keyPath},
	})
	require.NoError(testInstance, applyError)
	deployKeys := server.DeployKeys(testLoginUserConstant, testRepositoryNameConstant)
	require.Len(testInstance, deployKeys, 1)
	require.Equal(testInstance, "ssh-ed25519 AAAAdeploy ci", deployKeys[0].Key)
}
