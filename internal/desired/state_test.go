package desired_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gogsctl/internal/desired"
)

func TestRepositoryStateKey(testInstance *testing.T) {
	testCases := []struct {
		name        string
		state       desired.RepositoryState
		loginUser   string
		expectedKey string
	}{
		{name: "login_user_owner", state: desired.RepositoryState{Name: "demo"}, loginUser: "alice", expectedKey: "alice/demo"},
		{name: "group_owner", state: desired.RepositoryState{Name: "demo", Group: "platform"}, loginUser: "alice", expectedKey: "platform/demo"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedKey, testCase.state.Key(testCase.loginUser).String())
		})
	}

	require.Equal(testInstance, "alice", desired.UserState{Username: " alice "}.Key().String())
}

func TestParseLifecycle(testInstance *testing.T) {
	testCases := []struct {
		name              string
		value             string
		expectedLifecycle desired.Lifecycle
		expectError       bool
	}{
		{name: "empty_defaults_to_present", value: "", expectedLifecycle: desired.LifecyclePresent},
		{name: "present", value: "Present", expectedLifecycle: desired.LifecyclePresent},
		{name: "absent", value: " absent ", expectedLifecycle: desired.LifecycleAbsent},
		{name: "unsupported", value: "archived", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			lifecycle, parseError := desired.ParseLifecycle(testCase.value)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedLifecycle, lifecycle)
		})
	}
}

func TestSSHKeyDeclared(testInstance *testing.T) {
	require.True(testInstance, desired.SSHKey{Title: "laptop", Material: "ssh-ed25519 AAAA"}.Declared())
	require.False(testInstance, desired.SSHKey{Title: "laptop"}.Declared())
	require.False(testInstance, desired.SSHKey{}.Declared())
}

func TestParseResourceKind(testInstance *testing.T) {
	testCases := []struct {
		name         string
		value        string
		expectedKind desired.ResourceKind
		expectError  bool
	}{
		{name: "user", value: "User", expectedKind: desired.KindUser},
		{name: "repository", value: "repository", expectedKind: desired.KindRepository},
		{name: "repo_alias", value: "repo", expectedKind: desired.KindRepository},
		{name: "project_alias", value: " project ", expectedKind: desired.KindRepository},
		{name: "organization_unsupported", value: "organization", expectError: true},
		{name: "empty_unsupported", value: "", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			kind, parseError := desired.ParseResourceKind(testCase.value)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedKind, kind)
		})
	}
}
