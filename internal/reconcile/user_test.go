package reconcile_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gogsctl/internal/desired"
	"github.com/temirov/gogsctl/internal/gogsapi"
	"github.com/temirov/gogsctl/internal/gogstest"
)

const (
	testUsernameConstant     = "bob"
	testUserEmailConstant    = "bob@example.com"
	testUserPasswordConstant = "s3cret-pass"
	testUserPathConstant     = "/api/v1/users/bob"
	testAdminUsersPath       = "/api/v1/admin/users"
	testAdminUserPath        = "/api/v1/admin/users/bob"
	testAdminUserKeysPath    = "/api/v1/admin/users/bob/keys"
)

func TestReconcileUserCreatesAccountAndKey(testInstance *testing.T) {
	server := gogstest.NewServer(testInstance)
	service := newTestService(testInstance, server, nil)

	result, reconcileError := service.ReconcileUser(context.Background(), desired.UserState{
		Lifecycle: desired.LifecyclePresent,
		Username:  testUsernameConstant,
		Email:     testUserEmailConstant,
		Password:  testUserPasswordConstant,
		FullName:  "Bob Builder",
		Admin:     desired.Bool(true),
		SSHKey:    desired.SSHKey{Title: testKeyTitleConstant, Material: testKeyMaterialConstant},
	})
	require.NoError(testInstance, reconcileError)
	require.True(testInstance, result.Changed)
	require.Equal(testInstance, "created, key updated", result.Message)

	requests := server.Requests()
	require.Equal(testInstance, []string{
		"GET " + testUserPathConstant,
		"POST " + testAdminUsersPath,
		"PATCH " + testAdminUserPath,
		"GET " + testAdminUserKeysPath,
		"POST " + testAdminUserKeysPath,
	}, requestLines(requests))
	require.Equal(testInstance, map[string]any{
		"username": testUsernameConstant,
		"email":    testUserEmailConstant,
		"password": testUserPasswordConstant,
	}, requests[1].Body)
	require.Equal(testInstance, map[string]any{
		"email":     testUserEmailConstant,
		"password":  testUserPasswordConstant,
		"full_name": "Bob Builder",
		"admin":     true,
	}, requests[2].Body)
	require.Equal(testInstance, map[string]any{"title": testKeyTitleConstant, "key": testKeyMaterialConstant}, requests[4].Body)
	require.Len(testInstance, server.UserKeys(testUsernameConstant), 1)
}

func TestReconcileUserCreationRequiresPasswordAndEmail(testInstance *testing.T) {
	testCases := []struct {
		name          string
		state         desired.UserState
		expectedField string
	}{
		{
			name:          "missing_password",
			state:         desired.UserState{Lifecycle: desired.LifecyclePresent, Username: testUsernameConstant, Email: testUserEmailConstant},
			expectedField: "password",
		},
		{
			name:          "missing_email",
			state:         desired.UserState{Lifecycle: desired.LifecyclePresent, Username: testUsernameConstant, Password: testUserPasswordConstant},
			expectedField: "email",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			server := gogstest.NewServer(testInstance)
			service := newTestService(testInstance, server, nil)

			_, reconcileError := service.ReconcileUser(context.Background(), testCase.state)

			var validationError desired.ValidationError
			require.ErrorAs(testInstance, reconcileError, &validationError)
			require.Equal(testInstance, testCase.expectedField, validationError.FieldName)
			require.Equal(testInstance, []string{"GET " + testUserPathConstant}, requestLines(server.Requests()))
			require.False(testInstance, server.HasUser(testUsernameConstant))
		})
	}
}

func TestReconcileUserAttributeSynchronization(testInstance *testing.T) {
	existingAttributes := map[string]any{"email": testUserEmailConstant, "full_name": "Bob Builder"}

	testCases := []struct {
		name            string
		state           desired.UserState
		expectChanged   bool
		expectedMessage string
		expectedPatch   map[string]any
	}{
		{
			name:            "nothing_declared_injects_remote_email",
			state:           desired.UserState{Lifecycle: desired.LifecyclePresent, Username: testUsernameConstant},
			expectChanged:   false,
			expectedMessage: "unchanged",
			expectedPatch:   map[string]any{"email": testUserEmailConstant},
		},
		{
			name: "matching_attributes_are_not_sent",
			state: desired.UserState{
				Lifecycle: desired.LifecyclePresent,
				Username:  testUsernameConstant,
				Email:     testUserEmailConstant,
				FullName:  "Bob Builder",
			},
			expectChanged:   false,
			expectedMessage: "unchanged",
			expectedPatch:   map[string]any{"email": testUserEmailConstant},
		},
		{
			name: "differing_attribute_is_updated",
			state: desired.UserState{
				Lifecycle: desired.LifecyclePresent,
				Username:  testUsernameConstant,
				FullName:  "Robert Builder",
			},
			expectChanged:   true,
			expectedMessage: "updated",
			expectedPatch:   map[string]any{"email": testUserEmailConstant, "full_name": "Robert Builder"},
		},
		{
			name: "fields_missing_from_read_always_count_as_changed",
			state: desired.UserState{
				Lifecycle:        desired.LifecyclePresent,
				Username:         testUsernameConstant,
				Password:         testUserPasswordConstant,
				AllowImportLocal: desired.Bool(true),
			},
			expectChanged:   true,
			expectedMessage: "updated",
			expectedPatch: map[string]any{
				"email":              testUserEmailConstant,
				"password":           testUserPasswordConstant,
				"allow_import_local": true,
			},
		},
		{
			name: "false_flags_are_omitted",
			state: desired.UserState{
				Lifecycle:        desired.LifecyclePresent,
				Username:         testUsernameConstant,
				FullName:         "Bob Builder",
				Admin:            desired.Bool(false),
				AllowGitHook:     desired.Bool(false),
				AllowImportLocal: desired.Bool(false),
			},
			expectChanged:   false,
			expectedMessage: "unchanged",
			expectedPatch:   map[string]any{"email": testUserEmailConstant},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			server := gogstest.NewServer(testInstance)
			server.AddUser(testUsernameConstant, existingAttributes)
			service := newTestService(testInstance, server, nil)

			result, reconcileError := service.ReconcileUser(context.Background(), testCase.state)
			require.NoError(testInstance, reconcileError)
			require.Equal(testInstance, testCase.expectChanged, result.Changed)
			require.Equal(testInstance, testCase.expectedMessage, result.Message)

			requests := server.Requests()
			require.Equal(testInstance, []string{"GET " + testUserPathConstant, "PATCH " + testAdminUserPath}, requestLines(requests))
			require.Equal(testInstance, testCase.expectedPatch, requests[1].Body)
		})
	}
}

func TestReconcileUserSecondRunReportsOnlyUnreadableFields(testInstance *testing.T) {
	server := gogstest.NewServer(testInstance)
	service := newTestService(testInstance, server, nil)
	state := desired.UserState{
		Lifecycle: desired.LifecyclePresent,
		Username:  testUsernameConstant,
		Email:     testUserEmailConstant,
		Password:  testUserPasswordConstant,
		SSHKey:    desired.SSHKey{Title: testKeyTitleConstant, Material: testKeyMaterialConstant},
	}

	_, firstError := service.ReconcileUser(context.Background(), state)
	require.NoError(testInstance, firstError)

	secondResult, secondError := service.ReconcileUser(context.Background(), state)
	require.NoError(testInstance, secondError)
	require.True(testInstance, secondResult.Changed)
	require.Equal(testInstance, "updated", secondResult.Message)

	state.Password = ""
	server.ResetRequests()
	thirdResult, thirdError := service.ReconcileUser(context.Background(), state)
	require.NoError(testInstance, thirdError)
	require.False(testInstance, thirdResult.Changed)
	require.Equal(testInstance, "unchanged", thirdResult.Message)
	require.Equal(testInstance, []string{
		"GET " + testUserPathConstant,
		"PATCH " + testAdminUserPath,
		"GET " + testAdminUserKeysPath,
	}, requestLines(server.Requests()))
}

func TestReconcileUserAbsent(testInstance *testing.T) {
	testCases := []struct {
		name            string
		existing        bool
		expectChanged   bool
		expectedMessage string
	}{
		{name: "already_deleted", existing: false, expectChanged: false, expectedMessage: "bob already deleted"},
		{name: "deleted", existing: true, expectChanged: true, expectedMessage: "bob deleted"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			server := gogstest.NewServer(testInstance)
			if testCase.existing {
				server.AddUser(testUsernameConstant, map[string]any{"email": testUserEmailConstant})
			}
			service := newTestService(testInstance, server, nil)

			result, reconcileError := service.ReconcileUser(context.Background(), desired.UserState{
				Lifecycle: desired.LifecycleAbsent,
				Username:  testUsernameConstant,
			})
			require.NoError(testInstance, reconcileError)
			require.Equal(testInstance, testCase.expectChanged, result.Changed)
			require.Equal(testInstance, testCase.expectedMessage, result.Message)
			require.False(testInstance, server.HasUser(testUsernameConstant))
		})
	}
}

func TestReconcileUserUpdateRejected(testInstance *testing.T) {
	server := gogstest.NewServer(testInstance)
	server.AddUser(testUsernameConstant, map[string]any{"email": testUserEmailConstant})
	server.ForceStatus(http.MethodPatch, testAdminUserPath, http.StatusUnprocessableEntity)
	service := newTestService(testInstance, server, nil)

	_, reconcileError := service.ReconcileUser(context.Background(), desired.UserState{
		Lifecycle: desired.LifecyclePresent,
		Username:  testUsernameConstant,
		Password:  testUserPasswordConstant,
		SSHKey:    desired.SSHKey{Title: testKeyTitleConstant, Material: testKeyMaterialConstant},
	})

	var statusError gogsapi.UnexpectedStatusError
	require.ErrorAs(testInstance, reconcileError, &statusError)
	require.Equal(testInstance, http.StatusUnprocessableEntity, statusError.StatusCode)
	require.NotContains(testInstance, statusError.Error(), testUserPasswordConstant)
	require.Contains(testInstance, statusError.Error(), gogsapi.RedactedValueMask)
	require.Empty(testInstance, server.UserKeys(testUsernameConstant))
}

func TestReconcileUserKeyAlreadyRegistered(testInstance *testing.T) {
	server := gogstest.NewServer(testInstance)
	server.AddUser(testUsernameConstant, map[string]any{"email": testUserEmailConstant})
	server.AddUserKey(testUsernameConstant, testOtherKeyTitleConstant, testKeyMaterialConstant)
	service := newTestService(testInstance, server, nil)

	result, reconcileError := service.ReconcileUser(context.Background(), desired.UserState{
		Lifecycle: desired.LifecyclePresent,
		Username:  testUsernameConstant,
		SSHKey:    desired.SSHKey{Title: testKeyTitleConstant, Material: testKeyMaterialConstant},
	})
	require.NoError(testInstance, reconcileError)
	require.False(testInstance, result.Changed)
	require.Len(testInstance, server.UserKeys(testUsernameConstant), 1)
}
