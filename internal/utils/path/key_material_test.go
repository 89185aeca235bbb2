package pathutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testPublicKeyMaterialConstant = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIDemoKey ci@example.com"
)

func TestKeyMaterialLoader(testInstance *testing.T) {
	homeDirectory := testInstance.TempDir()
	require.NoError(testInstance, os.MkdirAll(filepath.Join(homeDirectory, ".ssh"), 0o700))
	require.NoError(testInstance, os.WriteFile(filepath.Join(homeDirectory, ".ssh", "id_ed25519.pub"), []byte(testPublicKeyMaterialConstant+"\n"), 0o600))
	require.NoError(testInstance, os.WriteFile(filepath.Join(homeDirectory, "empty.pub"), []byte("\n"), 0o600))

	loader := NewKeyMaterialLoaderWithDependencies(
		NewHomeExpanderWithProvider(func() (string, error) { return homeDirectory, nil }),
		nil,
	)

	testCases := []struct {
		name             string
		value            string
		expectedMaterial string
		expectError      bool
	}{
		{name: "inline", value: "  " + testPublicKeyMaterialConstant + " ", expectedMaterial: testPublicKeyMaterialConstant},
		{name: "empty", value: "", expectedMaterial: ""},
		{name: "home_reference", value: "@~/.ssh/id_ed25519.pub", expectedMaterial: testPublicKeyMaterialConstant},
		{name: "absolute_reference", value: "@" + filepath.Join(homeDirectory, ".ssh", "id_ed25519.pub"), expectedMaterial: testPublicKeyMaterialConstant},
		{name: "missing_path", value: "@", expectError: true},
		{name: "missing_file", value: "@~/.ssh/absent.pub", expectError: true},
		{name: "empty_file", value: "@~/empty.pub", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			material, loadError := loader.Load(testCase.value)
			if testCase.expectError {
				require.Error(testInstance, loadError)
				return
			}
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedMaterial, material)
		})
	}
}

func TestHomeExpanderExpand(testInstance *testing.T) {
	expander := NewHomeExpanderWithProvider(func() (string, error) { return "/home/alice", nil })

	require.Equal(testInstance, "/home/alice", expander.Expand("~"))
	require.Equal(testInstance, filepath.Join("/home/alice", ".ssh", "id.pub"), expander.Expand("~/.ssh/id.pub"))
	require.Equal(testInstance, "/etc/gogs/key.pub", expander.Expand("/etc/gogs/key.pub"))
	require.Equal(testInstance, "~bob/key.pub", expander.Expand("~bob/key.pub"))
	require.Equal(testInstance, "", expander.Expand(""))
}
