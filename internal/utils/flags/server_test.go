package flags

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestServerFlagValuesOverlay(t *testing.T) {
	configured := ServerFlagValues{
		URL:                 "https://git.example.com",
		LoginUser:           "admin",
		LoginPasswordSource: "env:GOGS_PASSWORD",
		Timeout:             30 * time.Second,
	}

	testCases := []struct {
		name     string
		args     []string
		expected ServerFlagValues
	}{
		{
			name:     "NoFlagsKeepsConfiguration",
			expected: configured,
		},
		{
			name: "ExplicitFlagsWin",
			args: []string{"--server-url", "http://localhost:3000", "--timeout", "5s"},
			expected: ServerFlagValues{
				URL:                 "http://localhost:3000",
				LoginUser:           "admin",
				LoginPasswordSource: "env:GOGS_PASSWORD",
				Timeout:             5 * time.Second,
			},
		},
		{
			name: "CredentialFlags",
			args: []string{"--login-user", "root", "--login-password-source", "file:~/.gogs-password"},
			expected: ServerFlagValues{
				URL:                 "https://git.example.com",
				LoginUser:           "root",
				LoginPasswordSource: "file:~/.gogs-password",
				Timeout:             30 * time.Second,
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			command := &cobra.Command{Use: "gogsctl"}
			values := BindServerFlags(command, ServerFlagValues{})
			require.NoError(t, command.PersistentFlags().Parse(testCase.args))
			require.Equal(t, testCase.expected, values.Overlay(command.PersistentFlags(), configured))
		})
	}
}
