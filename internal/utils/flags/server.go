// Package flags provides helpers for binding standardized flags to Cobra commands.
package flags

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// ServerURLFlagName names the Gogs base URL flag.
	ServerURLFlagName = "server-url"
	// LoginUserFlagName names the authenticating account flag.
	LoginUserFlagName = "login-user"
	// LoginPasswordSourceFlagName names the login password source flag.
	LoginPasswordSourceFlagName = "login-password-source"
	// TimeoutFlagName names the per-request timeout flag.
	TimeoutFlagName = "timeout"

	serverURLFlagUsage           = "Base URL of the Gogs server, e.g. https://git.example.com"
	loginUserFlagUsage           = "Account used for basic authentication"
	loginPasswordSourceFlagUsage = "Login password source (env:NAME, file:/path, or literal value)"
	timeoutFlagUsage             = "Per-request timeout"
)

// ServerFlagValues stores the server connection flags.
type ServerFlagValues struct {
	URL                 string
	LoginUser           string
	LoginPasswordSource string
	Timeout             time.Duration
}

// BindServerFlags attaches the server connection flags to command as persistent flags.
func BindServerFlags(command *cobra.Command, defaults ServerFlagValues) *ServerFlagValues {
	values := defaults
	if command == nil {
		return &values
	}

	persistentFlagSet := command.PersistentFlags()
	persistentFlagSet.StringVar(&values.URL, ServerURLFlagName, defaults.URL, serverURLFlagUsage)
	persistentFlagSet.StringVar(&values.LoginUser, LoginUserFlagName, defaults.LoginUser, loginUserFlagUsage)
	persistentFlagSet.StringVar(&values.LoginPasswordSource, LoginPasswordSourceFlagName, defaults.LoginPasswordSource, loginPasswordSourceFlagUsage)
	persistentFlagSet.DurationVar(&values.Timeout, TimeoutFlagName, defaults.Timeout, timeoutFlagUsage)
	return &values
}

// Overlay returns configured with every flag that was explicitly given on flagSet taking precedence.
func (values *ServerFlagValues) Overlay(flagSet *pflag.FlagSet, configured ServerFlagValues) ServerFlagValues {
	merged := configured
	if values == nil || flagSet == nil {
		return merged
	}
	if flagSet.Changed(ServerURLFlagName) {
		merged.URL = values.URL
	}
	if flagSet.Changed(LoginUserFlagName) {
		merged.LoginUser = values.LoginUser
	}
	if flagSet.Changed(LoginPasswordSourceFlagName) {
		merged.LoginPasswordSource = values.LoginPasswordSource
	}
	if flagSet.Changed(TimeoutFlagName) {
		merged.Timeout = values.Timeout
	}
	return merged
}
