package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scansweep/scansweep/cmd/cli"
)

const (
	checkConfigFlagConstant    = "--check-config"
	testGitHubTokenConstant    = "ghp_testtoken"
	testGitHubOrgConstant      = "acme"
	testSocketTokenConstant    = "socket-token"
	testSocketOrgConstant      = "acme-scan"
	unusualTokenValueConstant  = "not-a-recognizable-token"
	invalidOrganizationName    = "-acme"
	configurationOKFragment    = "configuration ok"
	tokenWarningFragment       = "does not look like a GitHub token"
	invalidOrgFragmentConstant = "invalid"
)

func setCompleteEnvironment(testInstance *testing.T) {
	testInstance.Setenv("GITHUB_TOKEN", testGitHubTokenConstant)
	testInstance.Setenv("GITHUB_ORG", testGitHubOrgConstant)
	testInstance.Setenv("SOCKET_API_TOKEN", testSocketTokenConstant)
	testInstance.Setenv("SOCKET_ORG", testSocketOrgConstant)
}

func executeCheckConfig(testInstance *testing.T) (string, error) {
	application := cli.NewApplication()
	outputBuffer := &bytes.Buffer{}
	application.SetOutputWriter(outputBuffer)
	application.RootCommand().SetArgs([]string{checkConfigFlagConstant})

	executionError := application.Execute()
	return outputBuffer.String(), executionError
}

func TestCheckConfigReportsValidEnvironment(t *testing.T) {
	setCompleteEnvironment(t)

	commandOutput, executionError := executeCheckConfig(t)

	require.NoError(t, executionError)
	require.Contains(t, commandOutput, configurationOKFragment)
}

func TestCheckConfigWarnsOnUnrecognizedTokenPrefix(t *testing.T) {
	setCompleteEnvironment(t)
	t.Setenv("GITHUB_TOKEN", unusualTokenValueConstant)

	commandOutput, executionError := executeCheckConfig(t)

	require.NoError(t, executionError)
	require.Contains(t, commandOutput, tokenWarningFragment)
	require.Contains(t, commandOutput, configurationOKFragment)
}

func TestCheckConfigFailsOnMissingRequiredValues(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_ORG", "")
	t.Setenv("SOCKET_API_TOKEN", "")
	t.Setenv("SOCKET_ORG", "")

	commandOutput, executionError := executeCheckConfig(t)

	require.Error(t, executionError)
	require.Contains(t, commandOutput, "GITHUB_TOKEN")
}

func TestCheckConfigRejectsInvalidOrganizationName(t *testing.T) {
	setCompleteEnvironment(t)
	t.Setenv("GITHUB_ORG", invalidOrganizationName)

	_, executionError := executeCheckConfig(t)

	require.Error(t, executionError)
	require.Contains(t, executionError.Error(), invalidOrgFragmentConstant)
}

func TestRootCommandExposesOperatorFlags(t *testing.T) {
	application := cli.NewApplication()

	rootCommand := application.RootCommand()
	require.NotNil(t, rootCommand.Flags().Lookup("dry-run"))
	require.NotNil(t, rootCommand.Flags().Lookup("check-config"))
	require.NotNil(t, rootCommand.PersistentFlags().Lookup("config"))
	require.NotNil(t, rootCommand.PersistentFlags().Lookup("log-level"))
	require.NotNil(t, rootCommand.PersistentFlags().Lookup("log-format"))
}
