package execshell_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/scansweep/scansweep/internal/execshell"
)

const (
	testSecretTokenValueConstant        = "ghp_secret1234567890"
	testCredentialUserConstant          = "x-access-token"
	testCredentialMaskConstant          = "***"
	testCloneFailureExitCodeConstant    = 128
	testCredentialRemoteURLTemplate     = "https://%s:%s@github.com/acme/widgets.git"
	testCloneStandardErrorTemplate      = "fatal: unable to access 'https://%s:%s@github.com/acme/widgets.git/': The requested URL returned error: 403"
	testMaskedFailureCaseNameConstant   = "failed_command_error_masks_token"
	testMaskedSpawnCaseNameConstant     = "execution_error_masks_token"
	testMaskedLifecycleCaseNameConstant = "lifecycle_logs_mask_token"
)

func credentialRemoteURL() string {
	return fmt.Sprintf(testCredentialRemoteURLTemplate, testCredentialUserConstant, testSecretTokenValueConstant)
}

func requireEntryFreeOfToken(testInstance *testing.T, logEntry observer.LoggedEntry) {
	require.NotContains(testInstance, logEntry.Message, testSecretTokenValueConstant)
	for _, contextValue := range logEntry.ContextMap() {
		require.NotContains(testInstance, fmt.Sprintf("%v", contextValue), testSecretTokenValueConstant)
	}
}

func TestExecuteKeepsCloneCredentialsOutOfLogsAndErrors(testInstance *testing.T) {
	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	commandRunner := &recordingCommandRunner{
		executionResult: execshell.ExecutionResult{
			StandardError: fmt.Sprintf(testCloneStandardErrorTemplate, testCredentialUserConstant, testSecretTokenValueConstant),
			ExitCode:      testCloneFailureExitCodeConstant,
		},
	}
	executor, creationError := execshell.NewShellExecutor(zap.New(observedCore), commandRunner)
	require.NoError(testInstance, creationError)

	_, executionError := executor.ExecuteGit(context.Background(), execshell.CommandDetails{
		Arguments: []string{"clone", credentialRemoteURL(), testCloneDestinationConstant},
	})

	require.Error(testInstance, executionError)
	require.NotContains(testInstance, executionError.Error(), testSecretTokenValueConstant)
	require.Contains(testInstance, executionError.Error(), testCredentialMaskConstant)
	require.Contains(testInstance, executionError.Error(), "github.com/acme/widgets.git")

	require.NotZero(testInstance, observedLogs.Len())
	for _, logEntry := range observedLogs.All() {
		requireEntryFreeOfToken(testInstance, logEntry)
	}

	// The subprocess itself still receives the real credentials.
	require.Len(testInstance, commandRunner.recordedCommands, 1)
	require.Contains(testInstance, commandRunner.recordedCommands[0].Details.Arguments[1], testSecretTokenValueConstant)
}

func TestExecuteMasksCredentialsOnSuccessfulClone(testInstance *testing.T) {
	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	commandRunner := &recordingCommandRunner{}
	executor, creationError := execshell.NewShellExecutor(zap.New(observedCore), commandRunner)
	require.NoError(testInstance, creationError)

	_, executionError := executor.ExecuteGit(context.Background(), execshell.CommandDetails{
		Arguments: []string{"clone", credentialRemoteURL(), testCloneDestinationConstant},
	})

	require.NoError(testInstance, executionError)
	require.NotZero(testInstance, observedLogs.Len())
	for _, logEntry := range observedLogs.All() {
		requireEntryFreeOfToken(testInstance, logEntry)
	}
}

func TestTypedErrorsMaskCredentials(testInstance *testing.T) {
	cloneCommand := execshell.ShellCommand{
		Name: execshell.CommandGit,
		Details: execshell.CommandDetails{
			Arguments: []string{"clone", credentialRemoteURL(), testCloneDestinationConstant},
		},
	}

	testCases := []struct {
		name         string
		builtFailure error
	}{
		{
			name: testMaskedFailureCaseNameConstant,
			builtFailure: execshell.CommandFailedError{
				Command: cloneCommand,
				Result: execshell.ExecutionResult{
					StandardError: fmt.Sprintf(testCloneStandardErrorTemplate, testCredentialUserConstant, testSecretTokenValueConstant),
					ExitCode:      testCloneFailureExitCodeConstant,
				},
			},
		},
		{
			name: testMaskedSpawnCaseNameConstant,
			builtFailure: execshell.CommandExecutionError{
				Command: cloneCommand,
				Cause:   errors.New("fork/exec git: permission denied"),
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			failureText := testCase.builtFailure.Error()
			require.NotContains(testInstance, failureText, testSecretTokenValueConstant)
			require.Contains(testInstance, failureText, testCredentialMaskConstant)
		})
	}
}

func TestFailureMessagesMaskCredentials(testInstance *testing.T) {
	formatter := execshell.CommandMessageFormatter{}
	cloneCommand := execshell.ShellCommand{
		Name: execshell.CommandGit,
		Details: execshell.CommandDetails{
			Arguments: []string{"clone", credentialRemoteURL(), testCloneDestinationConstant},
		},
	}
	failureResult := execshell.ExecutionResult{
		StandardError: fmt.Sprintf(testCloneStandardErrorTemplate, testCredentialUserConstant, testSecretTokenValueConstant),
		ExitCode:      testCloneFailureExitCodeConstant,
	}

	failureMessage := formatter.BuildFailureMessage(cloneCommand, failureResult)
	require.NotContains(testInstance, failureMessage, testSecretTokenValueConstant)
	require.Contains(testInstance, failureMessage, testCredentialMaskConstant)
}
