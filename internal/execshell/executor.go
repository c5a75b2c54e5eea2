package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "logger not configured"
	commandRunnerNotConfiguredMessageConstant = "command runner not configured"
	commandFailedTemplateConstant             = "%s %s failed with exit code %d%s"
	commandExecutionFailedTemplateConstant    = "%s %s could not be executed: %s"
	commandArgumentsJoinSeparatorConstant     = " "
	standardErrorSuffixTemplateConstant       = ": %s"
	emptyStandardErrorSuffixConstant          = ""
	logFieldCommandConstant                   = "command"
	logFieldArgumentsConstant                 = "arguments"
	logFieldWorkingDirectoryConstant          = "working_directory"
	logFieldExitCodeConstant                  = "exit_code"
	logFieldStandardErrorConstant             = "standard_error"
)

var (
	// ErrLoggerNotConfigured indicates the executor was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the executor was constructed without a runner.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandFailedError reports a command that completed with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command including captured standard error.
// Embedded URL credentials are masked before the text is built.
func (failedError CommandFailedError) Error() string {
	redactedCommand := failedError.Command.redacted()
	standardErrorSuffix := emptyStandardErrorSuffixConstant
	trimmedStandardError := strings.TrimSpace(redactCredentialText(failedError.Result.StandardError))
	if len(trimmedStandardError) > 0 {
		standardErrorSuffix = fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
	}
	return fmt.Sprintf(
		commandFailedTemplateConstant,
		redactedCommand.Name,
		strings.Join(redactedCommand.Details.Arguments, commandArgumentsJoinSeparatorConstant),
		failedError.Result.ExitCode,
		standardErrorSuffix,
	)
}

// CommandExecutionError reports a command that could not be spawned at all.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure with credentials masked.
func (executionError CommandExecutionError) Error() string {
	redactedCommand := executionError.Command.redacted()
	return fmt.Sprintf(
		commandExecutionFailedTemplateConstant,
		redactedCommand.Name,
		strings.Join(redactedCommand.Details.Arguments, commandArgumentsJoinSeparatorConstant),
		redactCredentialText(executionError.Cause.Error()),
	)
}

// Unwrap exposes the underlying spawn failure.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// ShellExecutor coordinates command execution with structured lifecycle logging.
type ShellExecutor struct {
	logger           *zap.Logger
	commandRunner    CommandRunner
	messageFormatter CommandMessageFormatter
}

// NewShellExecutor constructs a ShellExecutor with the required dependencies.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{
		logger:           logger,
		commandRunner:    commandRunner,
		messageFormatter: CommandMessageFormatter{},
	}, nil
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// Execute runs an arbitrary command, logging its lifecycle, and converts
// non-zero exits and spawn failures into typed errors.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	// Every log message, field, and lifecycle message is built from the
	// redacted command so URL credentials never reach the run log.
	loggableCommand := command.redacted()

	executor.logger.Debug(
		executor.messageFormatter.BuildStartedMessage(loggableCommand),
		zap.String(logFieldCommandConstant, string(loggableCommand.Name)),
		zap.Strings(logFieldArgumentsConstant, loggableCommand.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, loggableCommand.Details.WorkingDirectory),
	)

	executionResult, runError := executor.commandRunner.Run(executionContext, command)
	if runError != nil {
		failure := CommandExecutionError{Command: command, Cause: runError}
		executor.logger.Error(
			executor.messageFormatter.BuildExecutionFailureMessage(loggableCommand, runError),
			zap.String(logFieldCommandConstant, string(loggableCommand.Name)),
			zap.Error(failure),
		)
		return ExecutionResult{}, failure
	}

	if executionResult.ExitCode != 0 {
		failure := CommandFailedError{Command: command, Result: executionResult}
		executor.logger.Error(
			executor.messageFormatter.BuildFailureMessage(loggableCommand, executionResult),
			zap.String(logFieldCommandConstant, string(loggableCommand.Name)),
			zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
			zap.String(logFieldStandardErrorConstant, strings.TrimSpace(redactCredentialText(executionResult.StandardError))),
		)
		return ExecutionResult{}, failure
	}

	executor.logger.Debug(
		executor.messageFormatter.BuildSuccessMessage(loggableCommand),
		zap.String(logFieldCommandConstant, string(loggableCommand.Name)),
	)

	return executionResult, nil
}
