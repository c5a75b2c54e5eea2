package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s %s"
	standardErrorDetailTemplateConstant     = ": %s"
	defaultWorkingDirectoryLabelConstant    = "current directory"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
)

const (
	gitCloneSubcommandNameConstant  = "clone"
	gitConfigSubcommandNameConstant = "config"
	gitAddSubcommandNameConstant    = "add"
	gitCommitSubcommandNameConstant = "commit"
	gitPushSubcommandNameConstant   = "push"
)

const (
	gitCloneStartTemplateConstant             = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant           = "Cloned %s into %s"
	gitCloneFailureTemplateConstant           = "Failed to clone %s into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant  = "Unable to clone %s into %s: %s"
	gitConfigStartTemplateConstant            = "Adjusting git configuration in %s"
	gitConfigSuccessTemplateConstant          = "Adjusted git configuration in %s"
	gitConfigFailureTemplateConstant          = "Failed to adjust git configuration in %s (exit code %d%s)"
	gitConfigExecutionFailureTemplateConstant = "Unable to adjust git configuration in %s: %s"
	gitAddStartTemplateConstant               = "Staging %s in %s"
	gitAddSuccessTemplateConstant             = "Staged %s in %s"
	gitAddFailureTemplateConstant             = "Failed to stage %s in %s (exit code %d%s)"
	gitAddExecutionFailureTemplateConstant    = "Unable to stage %s in %s: %s"
	gitCommitStartTemplateConstant            = "Creating commit in %s"
	gitCommitSuccessTemplateConstant          = "Created commit in %s"
	gitCommitFailureTemplateConstant          = "Failed to create commit in %s (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant = "Unable to create commit in %s: %s"
	gitPushStartTemplateConstant              = "Pushing from %s"
	gitPushSuccessTemplateConstant            = "Pushed from %s"
	gitPushFailureTemplateConstant            = "Failed to push from %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant   = "Unable to push from %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	command = command.redacted()
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	subcommand := strings.TrimSpace(command.Details.Arguments[0])

	switch subcommand {
	case gitCloneSubcommandNameConstant:
		remoteURL := formatter.argumentAtIndex(command.Details.Arguments, 1)
		destination := formatter.argumentAtIndex(command.Details.Arguments, 2)
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCloneStartTemplateConstant, remoteURL, destination)
		case messageStageSuccess:
			return fmt.Sprintf(gitCloneSuccessTemplateConstant, remoteURL, destination)
		case messageStageFailure:
			return fmt.Sprintf(gitCloneFailureTemplateConstant, remoteURL, destination, result.ExitCode, formatter.formatStandardErrorDetail(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitCloneExecutionFailureTemplateConstant, remoteURL, destination, formatter.describeFailure(failure))
		}
	case gitConfigSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitConfigStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitConfigSuccessTemplateConstant, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitConfigFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorDetail(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitConfigExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
		}
	case gitAddSubcommandNameConstant:
		stagedPath := formatter.argumentAtIndex(command.Details.Arguments, len(command.Details.Arguments)-1)
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitAddStartTemplateConstant, stagedPath, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitAddSuccessTemplateConstant, stagedPath, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitAddFailureTemplateConstant, stagedPath, workingDirectory, result.ExitCode, formatter.formatStandardErrorDetail(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitAddExecutionFailureTemplateConstant, stagedPath, workingDirectory, formatter.describeFailure(failure))
		}
	case gitCommitSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCommitStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitCommitSuccessTemplateConstant, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitCommitFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorDetail(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitCommitExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
		}
	case gitPushSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitPushStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitPushSuccessTemplateConstant, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitPushFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorDetail(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitPushExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := strings.TrimSpace(fmt.Sprintf(commandLabelTemplateConstant, command.Name, strings.Join(command.Details.Arguments, " ")))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorDetail(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedDirectory
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, argumentIndex int) string {
	if argumentIndex < 0 || argumentIndex >= len(arguments) {
		return emptyStringConstant
	}
	return strings.TrimSpace(arguments[argumentIndex])
}

func (formatter CommandMessageFormatter) formatStandardErrorDetail(standardError string) string {
	trimmedStandardError := strings.TrimSpace(redactCredentialText(standardError))
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorDetailTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return redactCredentialText(failure.Error())
}
