package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/scansweep/scansweep/internal/execshell"
	"github.com/scansweep/scansweep/internal/retry"
)

const (
	gitCloneSubcommandConstant            = "clone"
	gitConfigSubcommandConstant           = "config"
	gitAddSubcommandConstant              = "add"
	gitCommitSubcommandConstant           = "commit"
	gitPushSubcommandConstant             = "push"
	gitGlobalFlagConstant                 = "--global"
	gitGetFlagConstant                    = "--get"
	gitMessageFlagConstant                = "-m"
	gitPathSeparatorArgumentConstant      = "--"
	gitUserNameConfigurationKeyConstant   = "user.name"
	gitUserEmailConfigurationKeyConstant  = "user.email"
	executorNotConfiguredMessageConstant  = "git executor not configured"
	globalIdentityUnsetMessageConstant    = "global git identity is not configured; set user.name and user.email with git config --global"
	staleDirectoryRemovalTemplateConstant = "unable to remove stale clone directory %s: %w"
)

// nothingToCommitPatterns enumerates the benign commit outputs treated as an
// already-satisfied commit rather than a failure.
var nothingToCommitPatterns = []string{
	"nothing to commit",
	"nothing added to commit",
	"no changes added to commit",
}

var (
	// ErrExecutorNotConfigured indicates the manager was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	// ErrGlobalIdentityUnset indicates git has no global user.name or user.email.
	ErrGlobalIdentityUnset = errors.New(globalIdentityUnsetMessageConstant)
)

// GitExecutor exposes the subset of shell execution required by the manager.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// WorkspaceFileSystem abstracts the destructive filesystem operation used
// before cloning, for deterministic testing.
type WorkspaceFileSystem interface {
	RemoveAll(path string) error
}

type osWorkspaceFileSystem struct{}

func (osWorkspaceFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// CommitIdentity captures the resolved author identity for commits.
type CommitIdentity struct {
	Name  string
	Email string
}

// RepositoryManager coordinates git subprocess operations for one working copy.
type RepositoryManager struct {
	executor    GitExecutor
	fileSystem  WorkspaceFileSystem
	retryPolicy retry.Policy
}

// NewRepositoryManager constructs a RepositoryManager around the provided executor.
func NewRepositoryManager(executor GitExecutor, retryPolicy retry.Policy) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &RepositoryManager{
		executor:    executor,
		fileSystem:  osWorkspaceFileSystem{},
		retryPolicy: retryPolicy,
	}, nil
}

// WithFileSystem overrides the filesystem implementation, primarily for tests.
func (manager *RepositoryManager) WithFileSystem(fileSystem WorkspaceFileSystem) *RepositoryManager {
	if fileSystem != nil {
		manager.fileSystem = fileSystem
	}
	return manager
}

// CloneRepository removes any stale directory at destinationPath left behind
// by a crashed prior run, then clones remoteURL into it.
func (manager *RepositoryManager) CloneRepository(executionContext context.Context, remoteURL string, destinationPath string) error {
	if removalError := manager.fileSystem.RemoveAll(destinationPath); removalError != nil {
		return fmt.Errorf(staleDirectoryRemovalTemplateConstant, destinationPath, removalError)
	}

	_, cloneError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitCloneSubcommandConstant, remoteURL, destinationPath},
	})
	return cloneError
}

// ResolveGlobalIdentity reads the global git user.name and user.email.
// An unset identity is a precondition failure, not a recoverable condition.
func (manager *RepositoryManager) ResolveGlobalIdentity(executionContext context.Context) (CommitIdentity, error) {
	globalName, nameError := manager.readGlobalConfigurationValue(executionContext, gitUserNameConfigurationKeyConstant)
	if nameError != nil {
		return CommitIdentity{}, ErrGlobalIdentityUnset
	}
	globalEmail, emailError := manager.readGlobalConfigurationValue(executionContext, gitUserEmailConfigurationKeyConstant)
	if emailError != nil {
		return CommitIdentity{}, ErrGlobalIdentityUnset
	}
	if len(globalName) == 0 || len(globalEmail) == 0 {
		return CommitIdentity{}, ErrGlobalIdentityUnset
	}
	return CommitIdentity{Name: globalName, Email: globalEmail}, nil
}

// ConfigureLocalIdentity writes the supplied identity into the repository's
// local configuration.
func (manager *RepositoryManager) ConfigureLocalIdentity(executionContext context.Context, repositoryPath string, identity CommitIdentity) error {
	if _, nameError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitConfigSubcommandConstant, gitUserNameConfigurationKeyConstant, identity.Name},
		WorkingDirectory: repositoryPath,
	}); nameError != nil {
		return nameError
	}

	_, emailError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitConfigSubcommandConstant, gitUserEmailConfigurationKeyConstant, identity.Email},
		WorkingDirectory: repositoryPath,
	})
	return emailError
}

// StageFile adds exactly the named file to the commit index.
func (manager *RepositoryManager) StageFile(executionContext context.Context, repositoryPath string, relativeFilePath string) error {
	_, stageError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitAddSubcommandConstant, gitPathSeparatorArgumentConstant, relativeFilePath},
		WorkingDirectory: repositoryPath,
	})
	return stageError
}

// Commit records the staged changes with the supplied message. A clean index
// is reported as committed=false with no error, which keeps re-runs idempotent.
func (manager *RepositoryManager) Commit(executionContext context.Context, repositoryPath string, commitMessage string) (bool, error) {
	_, commitError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCommitSubcommandConstant, gitMessageFlagConstant, commitMessage},
		WorkingDirectory: repositoryPath,
	})
	if commitError == nil {
		return true, nil
	}

	var commandFailure execshell.CommandFailedError
	if errors.As(commitError, &commandFailure) && isNothingToCommitOutput(commandFailure.Result) {
		return false, nil
	}

	return false, commitError
}

// Push publishes the branch to the named remote, retrying transient network
// failures per the shared backoff policy.
func (manager *RepositoryManager) Push(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error {
	return manager.retryPolicy.Execute(executionContext, isTransientGitFailure, func(attemptContext context.Context) error {
		_, pushError := manager.executor.ExecuteGit(attemptContext, execshell.CommandDetails{
			Arguments:        []string{gitPushSubcommandConstant, remoteName, branchName},
			WorkingDirectory: repositoryPath,
		})
		return pushError
	})
}

// RemoveWorkingCopy deletes the local clone directory.
func (manager *RepositoryManager) RemoveWorkingCopy(destinationPath string) error {
	return manager.fileSystem.RemoveAll(destinationPath)
}

func (manager *RepositoryManager) readGlobalConfigurationValue(executionContext context.Context, configurationKey string) (string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitConfigSubcommandConstant, gitGlobalFlagConstant, gitGetFlagConstant, configurationKey},
	})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

func isNothingToCommitOutput(result execshell.ExecutionResult) bool {
	combinedOutput := strings.ToLower(result.StandardOutput + "\n" + result.StandardError)
	for _, benignPattern := range nothingToCommitPatterns {
		if strings.Contains(combinedOutput, benignPattern) {
			return true
		}
	}
	return false
}

func isTransientGitFailure(failure error) bool {
	var commandFailure execshell.CommandFailedError
	if errors.As(failure, &commandFailure) {
		return retry.IsTransientOutput(commandFailure.Result.StandardError + "\n" + commandFailure.Result.StandardOutput)
	}
	return retry.IsTransientError(failure)
}
