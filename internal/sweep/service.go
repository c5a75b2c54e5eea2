package sweep

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/scansweep/scansweep/internal/githubapi"
	"github.com/scansweep/scansweep/internal/gitrepo"
	"github.com/scansweep/scansweep/internal/socketscan"
)

const (
	commitMessageConstant           = "chore: disable socket github app"
	pushRemoteNameConstant          = "origin"
	pushFallbackReferenceConstant   = "HEAD"
	gitCredentialUserConstant       = "x-access-token"
	repositoryFieldNameConstant     = "repository"
	stepFieldNameConstant           = "step"
	runIdentifierFieldNameConstant  = "run_id"
	organizationFieldNameConstant   = "organization"
	dryRunFieldNameConstant         = "dry_run"
	repositoryCountFieldConstant    = "repository_count"
	durationFieldNameConstant       = "duration"
	messageFieldNameConstant        = "message"
	panicValueFieldNameConstant     = "panic_value"
	panicFailureTemplateConstant    = "repository processing panicked: %v"
	cloneURLParseTemplateConstant   = "unable to parse clone url %s: %w"
	listFailureTemplateConstant     = "unable to list archived repositories for %s: %w"
	organizationFailureTemplate     = "organization %s: %w"
	sweepStartMessageConstant       = "starting archived repository sweep"
	sweepCompleteMessageConstant    = "sweep complete"
	noRepositoriesMessageConstant   = "no archived repositories found"
	scanAuthWarningMessageConstant  = "scanning service authentication failed; scan record deletions will likely fail"
	repositoryStartMessageConstant  = "processing repository"
	repositoryDoneMessageConstant   = "repository processed"
	repositoryFailedMessageConstant = "repository processing failed"
	stepSucceededMessageConstant    = "step succeeded"
	stepFailedMessageConstant       = "step failed"
	cleanupFailedMessageConstant    = "unable to remove working copy"

	dryRunUnarchiveTemplateConstant  = "dry-run: would unarchive %s"
	dryRunCloneTemplateConstant      = "dry-run: would clone %s into %s"
	dryRunConfigTemplateConstant     = "dry-run: would write %s"
	dryRunStageTemplateConstant      = "dry-run: would stage %s"
	dryRunCommitTemplateConstant     = "dry-run: would commit %q"
	dryRunPushTemplateConstant       = "dry-run: would push to %s"
	dryRunRearchiveTemplateConstant  = "dry-run: would rearchive %s"
	unarchivedMessageTemplate        = "unarchived %s"
	unarchiveFailedTemplateConstant  = "unable to unarchive %s"
	clonedMessageTemplateConstant    = "cloned into %s"
	wroteConfigMessageTemplate       = "wrote %s"
	stagedMessageTemplateConstant    = "staged %s"
	committedMessageConstant         = "committed configuration change"
	nothingToCommitMessageConstant   = "no changes to commit"
	pushedMessageTemplateConstant    = "pushed to %s %s"
	rearchivedMessageTemplate        = "rearchived %s"
	rearchiveFailedTemplateConstant  = "unable to rearchive %s; repository remains unarchived"
	notArchivedSkipMessageConstant   = "repository was not archived; archived flag left untouched"
)

// Sentinel errors for fatal preflight failures.
var (
	// ErrRepositoryHostAuthenticationFailed indicates the hosting-service token was rejected.
	ErrRepositoryHostAuthenticationFailed = errors.New("repository host authentication failed")
	// ErrOrganizationUnavailable indicates the organization could not be resolved with the supplied token.
	ErrOrganizationUnavailable = errors.New("organization is not accessible")
	// ErrLoggerNotConfigured indicates service construction without a logger.
	ErrLoggerNotConfigured = errors.New("logger not configured")
	// ErrRepositoryHostNotConfigured indicates service construction without a repository host client.
	ErrRepositoryHostNotConfigured = errors.New("repository host client not configured")
	// ErrScanServiceNotConfigured indicates service construction without a scanning-service client.
	ErrScanServiceNotConfigured = errors.New("scanning service client not configured")
	// ErrWorkingCopyManagerNotConfigured indicates service construction without a git manager.
	ErrWorkingCopyManagerNotConfigured = errors.New("working copy manager not configured")
)

// RepositoryHost abstracts the hosting-service operations the sweep needs.
type RepositoryHost interface {
	VerifyAuthentication(executionContext context.Context) bool
	VerifyOrganization(executionContext context.Context, organizationName string) bool
	ListArchivedRepositories(executionContext context.Context, organizationName string) ([]githubapi.RepositoryDescriptor, error)
	SetArchived(executionContext context.Context, ownerLogin string, repositoryName string, archived bool) bool
}

// ScanService abstracts the scanning-service operations the sweep needs.
type ScanService interface {
	VerifyAuthentication(executionContext context.Context) bool
	DeleteRepository(executionContext context.Context, organizationSlug string, repositoryName string, dryRun bool) socketscan.DeletionOutcome
}

// WorkingCopyManager abstracts local git operations on cloned repositories.
type WorkingCopyManager interface {
	CloneRepository(executionContext context.Context, remoteURL string, destinationPath string) error
	ResolveGlobalIdentity(executionContext context.Context) (gitrepo.CommitIdentity, error)
	ConfigureLocalIdentity(executionContext context.Context, repositoryPath string, identity gitrepo.CommitIdentity) error
	StageFile(executionContext context.Context, repositoryPath string, relativeFilePath string) error
	Commit(executionContext context.Context, repositoryPath string, commitMessage string) (bool, error)
	Push(executionContext context.Context, repositoryPath string, remoteName string, branchName string) error
	RemoveWorkingCopy(destinationPath string) error
}

// ServiceDependencies lists the collaborators a Service requires.
type ServiceDependencies struct {
	Logger             *zap.Logger
	Configuration      Configuration
	RepositoryHost     RepositoryHost
	ScanService        ScanService
	WorkingCopyManager WorkingCopyManager
	RunIdentifier      string
}

// Service runs the archived-repository sweep end to end.
type Service struct {
	logger         *zap.Logger
	configuration  Configuration
	repositoryHost RepositoryHost
	scanService    ScanService
	workingCopies  WorkingCopyManager
	runIdentifier  string
}

// NewService validates the dependencies and builds a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.RepositoryHost == nil {
		return nil, ErrRepositoryHostNotConfigured
	}
	if dependencies.ScanService == nil {
		return nil, ErrScanServiceNotConfigured
	}
	if dependencies.WorkingCopyManager == nil {
		return nil, ErrWorkingCopyManagerNotConfigured
	}

	return &Service{
		logger:         dependencies.Logger,
		configuration:  dependencies.Configuration,
		repositoryHost: dependencies.RepositoryHost,
		scanService:    dependencies.ScanService,
		workingCopies:  dependencies.WorkingCopyManager,
		runIdentifier:  dependencies.RunIdentifier,
	}, nil
}

// Run verifies preconditions, sweeps every archived repository in the
// configured organization, and returns the aggregated report. The returned
// error is non-nil only for fatal preflight failures; individual repository
// failures are reflected in the report instead.
func (service *Service) Run(executionContext context.Context) (SummaryReport, error) {
	runStartTime := time.Now()
	summaryReport := SummaryReport{
		RunIdentifier:    service.runIdentifier,
		OrganizationName: service.configuration.GitHubOrganization,
		DryRun:           service.configuration.DryRun,
		StartTime:        runStartTime,
	}

	service.logger.Info(sweepStartMessageConstant,
		zap.String(runIdentifierFieldNameConstant, service.runIdentifier),
		zap.String(organizationFieldNameConstant, service.configuration.GitHubOrganization),
		zap.Bool(dryRunFieldNameConstant, service.configuration.DryRun),
	)

	if !service.verifyWithTimeout(executionContext, service.repositoryHost.VerifyAuthentication) {
		return service.finalizeReport(summaryReport), ErrRepositoryHostAuthenticationFailed
	}
	organizationAccessible := service.verifyWithTimeout(executionContext, func(verificationContext context.Context) bool {
		return service.repositoryHost.VerifyOrganization(verificationContext, service.configuration.GitHubOrganization)
	})
	if !organizationAccessible {
		return service.finalizeReport(summaryReport), fmt.Errorf(organizationFailureTemplate, service.configuration.GitHubOrganization, ErrOrganizationUnavailable)
	}
	if !service.verifyWithTimeout(executionContext, service.scanService.VerifyAuthentication) {
		service.logger.Warn(scanAuthWarningMessageConstant)
	}

	listingContext, cancelListing := service.apiContext(executionContext)
	defer cancelListing()

	repositoryDescriptors, listError := service.repositoryHost.ListArchivedRepositories(listingContext, service.configuration.GitHubOrganization)
	if listError != nil {
		return service.finalizeReport(summaryReport), fmt.Errorf(listFailureTemplateConstant, service.configuration.GitHubOrganization, listError)
	}

	summaryReport.TotalRepositories = len(repositoryDescriptors)
	if len(repositoryDescriptors) == 0 {
		service.logger.Info(noRepositoriesMessageConstant, zap.String(organizationFieldNameConstant, service.configuration.GitHubOrganization))
		return service.finalizeReport(summaryReport), nil
	}

	for _, repositoryDescriptor := range repositoryDescriptors {
		service.logger.Info(repositoryStartMessageConstant, zap.String(repositoryFieldNameConstant, repositoryDescriptor.Name))

		operationResult, deletionRecord, archivalRecord := service.processRepository(executionContext, repositoryDescriptor)

		summaryReport.Operations = append(summaryReport.Operations, operationResult)
		if deletionRecord != nil {
			summaryReport.DeletionRecords = append(summaryReport.DeletionRecords, *deletionRecord)
		}
		if archivalRecord != nil {
			summaryReport.ArchivalRecords = append(summaryReport.ArchivalRecords, *archivalRecord)
		}
		if operationResult.Success {
			summaryReport.SuccessCount++
		} else {
			summaryReport.FailureCount++
		}
	}

	summaryReport = service.finalizeReport(summaryReport)
	service.logger.Info(sweepCompleteMessageConstant,
		zap.Int(repositoryCountFieldConstant, summaryReport.TotalRepositories),
		zap.Int("successes", summaryReport.SuccessCount),
		zap.Int("failures", summaryReport.FailureCount),
		zap.Duration(durationFieldNameConstant, summaryReport.TotalDuration),
	)

	return summaryReport, nil
}

func (service *Service) finalizeReport(summaryReport SummaryReport) SummaryReport {
	summaryReport.EndTime = time.Now()
	summaryReport.TotalDuration = summaryReport.EndTime.Sub(summaryReport.StartTime)
	return summaryReport
}

// processRepository runs the full step pipeline for one repository. Failures
// never escape: the result captures them so the sweep loop always continues.
func (service *Service) processRepository(executionContext context.Context, repositoryDescriptor githubapi.RepositoryDescriptor) (OperationResult, *DeletionRecord, *ArchivalRecord) {
	operationStartTime := time.Now()
	operationResult := OperationResult{
		RepositoryName: repositoryDescriptor.Name,
		StartTime:      operationStartTime,
	}

	workingCopyPath := filepath.Join(service.configuration.CloneBasePath, repositoryDescriptor.Name)
	repositoryWasUnarchived := false
	var deletionRecord *DeletionRecord

	pipelineFailure := service.executeMutationSteps(executionContext, repositoryDescriptor, workingCopyPath, &operationResult, &repositoryWasUnarchived, &deletionRecord)

	var archivalRecord *ArchivalRecord
	if repositoryDescriptor.Archived {
		if repositoryWasUnarchived {
			archivalRecord = service.executeRearchiveStep(executionContext, repositoryDescriptor, &operationResult)
		}
	} else {
		service.logger.Debug(notArchivedSkipMessageConstant, zap.String(repositoryFieldNameConstant, repositoryDescriptor.Name))
	}

	if !service.configuration.DryRun {
		if removeError := service.workingCopies.RemoveWorkingCopy(workingCopyPath); removeError != nil {
			service.logger.Warn(cleanupFailedMessageConstant,
				zap.String(repositoryFieldNameConstant, repositoryDescriptor.Name),
				zap.Error(removeError),
			)
		}
	}

	operationResult.Failure = pipelineFailure
	operationResult.Success = pipelineFailure == nil
	operationResult.EndTime = time.Now()
	operationResult.Duration = operationResult.EndTime.Sub(operationResult.StartTime)

	if operationResult.Success {
		service.logger.Info(repositoryDoneMessageConstant,
			zap.String(repositoryFieldNameConstant, repositoryDescriptor.Name),
			zap.Duration(durationFieldNameConstant, operationResult.Duration),
		)
	} else {
		service.logger.Error(repositoryFailedMessageConstant,
			zap.String(repositoryFieldNameConstant, repositoryDescriptor.Name),
			zap.Error(pipelineFailure),
		)
	}

	return operationResult, deletionRecord, archivalRecord
}

// executeMutationSteps runs steps one through seven. A non-nil return aborts
// the pipeline; scan-record deletion failures are recorded without aborting.
func (service *Service) executeMutationSteps(
	executionContext context.Context,
	repositoryDescriptor githubapi.RepositoryDescriptor,
	workingCopyPath string,
	operationResult *OperationResult,
	repositoryWasUnarchived *bool,
	deletionRecord **DeletionRecord,
) (pipelineFailure error) {
	defer func() {
		if panicValue := recover(); panicValue != nil {
			pipelineFailure = fmt.Errorf(panicFailureTemplateConstant, panicValue)
			service.logger.Error(repositoryFailedMessageConstant,
				zap.String(repositoryFieldNameConstant, repositoryDescriptor.Name),
				zap.Any(panicValueFieldNameConstant, panicValue),
			)
		}
	}()

	if repositoryDescriptor.Archived {
		unarchiveError := service.runStep(operationResult, repositoryDescriptor.Name, StepUnarchive, func() (string, error) {
			if service.configuration.DryRun {
				return fmt.Sprintf(dryRunUnarchiveTemplateConstant, repositoryDescriptor.Name), nil
			}
			stepContext, cancelStep := service.apiContext(executionContext)
			defer cancelStep()
			if !service.repositoryHost.SetArchived(stepContext, repositoryDescriptor.OwnerLogin, repositoryDescriptor.Name, false) {
				return "", fmt.Errorf(unarchiveFailedTemplateConstant, repositoryDescriptor.Name)
			}
			return fmt.Sprintf(unarchivedMessageTemplate, repositoryDescriptor.Name), nil
		})
		if unarchiveError != nil {
			return unarchiveError
		}
		*repositoryWasUnarchived = true
	}

	cloneError := service.runStep(operationResult, repositoryDescriptor.Name, StepClone, func() (string, error) {
		if service.configuration.DryRun {
			return fmt.Sprintf(dryRunCloneTemplateConstant, repositoryDescriptor.CloneURL, workingCopyPath), nil
		}
		authenticatedCloneURL, credentialError := buildAuthenticatedCloneURL(repositoryDescriptor.CloneURL, service.configuration.GitHubToken)
		if credentialError != nil {
			return "", credentialError
		}
		stepContext, cancelStep := context.WithTimeout(executionContext, service.configuration.CloneTimeout)
		defer cancelStep()
		if stepError := service.workingCopies.CloneRepository(stepContext, authenticatedCloneURL, workingCopyPath); stepError != nil {
			return "", stepError
		}
		return fmt.Sprintf(clonedMessageTemplateConstant, workingCopyPath), nil
	})
	if cloneError != nil {
		return cloneError
	}

	configError := service.runStep(operationResult, repositoryDescriptor.Name, StepCreateConfigFile, func() (string, error) {
		if service.configuration.DryRun {
			return fmt.Sprintf(dryRunConfigTemplateConstant, ConfigurationFileName), nil
		}
		if _, stepError := WriteConfigurationFile(workingCopyPath); stepError != nil {
			return "", stepError
		}
		return fmt.Sprintf(wroteConfigMessageTemplate, ConfigurationFileName), nil
	})
	if configError != nil {
		return configError
	}

	stageError := service.runStep(operationResult, repositoryDescriptor.Name, StepStage, func() (string, error) {
		if service.configuration.DryRun {
			return fmt.Sprintf(dryRunStageTemplateConstant, ConfigurationFileName), nil
		}
		stepContext, cancelStep := service.apiContext(executionContext)
		defer cancelStep()
		if stepError := service.workingCopies.StageFile(stepContext, workingCopyPath, ConfigurationFileName); stepError != nil {
			return "", stepError
		}
		return fmt.Sprintf(stagedMessageTemplateConstant, ConfigurationFileName), nil
	})
	if stageError != nil {
		return stageError
	}

	commitError := service.runStep(operationResult, repositoryDescriptor.Name, StepCommit, func() (string, error) {
		if service.configuration.DryRun {
			return fmt.Sprintf(dryRunCommitTemplateConstant, commitMessageConstant), nil
		}
		stepContext, cancelStep := service.apiContext(executionContext)
		defer cancelStep()
		commitIdentity, identityError := service.workingCopies.ResolveGlobalIdentity(stepContext)
		if identityError != nil {
			return "", identityError
		}
		if identityError = service.workingCopies.ConfigureLocalIdentity(stepContext, workingCopyPath, commitIdentity); identityError != nil {
			return "", identityError
		}
		changesCommitted, stepError := service.workingCopies.Commit(stepContext, workingCopyPath, commitMessageConstant)
		if stepError != nil {
			return "", stepError
		}
		if !changesCommitted {
			return nothingToCommitMessageConstant, nil
		}
		return committedMessageConstant, nil
	})
	if commitError != nil {
		return commitError
	}

	service.executeDeletionStep(executionContext, repositoryDescriptor, operationResult, deletionRecord)

	pushError := service.runStep(operationResult, repositoryDescriptor.Name, StepPush, func() (string, error) {
		pushReference := repositoryDescriptor.DefaultBranch
		if len(pushReference) == 0 {
			pushReference = pushFallbackReferenceConstant
		}
		if service.configuration.DryRun {
			return fmt.Sprintf(dryRunPushTemplateConstant, pushRemoteNameConstant), nil
		}
		stepContext, cancelStep := context.WithTimeout(executionContext, service.configuration.PushTimeout)
		defer cancelStep()
		if stepError := service.workingCopies.Push(stepContext, workingCopyPath, pushRemoteNameConstant, pushReference); stepError != nil {
			return "", stepError
		}
		return fmt.Sprintf(pushedMessageTemplateConstant, pushRemoteNameConstant, pushReference), nil
	})
	if pushError != nil {
		return pushError
	}

	return nil
}

// executeDeletionStep removes the repository's scan record. Deletion failures
// are recorded but never abort the pipeline.
func (service *Service) executeDeletionStep(
	executionContext context.Context,
	repositoryDescriptor githubapi.RepositoryDescriptor,
	operationResult *OperationResult,
	deletionRecord **DeletionRecord,
) {
	stepStartTime := time.Now()
	stepContext, cancelStep := service.apiContext(executionContext)
	defer cancelStep()

	deletionOutcome := service.scanService.DeleteRepository(stepContext, service.configuration.SocketOrganization, repositoryDescriptor.Name, service.configuration.DryRun)

	stepResult := StepResult{
		Step:     StepDeleteScanRecord,
		Success:  deletionOutcome.Success,
		Message:  deletionOutcome.Message,
		Duration: time.Since(stepStartTime),
	}
	operationResult.Steps = append(operationResult.Steps, stepResult)
	*deletionRecord = &DeletionRecord{
		RepositoryName: repositoryDescriptor.Name,
		Success:        deletionOutcome.Success,
		Message:        deletionOutcome.Message,
	}

	if deletionOutcome.Success {
		service.logger.Debug(stepSucceededMessageConstant,
			zap.String(repositoryFieldNameConstant, repositoryDescriptor.Name),
			zap.String(stepFieldNameConstant, string(StepDeleteScanRecord)),
			zap.String(messageFieldNameConstant, deletionOutcome.Message),
		)
		return
	}
	service.logger.Warn(stepFailedMessageConstant,
		zap.String(repositoryFieldNameConstant, repositoryDescriptor.Name),
		zap.String(stepFieldNameConstant, string(StepDeleteScanRecord)),
		zap.String(messageFieldNameConstant, deletionOutcome.Message),
	)
}

// executeRearchiveStep restores the archived flag. It runs whenever the
// repository was actually unarchived earlier, including after a pipeline
// failure, and its own failure never flips the operation outcome.
func (service *Service) executeRearchiveStep(executionContext context.Context, repositoryDescriptor githubapi.RepositoryDescriptor, operationResult *OperationResult) *ArchivalRecord {
	stepStartTime := time.Now()

	rearchiveSucceeded := true
	rearchiveMessage := fmt.Sprintf(rearchivedMessageTemplate, repositoryDescriptor.Name)
	if service.configuration.DryRun {
		rearchiveMessage = fmt.Sprintf(dryRunRearchiveTemplateConstant, repositoryDescriptor.Name)
	} else {
		stepContext, cancelStep := service.apiContext(executionContext)
		defer cancelStep()
		if !service.repositoryHost.SetArchived(stepContext, repositoryDescriptor.OwnerLogin, repositoryDescriptor.Name, true) {
			rearchiveSucceeded = false
			rearchiveMessage = fmt.Sprintf(rearchiveFailedTemplateConstant, repositoryDescriptor.Name)
		}
	}

	stepResult := StepResult{
		Step:     StepRearchive,
		Success:  rearchiveSucceeded,
		Message:  rearchiveMessage,
		Duration: time.Since(stepStartTime),
	}
	operationResult.Steps = append(operationResult.Steps, stepResult)

	if rearchiveSucceeded {
		service.logger.Debug(stepSucceededMessageConstant,
			zap.String(repositoryFieldNameConstant, repositoryDescriptor.Name),
			zap.String(stepFieldNameConstant, string(StepRearchive)),
		)
	} else {
		service.logger.Error(stepFailedMessageConstant,
			zap.String(repositoryFieldNameConstant, repositoryDescriptor.Name),
			zap.String(stepFieldNameConstant, string(StepRearchive)),
			zap.String(messageFieldNameConstant, rearchiveMessage),
		)
	}

	return &ArchivalRecord{
		RepositoryName: repositoryDescriptor.Name,
		Success:        rearchiveSucceeded,
		Message:        rearchiveMessage,
	}
}

// runStep times the step, records its StepResult, and logs the outcome.
func (service *Service) runStep(operationResult *OperationResult, repositoryName string, stepName StepName, stepOperation func() (string, error)) error {
	stepStartTime := time.Now()
	stepMessage, stepError := stepOperation()

	stepResult := StepResult{
		Step:     stepName,
		Success:  stepError == nil,
		Message:  stepMessage,
		Duration: time.Since(stepStartTime),
	}
	if stepError != nil {
		stepResult.Message = stepError.Error()
	}
	operationResult.Steps = append(operationResult.Steps, stepResult)

	if stepError == nil {
		service.logger.Debug(stepSucceededMessageConstant,
			zap.String(repositoryFieldNameConstant, repositoryName),
			zap.String(stepFieldNameConstant, string(stepName)),
			zap.String(messageFieldNameConstant, stepMessage),
		)
		return nil
	}

	service.logger.Error(stepFailedMessageConstant,
		zap.String(repositoryFieldNameConstant, repositoryName),
		zap.String(stepFieldNameConstant, string(stepName)),
		zap.Error(stepError),
	)
	return stepError
}

func (service *Service) apiContext(executionContext context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(executionContext, service.configuration.APITimeout)
}

// verifyWithTimeout runs one preflight verification inside its own timeout
// window so a slow check cannot starve the ones after it.
func (service *Service) verifyWithTimeout(executionContext context.Context, verification func(verificationContext context.Context) bool) bool {
	verificationContext, cancelVerification := service.apiContext(executionContext)
	defer cancelVerification()
	return verification(verificationContext)
}

// buildAuthenticatedCloneURL injects token credentials into an https clone
// URL so pushes authenticate without touching global git state. The token
// never appears in logs or error text: the shell layer masks URL userinfo
// before building any message.
func buildAuthenticatedCloneURL(cloneURL string, accessToken string) (string, error) {
	parsedURL, parseError := url.Parse(cloneURL)
	if parseError != nil {
		return "", fmt.Errorf(cloneURLParseTemplateConstant, cloneURL, parseError)
	}
	parsedURL.User = url.UserPassword(gitCredentialUserConstant, accessToken)
	return parsedURL.String(), nil
}
