package sweep

import (
	"time"
)

// StepName identifies one stage of the per-repository pipeline.
type StepName string

const (
	// StepUnarchive lifts the archived flag so the repository accepts writes.
	StepUnarchive StepName = "unarchive"
	// StepClone materializes a working copy under the clone base path.
	StepClone StepName = "clone"
	// StepCreateConfigFile writes the scanner configuration document.
	StepCreateConfigFile StepName = "create_config_file"
	// StepStage stages the configuration document for commit.
	StepStage StepName = "stage"
	// StepCommit records the configuration change.
	StepCommit StepName = "commit"
	// StepDeleteScanRecord removes the repository from the scanning service.
	StepDeleteScanRecord StepName = "delete_scan_record"
	// StepPush uploads the recorded change to the hosting service.
	StepPush StepName = "push"
	// StepRearchive restores the archived flag after processing.
	StepRearchive StepName = "rearchive"
)

// StepResult captures the outcome of a single pipeline step.
type StepResult struct {
	Step     StepName
	Success  bool
	Message  string
	Duration time.Duration
}

// OperationResult aggregates every step outcome for one repository.
type OperationResult struct {
	RepositoryName string
	Success        bool
	Steps          []StepResult
	Failure        error
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

// DeletionRecord describes one scan-record deletion attempt.
type DeletionRecord struct {
	RepositoryName string
	Success        bool
	Message        string
}

// ArchivalRecord describes one rearchive attempt.
type ArchivalRecord struct {
	RepositoryName string
	Success        bool
	Message        string
}

// SummaryReport aggregates the whole run for reporting and exit-code mapping.
type SummaryReport struct {
	RunIdentifier     string
	OrganizationName  string
	DryRun            bool
	TotalRepositories int
	SuccessCount      int
	FailureCount      int
	Operations        []OperationResult
	DeletionRecords   []DeletionRecord
	ArchivalRecords   []ArchivalRecord
	StartTime         time.Time
	EndTime           time.Time
	TotalDuration     time.Duration
}

// FailedOperations returns the operations that did not complete successfully.
func (report SummaryReport) FailedOperations() []OperationResult {
	failedOperations := make([]OperationResult, 0, report.FailureCount)
	for _, operationResult := range report.Operations {
		if !operationResult.Success {
			failedOperations = append(failedOperations, operationResult)
		}
	}
	return failedOperations
}
