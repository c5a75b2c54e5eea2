package sweep

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

const (
	reportTitleTemplateConstant      = "\nSweep summary for %s (run %s)\n"
	reportDryRunNoticeConstant       = "dry-run: no changes were made\n"
	reportTotalsTemplateConstant     = "repositories: %d  succeeded: %d  failed: %d  elapsed: %s\n"
	reportNoRepositoriesConstant     = "no archived repositories were found\n"
	reportFailuresHeadingConstant    = "\nFailed repositories:\n"
	reportFailureLineTemplate        = "  %s: %s\n"
	reportDeletionsHeadingConstant   = "\nScan record deletions:\n"
	reportArchivalHeadingConstant    = "\nRearchive attempts:\n"
	reportRecordLineTemplateConstant = "  %-10s %s: %s\n"
	reportOutcomeSuccessConstant     = "ok"
	reportOutcomeFailureConstant     = "FAILED"
	reportElapsedRoundingConstant    = time.Millisecond

	repositoryColumnHeaderConstant = "Repository"
	resultColumnHeaderConstant     = "Result"
	stepsColumnHeaderConstant      = "Steps"
	failedStepColumnHeaderConstant = "Failed Step"
	durationColumnHeaderConstant   = "Duration"

	renderWriterRequiredMessageConstant = "summary writer not configured"
)

// ErrWriterNotConfigured indicates renderer construction without an output writer.
var ErrWriterNotConfigured = errors.New(renderWriterRequiredMessageConstant)

// SummaryRenderer prints a human-readable run report.
type SummaryRenderer struct {
	outputWriter io.Writer
}

// NewSummaryRenderer builds a renderer targeting outputWriter.
func NewSummaryRenderer(outputWriter io.Writer) (*SummaryRenderer, error) {
	if outputWriter == nil {
		return nil, ErrWriterNotConfigured
	}
	return &SummaryRenderer{outputWriter: outputWriter}, nil
}

// Render writes the summary table followed by failure, deletion, and
// rearchive detail sections.
func (renderer *SummaryRenderer) Render(summaryReport SummaryReport) {
	fmt.Fprintf(renderer.outputWriter, reportTitleTemplateConstant, summaryReport.OrganizationName, summaryReport.RunIdentifier)
	if summaryReport.DryRun {
		fmt.Fprint(renderer.outputWriter, reportDryRunNoticeConstant)
	}
	fmt.Fprintf(renderer.outputWriter, reportTotalsTemplateConstant,
		summaryReport.TotalRepositories,
		summaryReport.SuccessCount,
		summaryReport.FailureCount,
		summaryReport.TotalDuration.Round(reportElapsedRoundingConstant),
	)

	if summaryReport.TotalRepositories == 0 {
		fmt.Fprint(renderer.outputWriter, reportNoRepositoriesConstant)
		return
	}

	summaryTable := tablewriter.NewWriter(renderer.outputWriter)
	summaryTable.SetHeader([]string{
		repositoryColumnHeaderConstant,
		resultColumnHeaderConstant,
		stepsColumnHeaderConstant,
		failedStepColumnHeaderConstant,
		durationColumnHeaderConstant,
	})
	for _, operationResult := range summaryReport.Operations {
		summaryTable.Append([]string{
			operationResult.RepositoryName,
			describeOutcome(operationResult.Success),
			strconv.Itoa(len(operationResult.Steps)),
			describeFailedStep(operationResult),
			operationResult.Duration.Round(reportElapsedRoundingConstant).String(),
		})
	}
	summaryTable.Render()

	failedOperations := summaryReport.FailedOperations()
	if len(failedOperations) > 0 {
		fmt.Fprint(renderer.outputWriter, reportFailuresHeadingConstant)
		for _, failedOperation := range failedOperations {
			fmt.Fprintf(renderer.outputWriter, reportFailureLineTemplate, failedOperation.RepositoryName, describeFailure(failedOperation))
		}
	}

	if len(summaryReport.DeletionRecords) > 0 {
		fmt.Fprint(renderer.outputWriter, reportDeletionsHeadingConstant)
		for _, deletionRecord := range summaryReport.DeletionRecords {
			fmt.Fprintf(renderer.outputWriter, reportRecordLineTemplateConstant, describeOutcome(deletionRecord.Success), deletionRecord.RepositoryName, deletionRecord.Message)
		}
	}

	if len(summaryReport.ArchivalRecords) > 0 {
		fmt.Fprint(renderer.outputWriter, reportArchivalHeadingConstant)
		for _, archivalRecord := range summaryReport.ArchivalRecords {
			fmt.Fprintf(renderer.outputWriter, reportRecordLineTemplateConstant, describeOutcome(archivalRecord.Success), archivalRecord.RepositoryName, archivalRecord.Message)
		}
	}
}

func describeOutcome(success bool) string {
	if success {
		return reportOutcomeSuccessConstant
	}
	return reportOutcomeFailureConstant
}

func describeFailedStep(operationResult OperationResult) string {
	if operationResult.Success {
		return ""
	}
	for _, stepResult := range operationResult.Steps {
		if !stepResult.Success && stepResult.Step != StepDeleteScanRecord && stepResult.Step != StepRearchive {
			return string(stepResult.Step)
		}
	}
	return ""
}

func describeFailure(operationResult OperationResult) string {
	if operationResult.Failure != nil {
		return operationResult.Failure.Error()
	}
	return ""
}
