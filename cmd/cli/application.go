package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/scansweep/scansweep/internal/execshell"
	"github.com/scansweep/scansweep/internal/githubapi"
	"github.com/scansweep/scansweep/internal/gitrepo"
	"github.com/scansweep/scansweep/internal/retry"
	"github.com/scansweep/scansweep/internal/socketscan"
	"github.com/scansweep/scansweep/internal/sweep"
	"github.com/scansweep/scansweep/internal/utils"
)

const (
	applicationNameConstant             = "scansweep"
	applicationShortDescriptionConstant = "Disable scan integrations across an organization's archived repositories"
	applicationLongDescriptionConstant  = "scansweep unarchives every archived repository in a GitHub organization, commits a configuration file that disables the Socket GitHub app, removes the repository's scan record, pushes the change, and restores the archived flag."

	configFileFlagNameConstant    = "config"
	configFileFlagUsageConstant   = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant      = "log-level"
	logLevelFlagUsageConstant     = "Override the configured log level."
	logFormatFlagNameConstant     = "log-format"
	logFormatFlagUsageConstant    = "Override the configured log format (structured or console)."
	dryRunFlagNameConstant        = "dry-run"
	dryRunFlagUsageConstant       = "Log every intended change without mutating anything."
	checkConfigFlagNameConstant   = "check-config"
	checkConfigFlagUsageConstant  = "Validate the configuration and exit without processing repositories."
	environmentPrefixConstant     = "SCANSWEEP"
	configurationNameConstant     = "config"
	configurationTypeConstant     = "yaml"
	defaultConfigSearchPath       = "."
	logDirectoryNameConstant      = "logs"
	runLogFilePrefixConstant      = "scansweep"
	dotenvFileNameConstant        = ".env"
	flagNameUnderscoreConstant    = "_"
	flagNameHyphenConstant        = "-"

	configurationLoadErrorTemplateConstant = "unable to load configuration: %w"
	configurationCheckFailedTemplate       = "configuration invalid:\n%v\n"
	configurationCheckPassedTemplate       = "configuration ok (file: %s)\n"
	configurationCheckNoFileConstant       = "environment only"
	configurationWarningTemplateConstant   = "warning: %s\n"
	loggerCreationErrorTemplateConstant    = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant        = "unable to flush logger: %w"
	loggerNotInitializedMessageConstant    = "logger not initialized"
	runLogFileFieldNameConstant            = "run_log_file"
	runLogCreatedMessageConstant           = "run log file created"
	configurationWarningMessageConstant    = "configuration warning"
	warningFieldNameConstant               = "warning"
)

// ErrRepositoriesFailed reports that at least one repository could not be
// fully processed; it maps to a non-zero exit code.
var ErrRepositoriesFailed = errors.New("one or more repositories failed")

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         sweep.Configuration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
	dryRunFlagValue       bool
	checkConfigFlagValue  bool
	summaryWriter         io.Writer
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigSearchPath},
	)
	for configurationKey, environmentVariableName := range sweep.EnvironmentVariableBindings() {
		configurationLoader.BindEnvironmentVariable(configurationKey, environmentVariableName)
	}

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
		summaryWriter:       utils.NewFlushingWriter(os.Stdout),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().SetNormalizeFunc(normalizeFlagName)
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.Flags().BoolVar(&application.dryRunFlagValue, dryRunFlagNameConstant, false, dryRunFlagUsageConstant)
	cobraCommand.Flags().BoolVar(&application.checkConfigFlagValue, checkConfigFlagNameConstant, false, checkConfigFlagUsageConstant)

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

// SetOutputWriter redirects the summary report, primarily for tests.
func (application *Application) SetOutputWriter(outputWriter io.Writer) {
	application.summaryWriter = outputWriter
}

// RootCommand exposes the underlying Cobra command for tests.
func (application *Application) RootCommand() *cobra.Command {
	return application.rootCommand
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	// Values from an optional .env file become visible to the loader's
	// environment bindings without overriding real environment variables.
	_ = godotenv.Load(dotenvFileNameConstant)

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, sweep.DefaultConfigurationValues(), &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if command.PersistentFlags().Changed(logLevelFlagNameConstant) {
		application.configuration.LogLevel = application.logLevelFlagValue
	}
	if command.PersistentFlags().Changed(logFormatFlagNameConstant) {
		application.configuration.LogFormat = application.logFormatFlagValue
	}
	if command.Flags().Changed(dryRunFlagNameConstant) {
		application.configuration.DryRun = application.dryRunFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.LogLevel),
		utils.LogFormat(application.configuration.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}
	application.logger = logger

	return nil
}

func (application *Application) runRootCommand(command *cobra.Command, _ []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	validationWarnings, validationError := application.configuration.Validate()

	if application.checkConfigFlagValue {
		return application.reportConfigurationCheck(validationWarnings, validationError)
	}

	if validationError != nil {
		return validationError
	}
	for _, validationWarning := range validationWarnings {
		application.logger.Warn(configurationWarningMessageConstant, zap.String(warningFieldNameConstant, validationWarning))
	}

	runLogger, runLoggerError := application.createRunLogger()
	if runLoggerError != nil {
		return runLoggerError
	}
	application.logger = runLogger

	sweepService, wiringError := application.buildSweepService(runLogger)
	if wiringError != nil {
		return wiringError
	}

	summaryReport, runError := sweepService.Run(command.Context())

	summaryRenderer, rendererError := sweep.NewSummaryRenderer(application.summaryWriter)
	if rendererError != nil {
		return rendererError
	}
	summaryRenderer.Render(summaryReport)

	if runError != nil {
		return runError
	}
	if summaryReport.FailureCount > 0 {
		return ErrRepositoriesFailed
	}
	return nil
}

func (application *Application) reportConfigurationCheck(validationWarnings []string, validationError error) error {
	if validationError != nil {
		fmt.Fprintf(application.summaryWriter, configurationCheckFailedTemplate, validationError)
		return validationError
	}
	for _, validationWarning := range validationWarnings {
		fmt.Fprintf(application.summaryWriter, configurationWarningTemplateConstant, validationWarning)
	}
	configurationSource := application.configurationMetadata.ConfigFileUsed
	if len(configurationSource) == 0 {
		configurationSource = configurationCheckNoFileConstant
	}
	fmt.Fprintf(application.summaryWriter, configurationCheckPassedTemplate, configurationSource)
	return nil
}

func (application *Application) createRunLogger() (*zap.Logger, error) {
	runLogFilePath := utils.BuildRunLogFilePath(logDirectoryNameConstant, runLogFilePrefixConstant, time.Now())
	runLogger, runLoggerError := application.loggerFactory.CreateRunLogger(
		utils.LogLevel(application.configuration.LogLevel),
		utils.LogFormat(application.configuration.LogFormat),
		runLogFilePath,
	)
	if runLoggerError != nil {
		return nil, fmt.Errorf(loggerCreationErrorTemplateConstant, runLoggerError)
	}
	runLogger.Info(runLogCreatedMessageConstant, zap.String(runLogFileFieldNameConstant, runLogFilePath))
	return runLogger, nil
}

func (application *Application) buildSweepService(runLogger *zap.Logger) (*sweep.Service, error) {
	retryPolicy := retry.DefaultPolicy(runLogger)

	shellExecutor, executorError := execshell.NewShellExecutor(runLogger, execshell.NewOSCommandRunner())
	if executorError != nil {
		return nil, executorError
	}
	repositoryManager, managerError := gitrepo.NewRepositoryManager(shellExecutor, retryPolicy)
	if managerError != nil {
		return nil, managerError
	}

	githubClient, githubClientError := githubapi.NewClient(application.configuration.GitHubToken, application.configuration.GitHubAPIBaseURL, retryPolicy, runLogger)
	if githubClientError != nil {
		return nil, githubClientError
	}
	socketClient, socketClientError := socketscan.NewClient(application.configuration.SocketAPIToken, application.configuration.SocketAPIBaseURL, retryPolicy, runLogger)
	if socketClientError != nil {
		return nil, socketClientError
	}

	return sweep.NewService(sweep.ServiceDependencies{
		Logger:             runLogger,
		Configuration:      application.configuration,
		RepositoryHost:     githubClient,
		ScanService:        socketClient,
		WorkingCopyManager: repositoryManager,
		RunIdentifier:      uuid.NewString(),
	})
}

// normalizeFlagName lets operators spell multi-word flags with underscores.
func normalizeFlagName(flagSet *pflag.FlagSet, flagName string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(flagName, flagNameUnderscoreConstant, flagNameHyphenConstant))
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}
