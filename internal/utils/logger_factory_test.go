package utils_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scansweep/scansweep/internal/utils"
)

const (
	testLoggerFactoryCaseSupportedTemplateConstant = "supported_log_level_%s_format_%s"
	testLoggerFactoryCaseUnsupportedLevelConstant  = "unsupported_log_level"
	testLoggerFactoryCaseUnsupportedFormatConstant = "unsupported_log_format"
	testInvalidLogLevelConstant                    = "invalid"
	testInvalidLogFormatConstant                   = "invalid"
	testRunLogMessageConstant                      = "run_logger_test_message"
	testRunLogPrefixConstant                       = "scansweep"
)

func TestLoggerFactoryCreateLogger(testInstance *testing.T) {
	testCases := []struct {
		name               string
		requestedLogLevel  utils.LogLevel
		requestedLogFormat utils.LogFormat
		expectError        bool
	}{
		{
			name:               fmt.Sprintf(testLoggerFactoryCaseSupportedTemplateConstant, utils.LogLevelDebug, utils.LogFormatStructured),
			requestedLogLevel:  utils.LogLevelDebug,
			requestedLogFormat: utils.LogFormatStructured,
		},
		{
			name:               fmt.Sprintf(testLoggerFactoryCaseSupportedTemplateConstant, utils.LogLevelInfo, utils.LogFormatConsole),
			requestedLogLevel:  utils.LogLevelInfo,
			requestedLogFormat: utils.LogFormatConsole,
		},
		{
			name:               testLoggerFactoryCaseUnsupportedLevelConstant,
			requestedLogLevel:  utils.LogLevel(testInvalidLogLevelConstant),
			requestedLogFormat: utils.LogFormatStructured,
			expectError:        true,
		},
		{
			name:               testLoggerFactoryCaseUnsupportedFormatConstant,
			requestedLogLevel:  utils.LogLevelInfo,
			requestedLogFormat: utils.LogFormat(testInvalidLogFormatConstant),
			expectError:        true,
		},
	}

	loggerFactory := utils.NewLoggerFactory()

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			logger, creationError := loggerFactory.CreateLogger(testCase.requestedLogLevel, testCase.requestedLogFormat)
			if testCase.expectError {
				require.Error(testInstance, creationError)
				require.Nil(testInstance, logger)
			} else {
				require.NoError(testInstance, creationError)
				require.NotNil(testInstance, logger)
			}
		})
	}
}

func TestCreateRunLoggerWritesToLogFile(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	runStartTime := time.Date(2024, time.March, 5, 14, 30, 45, 0, time.UTC)
	runLogFilePath := utils.BuildRunLogFilePath(filepath.Join(temporaryDirectory, "logs"), testRunLogPrefixConstant, runStartTime)

	require.Contains(testInstance, runLogFilePath, "scansweep-2024-03-05T14-30-45.log")

	loggerFactory := utils.NewLoggerFactory()
	runLogger, creationError := loggerFactory.CreateRunLogger(utils.LogLevelInfo, utils.LogFormatConsole, runLogFilePath)
	require.NoError(testInstance, creationError)

	runLogger.Info(testRunLogMessageConstant)
	require.NoError(testInstance, runLogger.Sync())

	logFileContents, readError := os.ReadFile(runLogFilePath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(logFileContents), testRunLogMessageConstant)
}

func TestCreateRunLoggerRejectsUnsupportedLevel(testInstance *testing.T) {
	loggerFactory := utils.NewLoggerFactory()
	_, creationError := loggerFactory.CreateRunLogger(utils.LogLevel(testInvalidLogLevelConstant), utils.LogFormatConsole, filepath.Join(testInstance.TempDir(), "run.log"))
	require.Error(testInstance, creationError)
}
