package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant            = "debug"
	logLevelInfoStringConstant             = "info"
	logLevelWarnStringConstant             = "warn"
	logLevelErrorStringConstant            = "error"
	logFormatStructuredStringConstant      = "structured"
	logFormatConsoleStringConstant         = "console"
	jsonZapEncodingStringConstant          = "json"
	consoleZapEncodingStringConstant       = "console"
	unsupportedLogLevelTemplateConstant    = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant   = "unsupported log format: %s"
	logDirectoryPermissionsConstant        = 0o755
	logFileFlagsConstant                   = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	logFilePermissionsConstant             = 0o644
	logDirectoryCreationTemplateConstant   = "unable to create log directory %s: %w"
	logFileCreationTemplateConstant        = "unable to open log file %s: %w"
	runLogFileNameTemplateConstant         = "%s-%s.log"
	runLogTimestampLayoutConstant          = "2006-01-02T15-04-05"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

var logFormatEncodingMapping = map[LogFormat]string{
	LogFormatStructured: jsonZapEncodingStringConstant,
	LogFormatConsole:    consoleZapEncodingStringConstant,
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct{}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLogger produces a zap.Logger honoring the requested log level and format.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[requestedLogLevel]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	encoding, formatExists := logFormatEncodingMapping[requestedLogFormat]
	if !formatExists {
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	configuration := zap.NewProductionConfig()
	configuration.Level = zap.NewAtomicLevelAt(zapLogLevel)
	configuration.Encoding = encoding

	logger, buildError := configuration.Build()
	if buildError != nil {
		return nil, buildError
	}

	return logger, nil
}

// CreateRunLogger produces a logger that tees every entry to the console and
// to an append-only line-oriented file at runLogFilePath. The file always
// records debug-level detail for postmortem inspection regardless of the
// console level.
func (factory *LoggerFactory) CreateRunLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat, runLogFilePath string) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[requestedLogLevel]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}
	if _, formatExists := logFormatEncodingMapping[requestedLogFormat]; !formatExists {
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	logDirectory := filepath.Dir(runLogFilePath)
	if directoryError := os.MkdirAll(logDirectory, logDirectoryPermissionsConstant); directoryError != nil {
		return nil, fmt.Errorf(logDirectoryCreationTemplateConstant, logDirectory, directoryError)
	}

	logFile, fileError := os.OpenFile(runLogFilePath, logFileFlagsConstant, logFilePermissionsConstant)
	if fileError != nil {
		return nil, fmt.Errorf(logFileCreationTemplateConstant, runLogFilePath, fileError)
	}

	productionEncoderConfiguration := zap.NewProductionEncoderConfig()
	productionEncoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEncoder zapcore.Encoder
	if requestedLogFormat == LogFormatStructured {
		consoleEncoder = zapcore.NewJSONEncoder(productionEncoderConfiguration)
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(productionEncoderConfiguration)
	}
	fileEncoder := zapcore.NewConsoleEncoder(productionEncoderConfiguration)

	teeCore := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), zapLogLevel),
		zapcore.NewCore(fileEncoder, zapcore.Lock(zapcore.AddSync(logFile)), zapcore.DebugLevel),
	)

	return zap.New(teeCore), nil
}

// BuildRunLogFilePath composes the per-run log file location inside
// logDirectory from the fixed prefix and the run start time.
func BuildRunLogFilePath(logDirectory string, filePrefix string, runStartTime time.Time) string {
	fileName := fmt.Sprintf(runLogFileNameTemplateConstant, filePrefix, runStartTime.Format(runLogTimestampLayoutConstant))
	return filepath.Join(logDirectory, fileName)
}
