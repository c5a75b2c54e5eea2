package sweep

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	githubTokenConfigurationKeyConstant      = "github_token"
	githubOrganizationConfigurationKey       = "github_org"
	socketAPITokenConfigurationKeyConstant   = "socket_api_token"
	socketOrganizationConfigurationKey       = "socket_org"
	cloneBasePathConfigurationKeyConstant    = "clone_base_path"
	dryRunConfigurationKeyConstant           = "dry_run"
	socketAPIBaseURLConfigurationKeyConstant = "socket_api_base_url"
	githubAPIBaseURLConfigurationKeyConstant = "github_base_url"
	logLevelConfigurationKeyConstant         = "log_level"
	logFormatConfigurationKeyConstant        = "log_format"
	cloneTimeoutConfigurationKeyConstant     = "clone_timeout"
	apiTimeoutConfigurationKeyConstant       = "api_timeout"
	pushTimeoutConfigurationKeyConstant      = "push_timeout"

	githubTokenEnvironmentVariableConstant        = "GITHUB_TOKEN"
	githubOrganizationEnvironmentVariableConstant = "GITHUB_ORG"
	socketAPITokenEnvironmentVariableConstant     = "SOCKET_API_TOKEN"
	socketOrganizationEnvironmentVariableConstant = "SOCKET_ORG"
	cloneBasePathEnvironmentVariableConstant      = "CLONE_BASE_PATH"
	dryRunEnvironmentVariableConstant             = "DRY_RUN"
	socketAPIBaseURLEnvironmentVariableConstant   = "SOCKET_API_BASE_URL"
	githubAPIBaseURLEnvironmentVariableConstant   = "GITHUB_BASE_URL"
	logLevelEnvironmentVariableConstant           = "LOG_LEVEL"
	logFormatEnvironmentVariableConstant          = "LOG_FORMAT"

	defaultCloneBasePathConstant    = "./temp-repos"
	defaultSocketAPIBaseURLConstant = "https://api.socket.dev/v0"
	defaultGitHubAPIBaseURLConstant = "https://api.github.com"
	defaultLogLevelConstant         = "info"
	defaultLogFormatConstant        = "console"
	defaultCloneTimeoutConstant     = 5 * time.Minute
	defaultAPITimeoutConstant       = 30 * time.Second
	defaultPushTimeoutConstant      = 2 * time.Minute

	organizationNamePatternConstant  = `^[A-Za-z0-9](?:[A-Za-z0-9-]{0,37}[A-Za-z0-9])?$`
	consecutiveHyphenPatternConstant = "--"

	missingValueMessageTemplateConstant       = "%s is required; set the %s environment variable"
	invalidOrganizationMessageConstant        = "organization name %q is invalid: expected 1-39 alphanumeric or hyphen characters without leading or trailing hyphens"
	invalidBaseURLMessageTemplateConstant     = "%s %q is not an absolute http(s) URL"
	tokenPrefixWarningMessageTemplateConstant = "%s does not look like a GitHub token (expected a ghp_, gho_, ghu_, ghs_, ghr_, or github_pat_ prefix)"
	nonPositiveTimeoutTemplateConstant        = "%s must be positive, got %s"
)

var organizationNameExpression = regexp.MustCompile(organizationNamePatternConstant)

var validatedTokenPrefixes = []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_", "github_pat_"}

// Configuration carries every runtime setting of a sweep run.
type Configuration struct {
	GitHubToken        string        `mapstructure:"github_token"`
	GitHubOrganization string        `mapstructure:"github_org"`
	SocketAPIToken     string        `mapstructure:"socket_api_token"`
	SocketOrganization string        `mapstructure:"socket_org"`
	CloneBasePath      string        `mapstructure:"clone_base_path"`
	DryRun             bool          `mapstructure:"dry_run"`
	SocketAPIBaseURL   string        `mapstructure:"socket_api_base_url"`
	GitHubAPIBaseURL   string        `mapstructure:"github_base_url"`
	LogLevel           string        `mapstructure:"log_level"`
	LogFormat          string        `mapstructure:"log_format"`
	CloneTimeout       time.Duration `mapstructure:"clone_timeout"`
	APITimeout         time.Duration `mapstructure:"api_timeout"`
	PushTimeout        time.Duration `mapstructure:"push_timeout"`
}

// DefaultConfigurationValues returns the configuration defaults applied before
// file and environment overrides.
func DefaultConfigurationValues() map[string]any {
	return map[string]any{
		cloneBasePathConfigurationKeyConstant:    defaultCloneBasePathConstant,
		dryRunConfigurationKeyConstant:           false,
		socketAPIBaseURLConfigurationKeyConstant: defaultSocketAPIBaseURLConstant,
		githubAPIBaseURLConfigurationKeyConstant: defaultGitHubAPIBaseURLConstant,
		logLevelConfigurationKeyConstant:         defaultLogLevelConstant,
		logFormatConfigurationKeyConstant:        defaultLogFormatConstant,
		cloneTimeoutConfigurationKeyConstant:     defaultCloneTimeoutConstant,
		apiTimeoutConfigurationKeyConstant:       defaultAPITimeoutConstant,
		pushTimeoutConfigurationKeyConstant:      defaultPushTimeoutConstant,
	}
}

// EnvironmentVariableBindings maps configuration keys to the unprefixed
// environment variables operators set for them.
func EnvironmentVariableBindings() map[string]string {
	return map[string]string{
		githubTokenConfigurationKeyConstant:      githubTokenEnvironmentVariableConstant,
		githubOrganizationConfigurationKey:       githubOrganizationEnvironmentVariableConstant,
		socketAPITokenConfigurationKeyConstant:   socketAPITokenEnvironmentVariableConstant,
		socketOrganizationConfigurationKey:       socketOrganizationEnvironmentVariableConstant,
		cloneBasePathConfigurationKeyConstant:    cloneBasePathEnvironmentVariableConstant,
		dryRunConfigurationKeyConstant:           dryRunEnvironmentVariableConstant,
		socketAPIBaseURLConfigurationKeyConstant: socketAPIBaseURLEnvironmentVariableConstant,
		githubAPIBaseURLConfigurationKeyConstant: githubAPIBaseURLEnvironmentVariableConstant,
		logLevelConfigurationKeyConstant:         logLevelEnvironmentVariableConstant,
		logFormatConfigurationKeyConstant:        logFormatEnvironmentVariableConstant,
	}
}

// Validate checks the configuration for fatal problems and returns
// non-fatal warnings such as an unusual token prefix. The returned error
// joins every fatal problem discovered.
func (configuration Configuration) Validate() ([]string, error) {
	var validationErrors []error
	var validationWarnings []string

	requiredValues := []struct {
		value               string
		settingName         string
		environmentVariable string
	}{
		{configuration.GitHubToken, githubTokenConfigurationKeyConstant, githubTokenEnvironmentVariableConstant},
		{configuration.GitHubOrganization, githubOrganizationConfigurationKey, githubOrganizationEnvironmentVariableConstant},
		{configuration.SocketAPIToken, socketAPITokenConfigurationKeyConstant, socketAPITokenEnvironmentVariableConstant},
		{configuration.SocketOrganization, socketOrganizationConfigurationKey, socketOrganizationEnvironmentVariableConstant},
	}
	for _, requiredValue := range requiredValues {
		if len(strings.TrimSpace(requiredValue.value)) == 0 {
			validationErrors = append(validationErrors, fmt.Errorf(missingValueMessageTemplateConstant, requiredValue.settingName, requiredValue.environmentVariable))
		}
	}

	if len(configuration.GitHubOrganization) > 0 && !isValidOrganizationName(configuration.GitHubOrganization) {
		validationErrors = append(validationErrors, fmt.Errorf(invalidOrganizationMessageConstant, configuration.GitHubOrganization))
	}
	if len(configuration.SocketOrganization) > 0 && !isValidOrganizationName(configuration.SocketOrganization) {
		validationErrors = append(validationErrors, fmt.Errorf(invalidOrganizationMessageConstant, configuration.SocketOrganization))
	}

	baseURLValues := []struct {
		value       string
		settingName string
	}{
		{configuration.SocketAPIBaseURL, socketAPIBaseURLConfigurationKeyConstant},
		{configuration.GitHubAPIBaseURL, githubAPIBaseURLConfigurationKeyConstant},
	}
	for _, baseURLValue := range baseURLValues {
		if !isAbsoluteHTTPURL(baseURLValue.value) {
			validationErrors = append(validationErrors, fmt.Errorf(invalidBaseURLMessageTemplateConstant, baseURLValue.settingName, baseURLValue.value))
		}
	}

	timeoutValues := []struct {
		value       time.Duration
		settingName string
	}{
		{configuration.CloneTimeout, cloneTimeoutConfigurationKeyConstant},
		{configuration.APITimeout, apiTimeoutConfigurationKeyConstant},
		{configuration.PushTimeout, pushTimeoutConfigurationKeyConstant},
	}
	for _, timeoutValue := range timeoutValues {
		if timeoutValue.value <= 0 {
			validationErrors = append(validationErrors, fmt.Errorf(nonPositiveTimeoutTemplateConstant, timeoutValue.settingName, timeoutValue.value))
		}
	}

	if len(configuration.GitHubToken) > 0 && !hasRecognizedTokenPrefix(configuration.GitHubToken) {
		validationWarnings = append(validationWarnings, fmt.Sprintf(tokenPrefixWarningMessageTemplateConstant, githubTokenConfigurationKeyConstant))
	}

	return validationWarnings, errors.Join(validationErrors...)
}

func isValidOrganizationName(organizationName string) bool {
	if strings.Contains(organizationName, consecutiveHyphenPatternConstant) {
		return false
	}
	return organizationNameExpression.MatchString(organizationName)
}

func isAbsoluteHTTPURL(candidateURL string) bool {
	parsedURL, parseError := url.Parse(candidateURL)
	if parseError != nil {
		return false
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}
	return len(parsedURL.Host) > 0
}

func hasRecognizedTokenPrefix(tokenValue string) bool {
	for _, recognizedPrefix := range validatedTokenPrefixes {
		if strings.HasPrefix(tokenValue, recognizedPrefix) {
			return true
		}
	}
	return false
}
