package socketscan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/scansweep/scansweep/internal/retry"
)

const (
	tokenRequiredMessageConstant            = "socket api token is required"
	defaultAPIBaseURLConstant               = "https://api.socket.dev/v0"
	organizationsEndpointConstant           = "/organizations"
	repositoryEndpointTemplateConstant      = "/orgs/%s/repos/%s"
	authorizationHeaderNameConstant         = "Authorization"
	authorizationHeaderTemplateConstant     = "Bearer %s"
	dryRunDeletionMessageTemplateConstant   = "dry-run: would delete scan record for %s"
	deletionSucceededMessageTemplate        = "scan record for %s deleted"
	recordAlreadyAbsentMessageTemplate      = "scan record for %s already absent"
	deletionFailedMessageTemplateConstant   = "scan record deletion for %s failed with status %d: %s"
	requestFailureMessageTemplateConstant   = "scan record deletion for %s failed: %s"
	authenticationFailedMessageConstant     = "Socket authentication failed"
	authenticationVerifiedMessageConstant   = "Socket authentication verified"
	responseBodySnippetLimitConstant        = 256
	trailingSlashConstant                   = "/"
	deletionRequestBuildTemplateConstant    = "unable to build deletion request for %s: %s"
	verificationRequestBuildErrorConstant   = "unable to build authentication request: %w"
	logFieldStatusCodeConstant              = "status_code"
)

// ErrTokenRequired indicates the client was constructed without a token.
var ErrTokenRequired = errors.New(tokenRequiredMessageConstant)

// DeletionOutcome reports the result of one repository deletion attempt.
type DeletionOutcome struct {
	Success bool
	Message string
}

// Client calls the Socket REST API with bounded retry on transient failures.
type Client struct {
	httpClient *retryablehttp.Client
	apiToken   string
	baseURL    string
	logger     *zap.Logger
}

// NewClient constructs a Socket API client. The retry policy supplies both
// the attempt budget and the backoff schedule for the underlying HTTP client.
func NewClient(apiToken string, baseURL string, retryPolicy retry.Policy, logger *zap.Logger) (*Client, error) {
	trimmedToken := strings.TrimSpace(apiToken)
	if len(trimmedToken) == 0 {
		return nil, ErrTokenRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	trimmedBaseURL := strings.TrimRight(strings.TrimSpace(baseURL), trailingSlashConstant)
	if len(trimmedBaseURL) == 0 {
		trimmedBaseURL = defaultAPIBaseURLConstant
	}

	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil
	httpClient.RetryMax = retryPolicy.MaximumAttempts - 1
	if httpClient.RetryMax < 0 {
		httpClient.RetryMax = 0
	}
	httpClient.Backoff = func(minimumDelay time.Duration, maximumDelay time.Duration, attemptNumber int, response *http.Response) time.Duration {
		return retryPolicy.Delay(attemptNumber)
	}
	httpClient.CheckRetry = func(requestContext context.Context, response *http.Response, requestError error) (bool, error) {
		if requestContext.Err() != nil {
			return false, requestContext.Err()
		}
		if requestError != nil {
			return retry.IsTransientError(requestError), nil
		}
		return response != nil && response.StatusCode == http.StatusTooManyRequests, nil
	}

	return &Client{
		httpClient: httpClient,
		apiToken:   trimmedToken,
		baseURL:    trimmedBaseURL,
		logger:     logger,
	}, nil
}

// VerifyAuthentication reports whether the configured token is accepted.
func (client *Client) VerifyAuthentication(executionContext context.Context) bool {
	request, requestError := retryablehttp.NewRequestWithContext(executionContext, http.MethodGet, client.baseURL+organizationsEndpointConstant, nil)
	if requestError != nil {
		client.logger.Error(authenticationFailedMessageConstant, zap.Error(fmt.Errorf(verificationRequestBuildErrorConstant, requestError)))
		return false
	}
	request.Header.Set(authorizationHeaderNameConstant, fmt.Sprintf(authorizationHeaderTemplateConstant, client.apiToken))

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		client.logger.Error(authenticationFailedMessageConstant, zap.Error(responseError))
		return false
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		client.logger.Error(authenticationFailedMessageConstant, zap.Int(logFieldStatusCodeConstant, response.StatusCode))
		return false
	}

	client.logger.Info(authenticationVerifiedMessageConstant)
	return true
}

// DeleteRepository removes the named repository's scan record. Dry-run
// short-circuits to a synthetic success without any network call; a 404
// response is treated as an already-satisfied success. Failures are reported
// in the outcome and never raised.
func (client *Client) DeleteRepository(executionContext context.Context, organizationSlug string, repositoryName string, dryRun bool) DeletionOutcome {
	if dryRun {
		return DeletionOutcome{Success: true, Message: fmt.Sprintf(dryRunDeletionMessageTemplateConstant, repositoryName)}
	}

	deletionURL := client.baseURL + fmt.Sprintf(repositoryEndpointTemplateConstant, organizationSlug, repositoryName)
	request, requestError := retryablehttp.NewRequestWithContext(executionContext, http.MethodDelete, deletionURL, nil)
	if requestError != nil {
		return DeletionOutcome{Success: false, Message: fmt.Sprintf(deletionRequestBuildTemplateConstant, repositoryName, requestError)}
	}
	request.Header.Set(authorizationHeaderNameConstant, fmt.Sprintf(authorizationHeaderTemplateConstant, client.apiToken))

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return DeletionOutcome{Success: false, Message: fmt.Sprintf(requestFailureMessageTemplateConstant, repositoryName, responseError)}
	}
	defer func() { _ = response.Body.Close() }()

	switch {
	case response.StatusCode == http.StatusNotFound:
		return DeletionOutcome{Success: true, Message: fmt.Sprintf(recordAlreadyAbsentMessageTemplate, repositoryName)}
	case response.StatusCode >= http.StatusOK && response.StatusCode < http.StatusMultipleChoices:
		return DeletionOutcome{Success: true, Message: fmt.Sprintf(deletionSucceededMessageTemplate, repositoryName)}
	default:
		bodySnippet := readBodySnippet(response.Body)
		return DeletionOutcome{Success: false, Message: fmt.Sprintf(deletionFailedMessageTemplateConstant, repositoryName, response.StatusCode, bodySnippet)}
	}
}

func readBodySnippet(body io.Reader) string {
	snippetBytes, _ := io.ReadAll(io.LimitReader(body, responseBodySnippetLimitConstant))
	return strings.TrimSpace(string(snippetBytes))
}
