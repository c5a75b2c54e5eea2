package githubapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	githubsdk "github.com/google/go-github/v68/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/scansweep/scansweep/internal/retry"
)

const (
	tokenRequiredMessageConstant             = "github token is required"
	repositoryPageSizeConstant               = 100
	repositoryListTypeConstant               = "all"
	currentAuthenticatedUserConstant         = ""
	enterpriseURLConfigurationErrorConstant  = "unable to configure github base url %s: %w"
	repositoryListErrorTemplateConstant      = "unable to list repositories for organization %s: %w"
	authenticationFailedMessageConstant      = "GitHub authentication failed"
	organizationLookupFailedMessageConstant  = "GitHub organization lookup failed"
	archiveToggleFailedMessageConstant       = "Repository archive toggle failed"
	authenticationVerifiedMessageConstant    = "GitHub authentication verified"
	organizationVerifiedMessageConstant      = "GitHub organization verified"
	logFieldOrganizationConstant             = "organization"
	logFieldRepositoryConstant               = "repository"
	logFieldArchivedConstant                 = "archived"
	logFieldAuthenticatedUserConstant        = "authenticated_user"
	defaultPublicGitHubAPIBaseURLConstant    = "https://api.github.com"
	trailingSlashConstant                    = "/"
	ownerTypeFallbackOrganizationConstant    = "Organization"
)

// ErrTokenRequired indicates the client was constructed without a token.
var ErrTokenRequired = errors.New(tokenRequiredMessageConstant)

// RepositoryDescriptor captures the repository details the sweep pipeline needs.
type RepositoryDescriptor struct {
	ID            int64
	Name          string
	FullName      string
	OwnerLogin    string
	OwnerType     string
	HTMLURL       string
	CloneURL      string
	Archived      bool
	Private       bool
	DefaultBranch string
}

// Client wraps the GitHub REST API with retrying page fetches.
type Client struct {
	restClient  *githubsdk.Client
	retryPolicy retry.Policy
	logger      *zap.Logger
}

// NewClient constructs a GitHub client authenticated with the supplied token.
// A non-default base URL switches the client to enterprise endpoints.
func NewClient(token string, baseURL string, retryPolicy retry.Policy, logger *zap.Logger) (*Client, error) {
	trimmedToken := strings.TrimSpace(token)
	if len(trimmedToken) == 0 {
		return nil, ErrTokenRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: trimmedToken})
	httpClient := oauth2.NewClient(context.Background(), tokenSource)
	restClient := githubsdk.NewClient(httpClient)

	trimmedBaseURL := strings.TrimRight(strings.TrimSpace(baseURL), trailingSlashConstant)
	if len(trimmedBaseURL) > 0 && trimmedBaseURL != defaultPublicGitHubAPIBaseURLConstant {
		enterpriseClient, enterpriseError := restClient.WithEnterpriseURLs(trimmedBaseURL, trimmedBaseURL)
		if enterpriseError != nil {
			return nil, fmt.Errorf(enterpriseURLConfigurationErrorConstant, trimmedBaseURL, enterpriseError)
		}
		restClient = enterpriseClient
	}

	return &Client{restClient: restClient, retryPolicy: retryPolicy, logger: logger}, nil
}

// VerifyAuthentication reports whether the configured token authenticates.
func (client *Client) VerifyAuthentication(executionContext context.Context) bool {
	var authenticatedUser *githubsdk.User
	verificationError := client.retryPolicy.Execute(executionContext, retry.IsTransientError, func(attemptContext context.Context) error {
		resolvedUser, _, lookupError := client.restClient.Users.Get(attemptContext, currentAuthenticatedUserConstant)
		if lookupError != nil {
			return lookupError
		}
		authenticatedUser = resolvedUser
		return nil
	})
	if verificationError != nil {
		client.logger.Error(authenticationFailedMessageConstant, zap.Error(verificationError))
		return false
	}

	client.logger.Info(authenticationVerifiedMessageConstant, zap.String(logFieldAuthenticatedUserConstant, authenticatedUser.GetLogin()))
	return true
}

// VerifyOrganization reports whether the named organization exists and is visible.
func (client *Client) VerifyOrganization(executionContext context.Context, organizationName string) bool {
	verificationError := client.retryPolicy.Execute(executionContext, retry.IsTransientError, func(attemptContext context.Context) error {
		_, _, lookupError := client.restClient.Organizations.Get(attemptContext, organizationName)
		return lookupError
	})
	if verificationError != nil {
		client.logger.Error(
			organizationLookupFailedMessageConstant,
			zap.String(logFieldOrganizationConstant, organizationName),
			zap.Error(verificationError),
		)
		return false
	}

	client.logger.Info(organizationVerifiedMessageConstant, zap.String(logFieldOrganizationConstant, organizationName))
	return true
}

// ListArchivedRepositories pages through the organization's repositories and
// returns the archived subset, filtered client-side.
func (client *Client) ListArchivedRepositories(executionContext context.Context, organizationName string) ([]RepositoryDescriptor, error) {
	listOptions := &githubsdk.RepositoryListByOrgOptions{
		Type:        repositoryListTypeConstant,
		ListOptions: githubsdk.ListOptions{PerPage: repositoryPageSizeConstant},
	}

	var archivedRepositories []RepositoryDescriptor
	for {
		var pageRepositories []*githubsdk.Repository
		var pageResponse *githubsdk.Response

		pageError := client.retryPolicy.Execute(executionContext, retry.IsTransientError, func(attemptContext context.Context) error {
			fetchedRepositories, fetchedResponse, fetchError := client.restClient.Repositories.ListByOrg(attemptContext, organizationName, listOptions)
			if fetchError != nil {
				return fetchError
			}
			pageRepositories = fetchedRepositories
			pageResponse = fetchedResponse
			return nil
		})
		if pageError != nil {
			return nil, fmt.Errorf(repositoryListErrorTemplateConstant, organizationName, pageError)
		}

		for _, repository := range pageRepositories {
			if !repository.GetArchived() {
				continue
			}
			archivedRepositories = append(archivedRepositories, describeRepository(repository))
		}

		if pageResponse.NextPage == 0 {
			break
		}
		listOptions.Page = pageResponse.NextPage
	}

	return archivedRepositories, nil
}

// SetArchived toggles the repository's archived flag. Failures are expected
// for permission issues and are reported as false rather than raised.
func (client *Client) SetArchived(executionContext context.Context, ownerLogin string, repositoryName string, archived bool) bool {
	toggleError := client.retryPolicy.Execute(executionContext, retry.IsTransientError, func(attemptContext context.Context) error {
		_, _, editError := client.restClient.Repositories.Edit(attemptContext, ownerLogin, repositoryName, &githubsdk.Repository{
			Archived: githubsdk.Ptr(archived),
		})
		return editError
	})
	if toggleError != nil {
		client.logger.Error(
			archiveToggleFailedMessageConstant,
			zap.String(logFieldRepositoryConstant, repositoryName),
			zap.Bool(logFieldArchivedConstant, archived),
			zap.Error(toggleError),
		)
		return false
	}
	return true
}

func describeRepository(repository *githubsdk.Repository) RepositoryDescriptor {
	ownerType := ownerTypeFallbackOrganizationConstant
	if repository.GetOwner() != nil && len(repository.GetOwner().GetType()) > 0 {
		ownerType = repository.GetOwner().GetType()
	}

	return RepositoryDescriptor{
		ID:            repository.GetID(),
		Name:          repository.GetName(),
		FullName:      repository.GetFullName(),
		OwnerLogin:    repository.GetOwner().GetLogin(),
		OwnerType:     ownerType,
		HTMLURL:       repository.GetHTMLURL(),
		CloneURL:      repository.GetCloneURL(),
		Archived:      repository.GetArchived(),
		Private:       repository.GetPrivate(),
		DefaultBranch: repository.GetDefaultBranch(),
	}
}
