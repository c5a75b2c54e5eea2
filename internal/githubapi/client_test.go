package githubapi_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scansweep/scansweep/internal/githubapi"
	"github.com/scansweep/scansweep/internal/retry"
)

const (
	testGitHubTokenConstant              = "ghp_example_token_value"
	testOrganizationNameConstant         = "acme"
	testArchivedRepositoryNameConstant   = "legacy-widgets"
	testActiveRepositoryNameConstant     = "current-widgets"
	testSecondArchivedRepositoryConstant = "legacy-gadgets"
	testUserEndpointConstant             = "/api/v3/user"
	testOrganizationEndpointConstant     = "/api/v3/orgs/acme"
	testRepositoriesEndpointConstant     = "/api/v3/orgs/acme/repos"
	testEditEndpointConstant             = "/api/v3/repos/acme/legacy-widgets"
	testLinkHeaderTemplateConstant       = `<%s/api/v3/orgs/acme/repos?page=2>; rel="next"`
)

func newTestRetryPolicy() retry.Policy {
	return retry.Policy{
		MaximumAttempts: 3,
		BaseDelay:       time.Millisecond,
		MaximumDelay:    2 * time.Millisecond,
		Logger:          zap.NewNop(),
	}
}

func newTestClient(testInstance *testing.T, serverURL string) *githubapi.Client {
	client, creationError := githubapi.NewClient(testGitHubTokenConstant, serverURL, newTestRetryPolicy(), zap.NewNop())
	require.NoError(testInstance, creationError)
	return client
}

func TestNewClientRequiresToken(testInstance *testing.T) {
	_, creationError := githubapi.NewClient(" ", "", newTestRetryPolicy(), zap.NewNop())
	require.ErrorIs(testInstance, creationError, githubapi.ErrTokenRequired)
}

func TestVerifyAuthentication(testInstance *testing.T) {
	testCases := []struct {
		name           string
		responseStatus int
		expectedResult bool
	}{
		{name: "authentication_succeeds", responseStatus: http.StatusOK, expectedResult: true},
		{name: "authentication_rejected", responseStatus: http.StatusUnauthorized, expectedResult: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			testServer := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
				require.Equal(testInstance, testUserEndpointConstant, request.URL.Path)
				responseWriter.WriteHeader(testCase.responseStatus)
				if testCase.responseStatus == http.StatusOK {
					fmt.Fprint(responseWriter, `{"login":"sweep-bot"}`)
				}
			}))
			defer testServer.Close()

			client := newTestClient(testInstance, testServer.URL)
			require.Equal(testInstance, testCase.expectedResult, client.VerifyAuthentication(context.Background()))
		})
	}
}

func TestVerifyOrganization(testInstance *testing.T) {
	testCases := []struct {
		name           string
		responseStatus int
		expectedResult bool
	}{
		{name: "organization_exists", responseStatus: http.StatusOK, expectedResult: true},
		{name: "organization_missing", responseStatus: http.StatusNotFound, expectedResult: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			testServer := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
				require.Equal(testInstance, testOrganizationEndpointConstant, request.URL.Path)
				responseWriter.WriteHeader(testCase.responseStatus)
				if testCase.responseStatus == http.StatusOK {
					fmt.Fprintf(responseWriter, `{"login":%q}`, testOrganizationNameConstant)
				}
			}))
			defer testServer.Close()

			client := newTestClient(testInstance, testServer.URL)
			require.Equal(testInstance, testCase.expectedResult, client.VerifyOrganization(context.Background(), testOrganizationNameConstant))
		})
	}
}

func TestListArchivedRepositoriesPaginatesAndFilters(testInstance *testing.T) {
	var testServer *httptest.Server
	testServer = httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, testRepositoriesEndpointConstant, request.URL.Path)

		pageNumber := request.URL.Query().Get("page")
		if pageNumber == "" || pageNumber == "1" {
			responseWriter.Header().Set("Link", fmt.Sprintf(testLinkHeaderTemplateConstant, testServer.URL))
			fmt.Fprintf(responseWriter,
				`[{"id":1,"name":%q,"full_name":"acme/%s","archived":true,"private":true,"default_branch":"main","clone_url":"https://github.com/acme/%s.git","owner":{"login":"acme","type":"Organization"}},`+
					`{"id":2,"name":%q,"full_name":"acme/%s","archived":false,"owner":{"login":"acme","type":"Organization"}}]`,
				testArchivedRepositoryNameConstant, testArchivedRepositoryNameConstant, testArchivedRepositoryNameConstant,
				testActiveRepositoryNameConstant, testActiveRepositoryNameConstant,
			)
			return
		}

		fmt.Fprintf(responseWriter,
			`[{"id":3,"name":%q,"full_name":"acme/%s","archived":true,"default_branch":"master","owner":{"login":"acme","type":"Organization"}}]`,
			testSecondArchivedRepositoryConstant, testSecondArchivedRepositoryConstant,
		)
	}))
	defer testServer.Close()

	client := newTestClient(testInstance, testServer.URL)
	archivedRepositories, listError := client.ListArchivedRepositories(context.Background(), testOrganizationNameConstant)
	require.NoError(testInstance, listError)
	require.Len(testInstance, archivedRepositories, 2)

	require.Equal(testInstance, testArchivedRepositoryNameConstant, archivedRepositories[0].Name)
	require.True(testInstance, archivedRepositories[0].Archived)
	require.True(testInstance, archivedRepositories[0].Private)
	require.Equal(testInstance, "main", archivedRepositories[0].DefaultBranch)
	require.Equal(testInstance, "acme", archivedRepositories[0].OwnerLogin)

	require.Equal(testInstance, testSecondArchivedRepositoryConstant, archivedRepositories[1].Name)
	require.Equal(testInstance, "master", archivedRepositories[1].DefaultBranch)
}

func TestSetArchivedReportsFailureWithoutRaising(testInstance *testing.T) {
	testCases := []struct {
		name           string
		responseStatus int
		expectedResult bool
	}{
		{name: "toggle_succeeds", responseStatus: http.StatusOK, expectedResult: true},
		{name: "toggle_forbidden", responseStatus: http.StatusForbidden, expectedResult: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			testServer := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
				require.Equal(testInstance, testEditEndpointConstant, request.URL.Path)
				require.Equal(testInstance, http.MethodPatch, request.Method)
				responseWriter.WriteHeader(testCase.responseStatus)
				if testCase.responseStatus == http.StatusOK {
					fmt.Fprintf(responseWriter, `{"name":%q,"archived":false}`, testArchivedRepositoryNameConstant)
				}
			}))
			defer testServer.Close()

			client := newTestClient(testInstance, testServer.URL)
			toggleResult := client.SetArchived(context.Background(), testOrganizationNameConstant, testArchivedRepositoryNameConstant, false)
			require.Equal(testInstance, testCase.expectedResult, toggleResult)
		})
	}
}
