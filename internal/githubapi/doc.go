// Package githubapi wraps the GitHub REST API for the sweep: verifying
// authentication and organization existence, listing an organization's
// archived repositories with pagination, and toggling the archived flag.
package githubapi
