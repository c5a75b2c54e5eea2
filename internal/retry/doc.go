// Package retry implements the bounded exponential backoff policy shared by
// every network-calling collaborator: GitHub API pagination, Socket scan
// deletions, and git push. It also centralizes transient-failure
// classification for both Go error values and captured subprocess output.
package retry
