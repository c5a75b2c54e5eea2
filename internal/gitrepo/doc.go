// Package gitrepo exposes repository-level git operations over execshell:
// cloning into a fresh working directory, configuring the local commit
// identity, staging, committing, and pushing with bounded retry. Failures
// carry the captured subprocess output as error detail.
package gitrepo
