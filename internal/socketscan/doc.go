// Package socketscan wraps the Socket security-scanning REST API: verifying
// the configured token and deleting a repository's scan record. Deletion is
// whole-repository: one call removes the record, and a missing record is
// normalized to success because the desired end state already holds.
package socketscan
