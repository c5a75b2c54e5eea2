// Package sweep orchestrates the archived-repository configuration sweep: it
// verifies preconditions, discovers an organization's archived repositories,
// runs the fixed per-repository step pipeline with its fatal/non-fatal
// failure classes, and aggregates the run into a summary report.
package sweep
