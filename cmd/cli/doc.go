// Package cli constructs the scansweep command-line interface, wiring the
// Cobra root command, configuration loader, per-run structured logging, and
// the sweep service collaborators.
package cli
