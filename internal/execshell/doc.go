// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and defines the abstractions scansweep uses to
// run git in a testable manner. Environment variables travel explicitly on
// CommandDetails rather than through mutable process-global state.
package execshell
