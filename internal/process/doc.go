// Package process runs a single subprocess whose stdout is consumed by the
// caller.
//
// Stderr is scanned line by line, optionally classified by a [LogParser] and
// written to the logger; the most recent lines are kept for error reports.
// [Process.Stop] interrupts the whole process group with SIGINT and falls back
// to SIGKILL once the graceful timeout expires. It is safe to call from any
// goroutine and more than once.
package process
