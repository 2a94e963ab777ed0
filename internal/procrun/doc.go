// Package procrun runs external commands with a hard time bound.
//
// A Runner starts one process per Invocation, detached from any console, and
// races its exit against the invocation timeout. Exit code 0 is Success, any
// other exit (or a start failure) is Failure, and an expired timeout is
// TimedOut. On timeout the whole process group is killed and reaped before Run
// returns, so a timed-out step can never overlap the next one. Output is
// captured to a per-invocation log file when a log directory is configured.
package procrun
