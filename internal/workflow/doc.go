// Package workflow runs sync sessions: it detects which host libraries
// changed since their last successful import, regenerates the SRM manifests
// and parser configuration, drives the SRM enable and add steps around the
// Steam client, and commits the new fingerprints only when every step
// succeeded.
//
// The Orchestrator allows one session at a time, both within the process and
// across processes through a lock file. Confirmation gates and progress
// reporting are supplied per session so the CLI can prompt while the daemon
// answers from configuration.
package workflow
