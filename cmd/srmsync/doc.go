// Package main hosts the srmsync CLI entrypoint and command graph.
//
// Commands that act on a running daemon go through the IPC client; the rest
// (sync, offline game listings, history, cache maintenance) build the same
// collaborator stack the daemon uses and run in-process. Host launcher
// integrations call `srmsync open <uri>` and `srmsync event ...`.
package main
