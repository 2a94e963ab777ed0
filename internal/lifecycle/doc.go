// Package lifecycle answers start-or-install requests that arrive through the
// launch URI embedded in imported Steam shortcuts, and tracks installs it
// dispatched until they complete or are abandoned.
//
// Per-game state lives in a MarkerStore so other processes can observe which
// games are active. Each pending install owns a poll task; the installed
// event and a failed liveness check race through a single fire-once path.
package lifecycle
