// Package history persists a log of sync sessions in SQLite so the CLI and
// status API can show what past sessions changed and how they ended. Nothing
// reads history back to make decisions.
package history
