// Package api defines wire-format types and converters shared by the IPC
// and HTTP layers. It translates sync reports, history sessions, and library
// games into transport-friendly DTOs so clients never import internal types.
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds and
// durations are reported in milliseconds.
package api
