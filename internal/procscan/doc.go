// Package procscan finds running processes by name and signals them.
//
// Processes are enumerated from procfs through github.com/prometheus/procfs.
// The Steam controller uses it to detect and stop the client before SRM
// rewrites shortcuts; the host launcher uses it for the install liveness
// check.
package procscan
