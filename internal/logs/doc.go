// Package logs reads the daemon log for `srmsync logs`.
//
// Last returns the trailing lines of a file along with the offset just past
// them; Follow polls from an offset and hands each new line to a callback
// until its context ends. Truncated or rotated files restart from the top.
package logs
