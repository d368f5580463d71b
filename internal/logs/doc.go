// Package logs reads the titlevault log file for the CLI.
//
// Tail returns the last lines of the file or the lines appended after a byte
// offset, optionally filtered to one run id, and can poll for new lines in
// follow mode. Only complete lines are returned; a partially written final
// line is left for the next call.
package logs
