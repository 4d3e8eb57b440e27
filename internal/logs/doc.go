// Package logs reads the JSON log file written when logging.file is enabled.
//
// Tail returns the last lines of the file and, when following, polls for
// lines appended after the returned offset. Lines can be narrowed to a single
// run using the run_id attribute every command attaches.
package logs
