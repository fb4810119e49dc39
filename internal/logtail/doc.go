// Package logtail reads and pretty-prints the dashboard's log file.
//
// # Overview
//
// The dashboard owns the terminal while it runs, so internal/logging sends
// its entries to a JSON file instead. This package is what turns that file
// back into something a person can read, for the "evalwatch logs" command.
//
// # Reading
//
// Read returns the last N lines using a ring buffer of N entries, so memory
// stays bounded however large the file grows. A missing file is not an error;
// it reads as empty.
//
//	lines, err := logtail.Read(cfg.LogFile, 200)
//
// # Formatting
//
// Parse decodes one zap JSON line into an Entry. Filter drops entries below a
// level. Format renders an entry as
//
//	2026-10-17 14:32:15 WARN  [poll] poll failed namespace=ds-project-1
//
// with lipgloss colors from a Palette. The zero Palette renders plain text,
// which is what the command uses when output is not a terminal or --no-color
// is set. Lines that are not JSON pass through unchanged.
package logtail
