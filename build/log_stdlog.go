//go:build stdlog
// +build stdlog

package build

import "os"

// LoggingType sends every chanrescue log line to stdout only, for runs under
// a supervisor that collects stdout itself.
const LoggingType = LogTypeStdOut

// Write passes b straight to stdout, reporting stdout's own result so a
// closed stdout surfaces as an error.
func (w *LogWriter) Write(b []byte) (int, error) {
	return os.Stdout.Write(b)
}
