// Package monitoring holds the process-wide diagnostic logger used by the
// tracking pipeline. It defaults to log.Printf; tests mute or capture it via
// SetLogger.
package monitoring

import "log"

// Logf is the package-level diagnostic logger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil argument installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
