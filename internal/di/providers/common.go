// Package providers contains dependency injection providers for TomeTrove.
package providers

import "time"

const (
	// shutdownTimeout bounds how long the watcher may take to drain on exit.
	shutdownTimeout = 10 * time.Second
)
