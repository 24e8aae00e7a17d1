// Package lifecycle holds shared constants for process startup and shutdown.
package lifecycle

import "time"

// DefaultTimeout bounds graceful startup/shutdown steps such as DB pings and
// HTTP server drains.
const DefaultTimeout = 10 * time.Second
