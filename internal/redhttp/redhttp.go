// Package redhttp contains common constants, functions, and types for working
// with HTTP.
package redhttp

import "github.com/redron/dispatch/internal/version"

// Common Constants, Functions And Types

// HTTP header value constants.
const (
	HdrValApplicationJSON = "application/json"
	HdrValTextPlain       = "text/plain"
	HdrValWildcard        = "*"
)

// userAgent is the cached User-Agent string for the dispatcher.
var userAgent = version.Name() + "/" + version.Version()

// UserAgent returns the ID of the service as a User-Agent string.  It can
// also be used as the value of the Server HTTP header.
func UserAgent() (ua string) {
	return userAgent
}
