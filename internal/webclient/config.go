package webclient

import (
	"net/http"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:8000/api"
	DefaultTimeout = 90 * time.Second
)

// Config configures the shared NetHTTPClient.
type Config struct {
	// BaseURL is prepended to every relative request URL.
	BaseURL string

	// Timeout bounds a whole request including reading the body.
	Timeout time.Duration

	// Headers are sent with every request unless the request sets them itself.
	Headers http.Header
}

// DefaultConfig returns the client configuration the scanner front-end uses:
// the /api base path, a 90 second timeout and JSON content type.
func DefaultConfig() Config {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
		Headers: h,
	}
}
