package webclient

import (
	"net/http"
	"time"
)

// Request describes one outbound call. URL is relative to Config.BaseURL
// unless it carries a scheme.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}
