package webclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raysh454/stockscan/internal/logging"
)

// net/http backed implementation of webclient.
type NetHTTPClient struct {
	client  *http.Client
	baseURL string
	headers http.Header
	logger  logging.Logger
}

// NewNetHTTPClient builds the shared client. If httpClient is nil one is
// constructed with cfg.Timeout (DefaultTimeout when unset).
func NewNetHTTPClient(cfg Config, logger logging.Logger, httpClient *http.Client) (*NetHTTPClient, error) {
	componentLogger := logger.With(logging.Field{Key: "component", Value: "webclient"})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	} else if httpClient.Timeout == 0 {
		httpClient.Timeout = timeout
	}

	componentLogger.Info("created nethttp webclient",
		logging.Field{Key: "base_url", Value: cfg.BaseURL},
		logging.Field{Key: "timeout", Value: httpClient.Timeout.String()})

	return &NetHTTPClient{
		client:  httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: cfg.Headers.Clone(),
		logger:  componentLogger,
	}, nil
}

// ResolveURL joins a request path onto the base URL. Absolute URLs are
// returned unchanged.
func (nhc *NetHTTPClient) ResolveURL(path string) string {
	if strings.Contains(path, "://") || nhc.baseURL == "" {
		return path
	}
	return nhc.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Do implements the generic request execution using net/http. Non-2xx
// statuses are returned as responses, not errors.
func (nhc *NetHTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, nhc.ErrInvalidRequest()
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	url := nhc.ResolveURL(req.URL)
	nhc.logger.Debug("sending http request",
		logging.Field{Key: "method", Value: method},
		logging.Field{Key: "url", Value: url})

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, vs := range nhc.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Headers {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := nhc.client.Do(httpReq)
	if err != nil {
		nhc.logger.Warn("http request failed",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "url", Value: url},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		nhc.logger.Warn("failed to read response body",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "url", Value: url},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("read body: %w", err)
	}

	nhc.logger.Debug("received http response",
		logging.Field{Key: "method", Value: method},
		logging.Field{Key: "url", Value: url},
		logging.Field{Key: "status", Value: resp.StatusCode},
		logging.Field{Key: "elapsed", Value: time.Since(start).String()})

	return &Response{
		Request:    req,
		Body:       body,
		Headers:    resp.Header,
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now(),
	}, nil
}

// Post is a convenience method for JSON POST requests.
func (nhc *NetHTTPClient) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	return nhc.Do(ctx, &Request{Method: http.MethodPost, URL: path, Body: body})
}

func (nhc *NetHTTPClient) Close() error {
	nhc.logger.Info("closing nethttp webclient")
	nhc.client.CloseIdleConnections()
	return nil
}

// HTTPClient returns the underlying *http.Client
func (nhc *NetHTTPClient) HTTPClient() *http.Client {
	return nhc.client
}

// ErrInvalidRequest returns an error for invalid request scenarios
func (nhc *NetHTTPClient) ErrInvalidRequest() error {
	return fmt.Errorf("request cannot be nil")
}
