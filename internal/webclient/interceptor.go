package webclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/raysh454/stockscan/internal/logging"
	"github.com/raysh454/stockscan/internal/notify"
)

// Interceptor turns backend responses into user notifications. Partial
// success (206 with a warning) is surfaced as a warning and still returned;
// every failure is surfaced as an error and returned to the caller as *APIError.
type Interceptor struct {
	next     WebClient
	notifier notify.Notifier
	logger   logging.Logger
}

// Intercept returns the interceptor as a Middleware.
func Intercept(notifier notify.Notifier, logger logging.Logger) Middleware {
	return func(next WebClient) WebClient {
		return NewInterceptor(next, notifier, logger)
	}
}

func NewInterceptor(next WebClient, notifier notify.Notifier, logger logging.Logger) *Interceptor {
	if notifier == nil {
		notifier = notify.Func(func(notify.Notification) {})
	}
	return &Interceptor{
		next:     next,
		notifier: notifier,
		logger:   logger.With(logging.Field{Key: "component", Value: "interceptor"}),
	}
}

func (ic *Interceptor) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := ic.next.Do(ctx, req)
	if err != nil {
		return nil, ic.reject(req, nil, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ic.reject(req, resp, nil)
	}

	if resp.StatusCode == http.StatusPartialContent {
		if warning := ParseWarning(resp.Body); warning != "" {
			ic.logger.Warn("partial success", logging.Field{Key: "url", Value: req.URL}, logging.Field{Key: "warning", Value: warning})
			ic.notifier.Notify(notify.Warning(warning))
		}
	}
	return resp, nil
}

func (ic *Interceptor) reject(req *Request, resp *Response, cause error) error {
	// An inner interceptor may already have classified this failure.
	var inner *APIError
	if errors.As(cause, &inner) {
		return inner
	}

	apiErr := &APIError{Err: cause, Response: resp}
	if resp != nil {
		apiErr.StatusCode = resp.StatusCode
		apiErr.Detail = ParseDetail(resp.Body)
	}
	apiErr.Message = ResolveMessage(apiErr.StatusCode, apiErr.Detail, cause)

	fields := []logging.Field{
		{Key: "status", Value: apiErr.StatusCode},
		{Key: "message", Value: apiErr.Message},
	}
	if req != nil {
		fields = append(fields, logging.Field{Key: "url", Value: req.URL})
	}
	if cause != nil {
		fields = append(fields, logging.Field{Key: "error", Value: cause.Error()})
	}
	ic.logger.Warn("request failed", fields...)

	ic.notifier.Notify(notify.Error(apiErr.Message))
	return apiErr
}

func (ic *Interceptor) Close() error {
	return ic.next.Close()
}
