package webclient_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/raysh454/stockscan/internal/notify"
	"github.com/raysh454/stockscan/internal/testutil"
	"github.com/raysh454/stockscan/internal/webclient"
)

// stubClient returns a canned response or error.
type stubClient struct {
	resp *webclient.Response
	err  error
}

func (s *stubClient) Do(_ context.Context, req *webclient.Request) (*webclient.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := *s.resp
	r.Request = req
	return &r, nil
}

func (s *stubClient) Close() error { return nil }

func respond(status int, body string) *stubClient {
	return &stubClient{resp: &webclient.Response{StatusCode: status, Body: []byte(body)}}
}

func intercept(next webclient.WebClient) (webclient.WebClient, *testutil.RecordingNotifier) {
	rec := &testutil.RecordingNotifier{}
	return webclient.Chain(next, webclient.Intercept(rec, &testutil.DummyLogger{})), rec
}

func doScan(wc webclient.WebClient) (*webclient.Response, error) {
	return wc.Do(context.Background(), &webclient.Request{Method: "POST", URL: "/scan"})
}

func TestInterceptor_PartialContentWarning(t *testing.T) {
	t.Parallel()

	wc, rec := intercept(respond(206, `{"status":"success","data":[],"warning":"quota 5% left"}`))
	resp, err := doScan(wc)
	if err != nil {
		t.Fatalf("206 must succeed, got %v", err)
	}
	if resp.StatusCode != 206 {
		t.Errorf("expected 206, got %d", resp.StatusCode)
	}

	got := rec.All()
	if len(got) != 1 {
		t.Fatalf("expected one notification, got %d", len(got))
	}
	if got[0].Level != notify.LevelWarning || got[0].Message != "quota 5% left" || got[0].Duration != 8*time.Second {
		t.Errorf("unexpected notification: %+v", got[0])
	}
}

func TestInterceptor_SuccessWithoutWarningIsSilent(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		status int
		body   string
	}{
		{200, `{"warning":"ignored on 200"}`},
		{206, `{"status":"success"}`},
		{206, `not json`},
	} {
		wc, rec := intercept(respond(tc.status, tc.body))
		if _, err := doScan(wc); err != nil {
			t.Fatalf("status %d: unexpected error %v", tc.status, err)
		}
		if n := len(rec.All()); n != 0 {
			t.Errorf("status %d body %q: expected no notification, got %d", tc.status, tc.body, n)
		}
	}
}

func TestInterceptor_StatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status     int
		defaultMsg string
		usesDetail bool
	}{
		{429, webclient.MsgRateLimited, true},
		{500, webclient.MsgServerError, true},
		{504, webclient.MsgGatewayTimeout, false},
		{422, webclient.MsgValidationFailed, true},
		{400, webclient.MsgBadRequest, true},
		{404, "error code: 404", true},
		{503, "error code: 503", true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("%d", tc.status), func(t *testing.T) {
			t.Parallel()

			// With detail.
			wc, rec := intercept(respond(tc.status, `{"detail":"X"}`))
			_, err := doScan(wc)
			var apiErr *webclient.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			want := "X"
			if !tc.usesDetail {
				want = tc.defaultMsg
			}
			if apiErr.Message != want {
				t.Errorf("with detail: message %q, want %q", apiErr.Message, want)
			}
			if apiErr.StatusCode != tc.status {
				t.Errorf("status %d, want %d", apiErr.StatusCode, tc.status)
			}
			notes := rec.All()
			if len(notes) != 1 || notes[0].Level != notify.LevelError || notes[0].Message != want || notes[0].Duration != 5*time.Second {
				t.Errorf("with detail: unexpected notifications %+v", notes)
			}

			// Without detail.
			wc, rec = intercept(respond(tc.status, `{}`))
			_, err = doScan(wc)
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Message != tc.defaultMsg {
				t.Errorf("without detail: message %q, want %q", apiErr.Message, tc.defaultMsg)
			}
			if notes := rec.All(); len(notes) != 1 || notes[0].Message != tc.defaultMsg {
				t.Errorf("without detail: unexpected notifications %+v", notes)
			}
		})
	}
}

func TestInterceptor_TimeoutWinsOverEverything(t *testing.T) {
	t.Parallel()

	for _, cause := range []error{
		context.DeadlineExceeded,
		fmt.Errorf("http do: %w", os.ErrDeadlineExceeded),
		fmt.Errorf("http do: %w", syscall.ECONNABORTED),
		errors.New("net/http: request canceled (Client.Timeout exceeded while awaiting headers) timeout"),
	} {
		wc, rec := intercept(&stubClient{err: cause})
		_, err := doScan(wc)
		var apiErr *webclient.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", err)
		}
		if apiErr.Message != webclient.MsgTimeout {
			t.Errorf("cause %v: message %q", cause, apiErr.Message)
		}
		if !apiErr.Timeout() {
			t.Errorf("cause %v: Timeout() = false", cause)
		}
		if !errors.Is(err, cause) {
			t.Errorf("cause %v not preserved", cause)
		}
		if notes := rec.All(); len(notes) != 1 || notes[0].Message != webclient.MsgTimeout {
			t.Errorf("unexpected notifications %+v", notes)
		}
	}
}

func TestInterceptor_NetworkFailureFallsBackToGeneric(t *testing.T) {
	t.Parallel()

	wc, rec := intercept(&stubClient{err: errors.New("dial tcp 127.0.0.1:1: connect: connection refused")})
	_, err := doScan(wc)
	var apiErr *webclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 0 || apiErr.Message != webclient.MsgFailed {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if notes := rec.All(); len(notes) != 1 || notes[0].Message != webclient.MsgFailed {
		t.Errorf("unexpected notifications %+v", notes)
	}
}

func TestInterceptor_NestedDoesNotNotifyTwice(t *testing.T) {
	t.Parallel()

	rec := &testutil.RecordingNotifier{}
	logger := &testutil.DummyLogger{}
	wc := webclient.Chain(respond(500, `{}`), webclient.Intercept(rec, logger), webclient.Intercept(rec, logger))
	if _, err := doScan(wc); err == nil {
		t.Fatal("expected error")
	}
	if n := len(rec.All()); n != 1 {
		t.Errorf("expected exactly one notification, got %d", n)
	}
}

func TestInterceptor_EndToEndWithNetHTTPClient(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"quota exceeded","bytes_used":10,"limit_bytes":5}`))
	}))
	defer ts.Close()

	base := newClient(t, ts, webclient.Config{})
	wc, rec := intercept(base)
	_, err := doScan(wc)

	var apiErr *webclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "quota exceeded" || apiErr.StatusCode != 429 {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if apiErr.Response == nil || string(apiErr.Response.Body) == "" {
		t.Error("expected the failed response to be attached")
	}
	if len(rec.All()) != 1 {
		t.Errorf("expected one notification")
	}
}
