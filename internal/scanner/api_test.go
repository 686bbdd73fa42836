package scanner_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raysh454/stockscan/internal/model"
	"github.com/raysh454/stockscan/internal/scanner"
	"github.com/raysh454/stockscan/internal/testutil"
	"github.com/raysh454/stockscan/internal/webclient"
)

func newAPI(t *testing.T, h http.HandlerFunc) (*scanner.API, *testutil.RecordingNotifier) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	cfg := webclient.DefaultConfig()
	cfg.BaseURL = ts.URL + "/api"
	logger := &testutil.DummyLogger{}
	base, err := webclient.NewNetHTTPClient(cfg, logger, ts.Client())
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	rec := &testutil.RecordingNotifier{}
	return scanner.NewAPI(webclient.Chain(base, webclient.Intercept(rec, logger))), rec
}

func TestAPI_ScanStocks_PostsRequestAndDecodes(t *testing.T) {
	t.Parallel()

	var got model.ScanRequest
	var path, method string
	api, _ := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		path, method = r.URL.Path, r.Method
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok","data":[{"code":"2330","close":600}],"total_count":1,"execution_time":0.5}`)
	})

	req := model.ScanRequest{ScannerType: "VolumeRank", Date: "2024-01-01", Count: 10, Simulation: true}
	resp, err := api.ScanStocks(context.Background(), req)
	if err != nil {
		t.Fatalf("ScanStocks: %v", err)
	}
	if method != http.MethodPost || path != "/api/scan" {
		t.Errorf("unexpected call %s %s", method, path)
	}
	if got != req {
		t.Errorf("backend received %+v, want %+v", got, req)
	}
	if resp.TotalCount != 1 || resp.ExecutionTime != 0.5 || len(resp.Data) != 1 || resp.Data[0].Code() != "2330" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestAPI_ScanStocks_PartialContentStillSucceeds(t *testing.T) {
	t.Parallel()

	api, rec := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = io.WriteString(w, `{"status":"success","data":[],"total_count":0,"execution_time":1.2,"warning":"5% left"}`)
	})

	resp, err := api.ScanStocks(context.Background(), model.DefaultScanRequest("VolumeRank", "2024-01-01"))
	if err != nil {
		t.Fatalf("ScanStocks: %v", err)
	}
	if resp.Warning != "5% left" || resp.ExecutionTime != 1.2 {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(rec.All()) != 1 {
		t.Errorf("expected warning notification")
	}
}

func TestAPI_ScanStocks_PropagatesAPIError(t *testing.T) {
	t.Parallel()

	api, _ := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"unknown scanner type"}`)
	})

	_, err := api.ScanStocks(context.Background(), model.DefaultScanRequest("Nope", "2024-01-01"))
	var apiErr *webclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "unknown scanner type" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestAPI_ScanStocks_InvalidJSON(t *testing.T) {
	t.Parallel()

	api, _ := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	})
	if _, err := api.ScanStocks(context.Background(), model.DefaultScanRequest("VolumeRank", "2024-01-01")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestAPI_ExportCSV_ReturnsRawBytes(t *testing.T) {
	t.Parallel()

	csv := "\ufeffcode,name,close\n2330,TSMC,600\n"
	var path string
	api, _ := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=stock_scan_2024-01-01.csv")
		_, _ = io.WriteString(w, csv)
	})

	b, err := api.ExportCSV(context.Background(), model.DefaultScanRequest("VolumeRank", "2024-01-01"))
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if path != "/api/export" {
		t.Errorf("unexpected path %s", path)
	}
	if string(b) != csv {
		t.Errorf("unexpected body %q", b)
	}
}

func TestAPI_ExportCSV_Error(t *testing.T) {
	t.Parallel()

	api, rec := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"detail":"CSV export failed"}`)
	})

	if _, err := api.ExportCSV(context.Background(), model.DefaultScanRequest("VolumeRank", "2024-01-01")); err == nil {
		t.Fatal("expected error")
	}
	notes := rec.All()
	if len(notes) != 1 || notes[0].Message != "CSV export failed" {
		t.Errorf("unexpected notifications %+v", notes)
	}
}

func TestAPI_Version(t *testing.T) {
	t.Parallel()

	api, _ := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/version" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"version":"1.4.2"}`)
	})

	v, err := api.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.Version != "1.4.2" {
		t.Errorf("unexpected version %q", v.Version)
	}
}
