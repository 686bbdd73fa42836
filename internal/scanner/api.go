// Package scanner wraps the backend's scan endpoints.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raysh454/stockscan/internal/model"
	"github.com/raysh454/stockscan/internal/webclient"
)

const (
	scanPath    = "/scan"
	exportPath  = "/export"
	versionPath = "/version"
)

// API issues scan calls through a shared WebClient. Errors from the client
// (including *webclient.APIError) are wrapped, never replaced.
type API struct {
	client webclient.WebClient
}

func NewAPI(client webclient.WebClient) *API {
	return &API{client: client}
}

// ScanStocks runs a scan and decodes the JSON result.
func (a *API) ScanStocks(ctx context.Context, req model.ScanRequest) (*model.ScanResponse, error) {
	resp, err := a.post(ctx, scanPath, req, "application/json")
	if err != nil {
		return nil, fmt.Errorf("scan stocks: %w", err)
	}

	var out model.ScanResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode scan response: %w", err)
	}
	if out.Data == nil {
		out.Data = []model.StockData{}
	}
	return &out, nil
}

// ExportCSV runs a scan and returns the raw CSV bytes.
func (a *API) ExportCSV(ctx context.Context, req model.ScanRequest) ([]byte, error) {
	resp, err := a.post(ctx, exportPath, req, "text/csv, application/octet-stream")
	if err != nil {
		return nil, fmt.Errorf("export csv: %w", err)
	}
	return resp.Body, nil
}

// Version fetches the backend version.
func (a *API) Version(ctx context.Context) (*model.VersionInfo, error) {
	resp, err := a.client.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: versionPath})
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	var out model.VersionInfo
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode version: %w", err)
	}
	return &out, nil
}

func (a *API) post(ctx context.Context, path string, req model.ScanRequest, accept string) (*webclient.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	hdrs := http.Header{}
	hdrs.Set("Accept", accept)
	return a.client.Do(ctx, &webclient.Request{
		Method:  http.MethodPost,
		URL:     path,
		Headers: hdrs,
		Body:    body,
	})
}
