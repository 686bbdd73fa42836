package server

import (
	"github.com/raysh454/stockscan/internal/history"
	"github.com/raysh454/stockscan/internal/model"
)

// ScanResult is returned by POST /scan for JSON clients.
type ScanResult struct {
	Response *model.ScanResponse `json:"response"`
	Loading  bool                `json:"loading"`
}

// HistoryResponse lists recent scans, newest first.
type HistoryResponse struct {
	Scans []history.Record `json:"scans"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}
