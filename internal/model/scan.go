package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRequest is returned by ScanRequest.Validate.
var ErrInvalidRequest = errors.New("invalid scan request")

const (
	MinCount     = 1
	MaxCount     = 200
	DefaultCount = 100
)

// ScannerTypes are the scanner identifiers the backend is known to support.
// Other identifiers are passed through unchanged.
var ScannerTypes = []string{
	"ChangePercentRank",
	"ChangePriceRank",
	"DayRangeRank",
	"VolumeRank",
	"AmountRank",
	"TickCountRank",
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ScanRequest is the body of both /scan and /export.
type ScanRequest struct {
	ScannerType string `json:"scanner_type" yaml:"scanner_type"`
	Date        string `json:"date" yaml:"date"`
	Count       int    `json:"count" yaml:"count"`
	Ascending   bool   `json:"ascending" yaml:"ascending"`
	Simulation  bool   `json:"simulation" yaml:"simulation"`
}

// DefaultScanRequest returns a request for date with the backend's defaults.
func DefaultScanRequest(scannerType, date string) ScanRequest {
	return ScanRequest{
		ScannerType: scannerType,
		Date:        date,
		Count:       DefaultCount,
		Ascending:   false,
		Simulation:  true,
	}
}

// Validate checks the same constraints the backend enforces.
func (r ScanRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.ScannerType) == "" {
		problems = append(problems, "scanner_type is required")
	}
	if !datePattern.MatchString(r.Date) {
		problems = append(problems, fmt.Sprintf("date %q must be YYYY-MM-DD", r.Date))
	}
	if r.Count < MinCount || r.Count > MaxCount {
		problems = append(problems, fmt.Sprintf("count %d must be between %d and %d", r.Count, MinCount, MaxCount))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// ExportFileName is the name a CSV export of r is saved under.
func (r ScanRequest) ExportFileName() string {
	return fmt.Sprintf("stock_scan_%s.csv", r.Date)
}

// ScanResponse is the JSON body of /scan. Warning is only set on 206 responses.
type ScanResponse struct {
	Status        string      `json:"status"`
	Data          []StockData `json:"data"`
	TotalCount    int         `json:"total_count"`
	ExecutionTime float64     `json:"execution_time"`
	Warning       string      `json:"warning,omitempty"`
}

// VersionInfo is the body of /version.
type VersionInfo struct {
	Version string `json:"version"`
}
