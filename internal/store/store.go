// Package store holds the scanner session state: the latest results, their
// timing and count, and whether an action is in flight.
package store

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raysh454/stockscan/internal/logging"
	"github.com/raysh454/stockscan/internal/model"
)

// API is the subset of the scanner API the store calls.
type API interface {
	ScanStocks(ctx context.Context, req model.ScanRequest) (*model.ScanResponse, error)
	ExportCSV(ctx context.Context, req model.ScanRequest) ([]byte, error)
}

// Recorder is told about every scan whose results were applied.
type Recorder interface {
	RecordScan(ctx context.Context, req model.ScanRequest, resp *model.ScanResponse) error
}

// State is a point-in-time copy of the store.
type State struct {
	Loading       bool               `json:"loading"`
	Results       []model.StockData  `json:"results"`
	ExecutionTime float64            `json:"execution_time"`
	TotalCount    int                `json:"total_count"`
	Warning       string             `json:"warning,omitempty"`
	Changes       RankChanges        `json:"changes"`
	LastRequest   *model.ScanRequest `json:"last_request,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Store is the single source of truth for the scanner view. Construct one per
// session with New; it is safe for concurrent use.
type Store struct {
	api        API
	downloader Downloader
	recorder   Recorder
	logger     logging.Logger

	mu            sync.Mutex
	inflight      int
	scanSeq       uint64
	appliedSeq    uint64
	results       []model.StockData
	executionTime float64
	totalCount    int
	warning       string
	changes       RankChanges
	lastRequest   *model.ScanRequest
	updatedAt     time.Time
}

type Option func(*Store)

// WithRecorder attaches a scan history recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

func New(api API, downloader Downloader, logger logging.Logger, opts ...Option) *Store {
	s := &Store{
		api:        api,
		downloader: downloader,
		logger:     logger.With(logging.Field{Key: "component", Value: "store"}),
		results:    []model.StockData{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// begin marks an action in flight; the returned func releases it.
func (s *Store) begin() func() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}
}

// Loading reports whether any action is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]model.StockData, len(s.results))
	for i, r := range s.results {
		results[i] = r.Clone()
	}
	var last *model.ScanRequest
	if s.lastRequest != nil {
		req := *s.lastRequest
		last = &req
	}
	return State{
		Loading:       s.inflight > 0,
		Results:       results,
		ExecutionTime: s.executionTime,
		TotalCount:    s.totalCount,
		Warning:       s.warning,
		Changes:       s.changes,
		LastRequest:   last,
		UpdatedAt:     s.updatedAt,
	}
}

// Scan runs a scan and, on success, replaces the results, execution time and
// total count with the response's. A response is applied only if no scan
// started after it has already been applied; an older response arriving late
// is returned to its caller but leaves the state alone. Failed scans apply
// nothing, so they never hide a pending success. On failure the previous
// results are kept and the error is returned unchanged.
func (s *Store) Scan(ctx context.Context, req model.ScanRequest) (*model.ScanResponse, error) {
	release := s.begin()
	defer release()

	s.mu.Lock()
	s.scanSeq++
	seq := s.scanSeq
	s.mu.Unlock()

	s.logger.Info("scan started",
		logging.Field{Key: "scanner_type", Value: req.ScannerType},
		logging.Field{Key: "date", Value: req.Date},
		logging.Field{Key: "count", Value: req.Count})

	resp, err := s.api.ScanStocks(ctx, req)
	if err != nil {
		s.logger.Warn("scan failed", logging.Field{Key: "error", Value: err.Error()})
		return nil, err
	}
	if resp == nil {
		resp = &model.ScanResponse{}
	}
	data := resp.Data
	if data == nil {
		data = []model.StockData{}
	}

	s.mu.Lock()
	if seq < s.appliedSeq {
		s.mu.Unlock()
		s.logger.Info("discarding superseded scan result",
			logging.Field{Key: "seq", Value: seq},
			logging.Field{Key: "date", Value: req.Date})
		return resp, nil
	}
	s.appliedSeq = seq
	s.changes = CompareRanks(s.results, data)
	s.results = data
	s.executionTime = resp.ExecutionTime
	s.totalCount = resp.TotalCount
	s.warning = resp.Warning
	s.lastRequest = &req
	s.updatedAt = time.Now().UTC()
	changes := s.changes
	s.mu.Unlock()

	s.logger.Info("scan completed",
		logging.Field{Key: "total_count", Value: resp.TotalCount},
		logging.Field{Key: "execution_time", Value: resp.ExecutionTime},
		logging.Field{Key: "entered", Value: len(changes.Entered)},
		logging.Field{Key: "left", Value: len(changes.Left)})

	if s.recorder != nil {
		if err := s.recorder.RecordScan(ctx, req, resp); err != nil {
			s.logger.Warn("recording scan history", logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return resp, nil
}

// ExportToCSV exports req and saves it with the store's downloader.
func (s *Store) ExportToCSV(ctx context.Context, req model.ScanRequest) (string, error) {
	return s.ExportTo(ctx, req, s.downloader)
}

// ExportTo exports req and hands the CSV to dst as stock_scan_{date}.csv.
// It never touches the scan results.
func (s *Store) ExportTo(ctx context.Context, req model.ScanRequest, dst Downloader) (string, error) {
	release := s.begin()
	defer release()

	if dst == nil {
		return "", fmt.Errorf("export: no downloader configured")
	}

	blob, err := s.api.ExportCSV(ctx, req)
	if err != nil {
		s.logger.Warn("export failed", logging.Field{Key: "error", Value: err.Error()})
		return "", err
	}

	name := req.ExportFileName()
	location, err := dst.Save(ctx, name, bytes.NewReader(blob))
	if err != nil {
		s.logger.Warn("saving export", logging.Field{Key: "file", Value: name}, logging.Field{Key: "error", Value: err.Error()})
		return "", fmt.Errorf("save %s: %w", name, err)
	}

	s.logger.Info("export saved",
		logging.Field{Key: "file", Value: name},
		logging.Field{Key: "location", Value: location},
		logging.Field{Key: "bytes", Value: len(blob)})
	return location, nil
}
