// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/raysh454/stockscan/internal/logging"
	"github.com/raysh454/stockscan/internal/model"
	"github.com/raysh454/stockscan/internal/notify"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── Notifier ──────────────────────────────────────────────────────────

// RecordingNotifier implements notify.Notifier and keeps every notification.
type RecordingNotifier struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *RecordingNotifier) Notify(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

// All returns a copy of the recorded notifications.
func (r *RecordingNotifier) All() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.notes...)
}

// ─── Scan API ──────────────────────────────────────────────────────────

// DummyScanAPI implements the store's API interface.
// ScanFunc/ExportFunc override the canned Response/CSV when set.
type DummyScanAPI struct {
	Response   *model.ScanResponse
	CSV        []byte
	Err        error
	Delay      time.Duration
	ScanFunc   func(ctx context.Context, req model.ScanRequest) (*model.ScanResponse, error)
	ExportFunc func(ctx context.Context, req model.ScanRequest) ([]byte, error)

	mu       sync.Mutex
	Requests []model.ScanRequest
}

func (d *DummyScanAPI) record(ctx context.Context, req model.ScanRequest) error {
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()
	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (d *DummyScanAPI) ScanStocks(ctx context.Context, req model.ScanRequest) (*model.ScanResponse, error) {
	if err := d.record(ctx, req); err != nil {
		return nil, err
	}
	if d.ScanFunc != nil {
		return d.ScanFunc(ctx, req)
	}
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Response, nil
}

func (d *DummyScanAPI) ExportCSV(ctx context.Context, req model.ScanRequest) ([]byte, error) {
	if err := d.record(ctx, req); err != nil {
		return nil, err
	}
	if d.ExportFunc != nil {
		return d.ExportFunc(ctx, req)
	}
	if d.Err != nil {
		return nil, d.Err
	}
	return d.CSV, nil
}

// Calls returns the number of API calls made.
func (d *DummyScanAPI) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Requests)
}

// ─── Downloader ────────────────────────────────────────────────────────

// MemoryDownloader implements the store's Downloader by keeping files in memory.
type MemoryDownloader struct {
	Err error

	mu    sync.Mutex
	Files map[string][]byte
}

func (m *MemoryDownloader) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Files == nil {
		m.Files = make(map[string][]byte)
	}
	m.Files[name] = b
	return "mem://" + name, nil
}

// File returns the saved contents of name.
func (m *MemoryDownloader) File(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Files[name]
	return b, ok
}
