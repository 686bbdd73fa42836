// Package history keeps a local SQLite log of completed scans.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/raysh454/stockscan/internal/logging"
	"github.com/raysh454/stockscan/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

var ErrNotFound = errors.New("scan record not found")

// Record is one completed scan. Codes keeps the ranked stock codes so later
// runs can be compared without storing full rows.
type Record struct {
	ID            string            `json:"id"`
	Request       model.ScanRequest `json:"request"`
	Status        string            `json:"status"`
	TotalCount    int               `json:"total_count"`
	ExecutionTime float64           `json:"execution_time"`
	Warning       string            `json:"warning,omitempty"`
	Codes         []string          `json:"codes"`
	CreatedAt     time.Time         `json:"created_at"`
}

// History stores Records in SQLite.
type History struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens (or creates) the history database at path. Use ":memory:" for
// a throwaway database.
func Open(path string, logger logging.Logger) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring history database: %w", err)
	}
	h, err := New(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// New runs the schema migration on db and returns a History using it.
func New(db *sql.DB, logger logging.Logger) (*History, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return &History{db: db, logger: logger.With(logging.Field{Key: "component", Value: "history"})}, nil
}

// RecordScan implements store.Recorder.
func (h *History) RecordScan(ctx context.Context, req model.ScanRequest, resp *model.ScanResponse) error {
	_, err := h.Add(ctx, req, resp)
	return err
}

// Add inserts a record for a completed scan and returns it.
func (h *History) Add(ctx context.Context, req model.ScanRequest, resp *model.ScanResponse) (*Record, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil scan response")
	}
	codes := make([]string, 0, len(resp.Data))
	for _, row := range resp.Data {
		if c := row.Code(); c != "" {
			codes = append(codes, c)
		}
	}
	codesJSON, err := json.Marshal(codes)
	if err != nil {
		return nil, fmt.Errorf("encode codes: %w", err)
	}

	rec := &Record{
		ID:            uuid.New().String(),
		Request:       req,
		Status:        resp.Status,
		TotalCount:    resp.TotalCount,
		ExecutionTime: resp.ExecutionTime,
		Warning:       resp.Warning,
		Codes:         codes,
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}

	_, err = h.db.ExecContext(ctx,
		`INSERT INTO scans (id, scanner_type, scan_date, count, ascending, simulation,
                            status, total_count, execution_time, warning, codes, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, req.ScannerType, req.Date, req.Count, boolInt(req.Ascending), boolInt(req.Simulation),
		rec.Status, rec.TotalCount, rec.ExecutionTime, rec.Warning, string(codesJSON), rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert scan: %w", err)
	}
	h.logger.Debug("recorded scan", logging.Field{Key: "id", Value: rec.ID}, logging.Field{Key: "total_count", Value: rec.TotalCount})
	return rec, nil
}

const selectColumns = `SELECT id, scanner_type, scan_date, count, ascending, simulation,
       status, total_count, execution_time, warning, codes, created_at FROM scans`

// Recent returns up to limit records, newest first. limit <= 0 means 20.
func (h *History) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Get returns the record with id.
func (h *History) Get(ctx context.Context, id string) (*Record, error) {
	row := h.db.QueryRowContext(ctx, selectColumns+` WHERE id = ? LIMIT 1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec         Record
		asc, sim    int
		codesJSON   string
		createdAtMS int64
	)
	err := row.Scan(&rec.ID, &rec.Request.ScannerType, &rec.Request.Date, &rec.Request.Count, &asc, &sim,
		&rec.Status, &rec.TotalCount, &rec.ExecutionTime, &rec.Warning, &codesJSON, &createdAtMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}
	rec.Request.Ascending = asc != 0
	rec.Request.Simulation = sim != 0
	if err := json.Unmarshal([]byte(codesJSON), &rec.Codes); err != nil {
		return nil, fmt.Errorf("decode codes: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdAtMS).UTC()
	return &rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
