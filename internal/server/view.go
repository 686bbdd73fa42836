package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raysh454/stockscan/internal/model"
	"github.com/raysh454/stockscan/internal/store"
)

//go:embed templates/scanner.html
var templatesFS embed.FS

var scannerView = template.Must(template.ParseFS(templatesFS, "templates/scanner.html"))

type viewData struct {
	ScannerTypes []string
	MinCount     int
	MaxCount     int
	Request      model.ScanRequest
	State        store.State
	Columns      []string
	Rows         [][]string
	Error        string
}

func newViewData(st store.State, req *model.ScanRequest, errMsg string) viewData {
	form := model.DefaultScanRequest(model.ScannerTypes[0], time.Now().Format("2006-01-02"))
	switch {
	case req != nil:
		form = *req
	case st.LastRequest != nil:
		form = *st.LastRequest
	}

	types := model.ScannerTypes
	if !contains(types, form.ScannerType) && form.ScannerType != "" {
		types = append(append([]string{}, types...), form.ScannerType)
	}

	cols := model.Columns(st.Results)
	rows := make([][]string, 0, len(st.Results))
	for _, r := range st.Results {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = r.Text(c)
		}
		rows = append(rows, cells)
	}

	return viewData{
		ScannerTypes: types,
		MinCount:     model.MinCount,
		MaxCount:     model.MaxCount,
		Request:      form,
		State:        st,
		Columns:      cols,
		Rows:         rows,
		Error:        errMsg,
	}
}

// renderView writes the scanner view. Rendering goes through a buffer so a
// template error never produces a half-written page.
func renderView(w http.ResponseWriter, status int, data viewData) error {
	var buf bytes.Buffer
	if err := scannerView.Execute(&buf, data); err != nil {
		return fmt.Errorf("render scanner view: %w", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// parseScanForm reads a ScanRequest from a submitted form. Unchecked
// checkboxes are absent from the form and therefore false.
func parseScanForm(r *http.Request) (model.ScanRequest, error) {
	if err := r.ParseForm(); err != nil {
		return model.ScanRequest{}, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	req := model.ScanRequest{
		ScannerType: strings.TrimSpace(r.PostForm.Get("scanner_type")),
		Date:        strings.TrimSpace(r.PostForm.Get("date")),
		Count:       model.DefaultCount,
		Ascending:   formBool(r.PostForm.Get("ascending")),
		Simulation:  formBool(r.PostForm.Get("simulation")),
	}
	if c := strings.TrimSpace(r.PostForm.Get("count")); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			return req, fmt.Errorf("%w: count %q is not a number", model.ErrInvalidRequest, c)
		}
		req.Count = n
	}
	return req, nil
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
