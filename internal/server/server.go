package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/stockscan/internal/history"
	"github.com/raysh454/stockscan/internal/logging"
	"github.com/raysh454/stockscan/internal/model"
	"github.com/raysh454/stockscan/internal/notify"
	"github.com/raysh454/stockscan/internal/store"
	"github.com/raysh454/stockscan/internal/webclient"
)

// Server is the HTTP + WebSocket front of the stock scanner.
type Server struct {
	cfg      Config
	store    *store.Store
	hub      *notify.Hub
	notifier notify.Notifier
	history  *history.History
	proxy    *httputil.ReverseProxy
	router   chi.Router
	logger   logging.Logger
}

// NewServer builds the router around an existing Store.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("server: store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}

	notifier := cfg.Notifier
	if notifier == nil && cfg.Hub != nil {
		notifier = cfg.Hub
	}

	s := &Server{
		cfg:      cfg,
		store:    cfg.Store,
		hub:      cfg.Hub,
		notifier: notifier,
		history:  cfg.History,
		router:   chi.NewRouter(),
		logger:   logger.With(logging.Field{Key: "component", Value: "server"}),
	}

	if cfg.BackendURL != "" {
		proxy, err := s.newProxy(cfg.BackendURL)
		if err != nil {
			return nil, err
		}
		s.proxy = proxy
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/scan", s.optionsHandler("POST"))
	r.Options("/export", s.optionsHandler("POST"))
	r.Options("/state", s.optionsHandler("GET"))
	r.Options("/history", s.optionsHandler("GET"))

	// View
	r.Get("/", s.handleIndex)

	// Actions
	r.Post("/scan", s.handleScan)
	r.Post("/export", s.handleExport)

	// State
	r.Get("/state", s.handleState)
	r.Get("/history", s.handleHistory)

	// Notifications
	if s.hub != nil {
		r.Get("/ws/notifications", s.hub.ServeHTTP)
	}

	// Backend passthrough
	if s.proxy != nil {
		r.Handle("/api", s.proxy)
		r.Handle("/api/*", s.proxy)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && r.Method == http.MethodPost {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close disconnects notification clients. The store and history are owned by
// the caller.
func (s *Server) Close() {
	if s.hub != nil {
		s.hub.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     s,
		ReadTimeout: 15 * time.Second,
		// scans may take up to the client timeout; the websocket stream is long lived
		WriteTimeout: 0,
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- HTTP handlers ---

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := renderView(w, http.StatusOK, newViewData(s.store.Snapshot(), nil, "")); err != nil {
		s.logger.Error("rendering view", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to render view")
	}
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	asJSON := isJSON(r)
	req, err := decodeScanRequest(r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		s.logger.Warn("invalid scan request", logging.Field{Key: "error", Value: err.Error()})
		s.notify(notify.Error(err.Error()))
		s.fail(w, asJSON, &req, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.store.Scan(r.Context(), req)
	if err != nil {
		status, msg := errorStatus(err)
		s.logger.Warn("scan", logging.Field{Key: "status", Value: status}, logging.Field{Key: "error", Value: err.Error()})
		if !isAPIError(err) {
			s.notify(notify.Error(msg))
		}
		s.fail(w, asJSON, &req, status, msg)
		return
	}

	s.logger.Info("scan done",
		logging.Field{Key: "scanner_type", Value: req.ScannerType},
		logging.Field{Key: "total_count", Value: resp.TotalCount})

	if asJSON {
		writeJSON(w, http.StatusOK, ScanResult{Response: resp, Loading: s.store.Loading()})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	asJSON := isJSON(r)
	req, err := decodeScanRequest(r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		s.logger.Warn("invalid export request", logging.Field{Key: "error", Value: err.Error()})
		s.notify(notify.Error(err.Error()))
		s.fail(w, asJSON, &req, http.StatusBadRequest, err.Error())
		return
	}

	dl := &attachment{w: w}
	if _, err := s.store.ExportTo(r.Context(), req, dl); err != nil {
		if dl.started {
			// headers are gone; the client sees a truncated download
			s.logger.Error("streaming export", logging.Field{Key: "error", Value: err.Error()})
			return
		}
		status, msg := errorStatus(err)
		s.logger.Warn("export", logging.Field{Key: "status", Value: status}, logging.Field{Key: "error", Value: err.Error()})
		if !isAPIError(err) {
			s.notify(notify.Error(msg))
		}
		s.fail(w, asJSON, &req, status, msg)
		return
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, HistoryResponse{Scans: []history.Record{}})
		return
	}

	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Warn("listing history", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Scans: recs})
}

// fail answers a failed action: JSON clients get an ErrorResponse, form
// posts get the view re-rendered with the submitted values and the message.
func (s *Server) fail(w http.ResponseWriter, asJSON bool, req *model.ScanRequest, status int, msg string) {
	if asJSON {
		writeError(w, status, msg)
		return
	}
	if err := renderView(w, status, newViewData(s.store.Snapshot(), req, msg)); err != nil {
		s.logger.Error("rendering view", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to render view")
	}
}

func (s *Server) notify(n notify.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}

func (s *Server) newProxy(backend string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(backend)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("server: invalid backend url %q", backend)
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Warn("proxying to backend",
				logging.Field{Key: "path", Value: r.URL.Path},
				logging.Field{Key: "error", Value: err.Error()})
			writeError(w, http.StatusBadGateway, "backend unavailable")
		},
	}, nil
}

// attachment is a store.Downloader that streams the file to the HTTP client.
type attachment struct {
	w       http.ResponseWriter
	started bool
}

func (a *attachment) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h := a.w.Header()
	h.Set("Content-Type", "text/csv; charset=utf-8")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	a.w.WriteHeader(http.StatusOK)
	a.started = true
	if _, err := io.Copy(a.w, r); err != nil {
		return "", err
	}
	return "attachment:" + name, nil
}

func isJSON(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

// decodeScanRequest reads a ScanRequest from a JSON body or a form. Fields
// missing from a JSON body keep the defaults of the view.
func decodeScanRequest(r *http.Request) (model.ScanRequest, error) {
	if !isJSON(r) {
		return parseScanForm(r)
	}
	req := model.ScanRequest{Count: model.DefaultCount, Simulation: true}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: invalid JSON", model.ErrInvalidRequest)
	}
	req.ScannerType = strings.TrimSpace(req.ScannerType)
	req.Date = strings.TrimSpace(req.Date)
	return req, nil
}

func isAPIError(err error) bool {
	var apiErr *webclient.APIError
	return errors.As(err, &apiErr)
}

// errorStatus maps an action error to the status returned to the browser and
// the message shown with it.
func errorStatus(err error) (int, string) {
	var apiErr *webclient.APIError
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Timeout():
			return http.StatusGatewayTimeout, apiErr.Message
		case apiErr.StatusCode == 0:
			return http.StatusBadGateway, apiErr.Message
		default:
			return apiErr.StatusCode, apiErr.Message
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, webclient.MsgTimeout
	default:
		return http.StatusBadGateway, webclient.MsgFailed
	}
}
