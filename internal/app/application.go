package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/raysh454/stockscan/internal/history"
	"github.com/raysh454/stockscan/internal/logging"
	"github.com/raysh454/stockscan/internal/notify"
	"github.com/raysh454/stockscan/internal/scanner"
	"github.com/raysh454/stockscan/internal/server"
	"github.com/raysh454/stockscan/internal/store"
	"github.com/raysh454/stockscan/internal/webclient"
)

const shutdownTimeout = 15 * time.Second

// Application is the runtime state container. It builds the shared services
// once (logger, notifier, API client, history, store) so the CLI commands and
// the web server use the same wiring.
type Application struct {
	Config *Config
	Logger logging.Logger

	Hub      *notify.Hub
	Notifier notify.Notifier
	Client   webclient.WebClient
	API      *scanner.API
	History  *history.History
	Store    *store.Store

	// internal context for cancellation / lifecycle
	ctx    context.Context
	cancel context.CancelFunc
}

// NewApplication wires every service from cfg. A nil logger logs JSON to
// stdout at cfg.Log.Level.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewLogger(os.Stdout, "stockscan", cfg.Log.Level)
	}

	hub := notify.NewHub(logger)
	notifier := notify.WithDurations(notify.Multi{hub, notify.NewLogNotifier(logger)}, cfg.NotifyDurations())

	base, err := webclient.NewNetHTTPClient(cfg.WebClientConfig(), logger, nil)
	if err != nil {
		return nil, fmt.Errorf("creating webclient: %w", err)
	}
	client := webclient.Chain(base, webclient.Intercept(notifier, logger))
	api := scanner.NewAPI(client)

	downloadDir, err := expandPath(cfg.Storage.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("expanding download dir: %w", err)
	}

	var opts []store.Option
	var hist *history.History
	if cfg.Storage.HistoryDB != "" {
		hist, err = openHistory(cfg.Storage.HistoryDB, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		opts = append(opts, store.WithRecorder(hist))
	}

	st := store.New(api, store.NewDirDownloader(downloadDir), logger, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		Config:   cfg,
		Logger:   logger,
		Hub:      hub,
		Notifier: notifier,
		Client:   client,
		API:      api,
		History:  hist,
		Store:    st,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func openHistory(path string, logger logging.Logger) (*history.History, error) {
	if path != ":memory:" {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, fmt.Errorf("expanding history path: %w", err)
		}
		path = expanded
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logger.Warn("creating history directory", logging.Field{Key: "path", Value: path}, logging.Field{Key: "error", Value: err.Error()})
		}
	}
	hist, err := history.Open(path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return hist, nil
}

// NewServer builds the web front server on the application's services.
func (a *Application) NewServer() (*server.Server, error) {
	return server.NewServer(server.Config{
		ListenAddr: a.Config.Server.ListenAddr,
		BackendURL: a.Config.Server.BackendURL,
		Store:      a.Store,
		Hub:        a.Hub,
		Notifier:   a.Notifier,
		History:    a.History,
		Logger:     a.Logger,
	})
}

// Serve runs the web front server until ctx is canceled or Shutdown is
// called, then drains it.
func (a *Application) Serve(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	srv, err := a.NewServer()
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := srv.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server listening", logging.Field{Key: "addr", Value: httpSrv.Addr})
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	case <-a.ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("server shutdown", logging.Field{Key: "error", Value: err.Error()})
		return err
	}
	a.Logger.Info("server stopped")
	return nil
}

// Shutdown stops Serve and releases the client and history database.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	// cancel internal ctx to stop Serve
	a.cancel()

	var errs []error
	if a.Client != nil {
		if err := a.Client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing webclient: %w", err))
		}
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing history: %w", err))
		}
	}
	a.Hub.Close()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
