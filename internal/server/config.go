package server

import (
	"github.com/raysh454/stockscan/internal/history"
	"github.com/raysh454/stockscan/internal/logging"
	"github.com/raysh454/stockscan/internal/notify"
	"github.com/raysh454/stockscan/internal/store"
)

type Config struct {
	// ListenAddr is the HTTP listen address of the front server.
	ListenAddr string

	// BackendURL is the origin /api/* is proxied to. Empty disables the proxy.
	BackendURL string

	// Store is the session state the view renders. Required.
	Store *store.Store

	// Hub streams notifications to the view. Optional.
	Hub *notify.Hub

	// Notifier receives notifications raised by the server itself (form
	// validation). Defaults to Hub when nil.
	Notifier notify.Notifier

	// History backs GET /history. Optional.
	History *history.History

	Logger logging.Logger
}
