package main

import (
	"context"
	"net"
	"net/http"

	"github.com/segyhp/loan-tracker/internal/config"
)

// newServer builds the HTTP server. Request contexts derive from a base
// context that is cancelled as soon as Shutdown starts, so long-lived event
// streams end instead of holding shutdown open.
func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	base, cancel := context.WithCancel(context.Background())

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return base },
	}
	server.RegisterOnShutdown(cancel)
	return server
}
