// Package httpserver builds the carnet HTTP server. Timeouts are sized for a
// small CRUD API whose largest requests are whole-file CSV uploads carrying
// inline avatar payloads.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with the project's timeout defaults.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// CSV imports arrive as one multipart body, so reads get more room
		// than a JSON API would need.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
