// Package web serves the senseo-control status page and its JSON twin.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/senseo-control/internal/status"
)

// Source provides the daemon state to render. *status.Tracker implements it.
type Source interface {
	Snapshot() status.Snapshot
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	source     Source
}

// New creates a Server that renders snapshots taken from source.
func New(addr string, source Source) *Server {
	s := &Server{source: source}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.readOnly(s.handleIndex))
	mux.HandleFunc("/index.html", s.readOnly(s.handleIndex))
	mux.HandleFunc("/index.json", s.readOnly(s.handleJSON))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// readOnly rejects anything but GET and HEAD. Machine state changes only
// through the buttons.
func (s *Server) readOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		h(w, r)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.source.Snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.source.Snapshot()))
}
