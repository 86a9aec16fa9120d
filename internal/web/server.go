// Package web provides an HTTP status and port control server for the poed daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/sweeney/poe-sio/internal/poe"
	"github.com/sweeney/poe-sio/internal/status"
)

// PortController reads and switches PoE ports.
type PortController interface {
	Ports() []int
	PortState(port int) (poe.State, error)
	SetPortState(port int, state poe.State) error
}

// Server serves the status page and port endpoints over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ports      PortController
	log        *logrus.Logger
}

// New creates a Server that reads state from the given tracker and switches
// ports through ports.
func New(addr string, tracker *status.Tracker, ports PortController, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{tracker: tracker, ports: ports, log: log}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       time.Second * 15,
		ReadHeaderTimeout: time.Second * 15,
		IdleTimeout:       time.Second * 30,
		MaxHeaderBytes:    4096,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := httprouter.New()

	mux.HandlerFunc(http.MethodGet, "/", s.handleIndex)
	mux.HandlerFunc(http.MethodGet, "/index.html", s.handleIndex)
	mux.HandlerFunc(http.MethodGet, "/index.json", s.handleJSON)

	mux.HandlerFunc(http.MethodGet, "/ports", s.listPorts)
	mux.HandlerFunc(http.MethodGet, "/ports/:port", s.getPort)
	mux.HandlerFunc(http.MethodPut, "/ports/:port", s.putPort)

	return mux
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("serving http")
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.WithError(err).Warn("render status page")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
