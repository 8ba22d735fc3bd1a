package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/franckalain/nutriscan/internal/logger"
	"github.com/franckalain/nutriscan/internal/models"
	"github.com/franckalain/nutriscan/internal/scan"
	"github.com/franckalain/nutriscan/internal/scanner"
)

const shutdownTimeout = 10 * time.Second

// Server serves product lookups and one scan session per websocket client.
type Server struct {
	lookup   scan.Lookup
	scanners scanner.ScannerFactory
	log      logger.ILogger
	sessions sync.Map
	upgrader websocket.Upgrader
	debug    bool
}

// New creates a server. With debug set, protocol errors sent to clients carry
// the underlying parse error.
func New(lookup scan.Lookup, scanners scanner.ScannerFactory, log logger.ILogger, debug bool) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if debug {
		log.Debug("server", "debug logging enabled", nil)
	}
	return &Server{
		lookup:   lookup,
		scanners: scanners,
		log:      log,
		debug:    debug,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The app shell is served from a native webview origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP routes. Static files are served from staticDir when
// it is not empty.
func (s *Server) Router(staticDir string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{barcode}", s.handleProduct).Methods(http.MethodGet)
	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return r
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start(port, staticDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx, ":"+port, staticDir)
}

// Serve listens on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr, staticDir string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(staticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server", "starting server", map[string]interface{}{"addr": addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("server", "shutting down server", nil)
	s.closeSessions()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleProduct answers every lookup outcome with 200; the result's status
// field says which outcome it is.
func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(mux.Vars(r)["barcode"])
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing barcode"})
		return
	}

	result := s.lookup.Lookup(r.Context(), models.Barcode(code))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("server", "websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	sess := newSession(conn, s.log, s.debug)
	sess.controller = scan.NewController(
		s.scanners.CreateScanner(sess),
		s.lookup,
		scan.WithListener(sess.publish),
		scan.WithLogger(s.log),
	)

	s.sessions.Store(sess.id, sess)
	defer s.sessions.Delete(sess.id)

	s.log.Info("server", "client connected", map[string]interface{}{"session": sess.id})
	sess.run()
	s.log.Info("server", "client disconnected", map[string]interface{}{"session": sess.id})
}

func (s *Server) closeSessions() {
	s.sessions.Range(func(_, value any) bool {
		value.(*session).close()
		return true
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
