package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/wifiprov/internal/dispatch"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/wifi"
	"go.uber.org/zap"
)

// DefaultWaitTimeout bounds POST /api/test?wait=true.
const DefaultWaitTimeout = 5 * time.Minute

// Provisioner is the controller surface exposed over HTTP.
type Provisioner interface {
	Test(cb provision.CompletionFunc) error
	TestWithCredentials(ssid, pass string, cb provision.CompletionFunc) error
	ConnectSTA() error
	DisconnectSTA() error
	CopyCandidateToActive() error
	ClearCandidate() error
	EnableBootTest() error
	DisableBootTest() error
	IsTestRunning() bool
	LastTestResult() provision.Result
	Status() provision.Status
}

// EventSource is where station events for the stream come from.
type EventSource interface {
	Subscribe(fn func(wifi.Event)) *dispatch.Subscription
	Unsubscribe(sub *dispatch.Subscription) bool
}

// Config holds the server configuration
type Config struct {
	Addr        string
	Provisioner Provisioner
	Events      EventSource   // optional; without it the stream carries results only
	WaitTimeout time.Duration // defaults to DefaultWaitTimeout
}

// Server serves the agent's HTTP API.
type Server struct {
	config   Config
	prov     Provisioner
	hub      *Hub
	upgrader websocket.Upgrader
	sub      *dispatch.Subscription
	mux      *http.ServeMux

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
}

// New creates a Server and subscribes its stream to cfg.Events.
func New(cfg Config) (*Server, error) {
	if cfg.Provisioner == nil {
		return nil, errors.New("api: Provisioner is required")
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}

	s := &Server{
		config: cfg,
		prov:   cfg.Provisioner,
		hub:    NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if cfg.Events != nil {
		s.sub = cfg.Events.Subscribe(s.hub.PublishEvent)
	}
	s.routes()
	return s, nil
}

// Hub returns the stream fan-out; wire PublishResult to the controller's
// OnResult.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the API handler with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

func (s *Server) routes() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/result", s.handleResult)
	mux.HandleFunc("POST /api/test", s.handleTest)
	mux.HandleFunc("POST /api/sta/connect", s.action("connect", s.prov.ConnectSTA))
	mux.HandleFunc("POST /api/sta/disconnect", s.action("disconnect", s.prov.DisconnectSTA))
	mux.HandleFunc("POST /api/sta/copy", s.action("copy", s.prov.CopyCandidateToActive))
	mux.HandleFunc("POST /api/sta/clear", s.action("clear", s.prov.ClearCandidate))
	mux.HandleFunc("POST /api/boot/enable", s.action("boot-enable", s.prov.EnableBootTest))
	mux.HandleFunc("POST /api/boot/disable", s.action("boot-disable", s.prov.DisableBootTest))
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	s.mux = mux
}

// Start listens on the configured address and serves until ctx is
// cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.listener = listener
	s.mu.Unlock()

	logging.Info("API server listening", zap.String("addr", listener.Addr().String()))

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the bound listener address once Start is running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops the server, closes stream clients and drops the event
// subscription.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")

	if s.sub != nil {
		s.config.Events.Unsubscribe(s.sub)
	}
	s.hub.Close()

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("API shutdown timeout, forcing close", zap.Error(err))
		return srv.Close()
	}
	return nil
}

// TestRequest is the body of POST /api/test. Both fields are optional; an
// SSID replaces the stored candidate credentials first.
type TestRequest struct {
	SSID string `json:"ssid,omitempty"`
	Pass string `json:"pass,omitempty"`
}

// TestResponse is returned by POST /api/test.
type TestResponse struct {
	Started bool              `json:"started"`
	Result  *provision.Result `json:"result,omitempty"`
}

// ActionResponse is returned by the station and boot actions.
type ActionResponse struct {
	OK     bool   `json:"ok"`
	Action string `json:"action"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.prov.Status())
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.prov.LastTestResult())
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var req TestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}
	wait := r.URL.Query().Get("wait") == "true"

	done := make(chan provision.Result, 1)
	cb := func(res provision.Result) { done <- res }

	var err error
	if req.SSID != "" {
		logging.Info("Test requested with credentials",
			zap.String("ssid", req.SSID),
			zap.String("pass", logging.Redact(req.Pass)),
		)
		err = s.prov.TestWithCredentials(req.SSID, req.Pass, cb)
	} else {
		err = s.prov.Test(cb)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.PublishStatus(s.prov.Status())

	if !wait {
		writeJSON(w, http.StatusAccepted, TestResponse{Started: true})
		return
	}

	timer := time.NewTimer(s.config.WaitTimeout)
	defer timer.Stop()
	select {
	case res := <-done:
		writeJSON(w, http.StatusOK, TestResponse{Started: true, Result: &res})
	case <-timer.C:
		writeJSON(w, http.StatusAccepted, TestResponse{Started: true})
	case <-r.Context().Done():
	}
}

func (s *Server) action(name string, fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			writeError(w, err)
			return
		}
		s.hub.PublishStatus(s.prov.Status())
		writeJSON(w, http.StatusOK, ActionResponse{OK: true, Action: name})
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		logging.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	st := s.prov.Status()
	s.hub.serve(conn, r.RemoteAddr, Message{Type: MessageHello, Time: time.Now(), Status: &st})
}

// statusForError maps controller errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case provision.IsConcurrentStart(err):
		return http.StatusConflict
	case provision.IsConfigurationError(err):
		return http.StatusBadRequest
	case provision.IsDriverError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var perr *provision.Error
	if errors.As(err, &perr) {
		resp.Type = perr.Type.String()
	}
	writeJSON(w, statusForError(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not implement http.Hijacker")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
	})
}
