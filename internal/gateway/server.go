// Package gateway exposes the run scheduler over HTTP and WebSocket: submit
// a message, get a run id back, and optionally watch the run's event stream
// live.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mfelder/turnstile/internal/agent"
	"github.com/mfelder/turnstile/internal/config"
	"github.com/mfelder/turnstile/internal/domain"
	"github.com/mfelder/turnstile/internal/logging"
	"github.com/mfelder/turnstile/internal/runtime"
	"github.com/mfelder/turnstile/internal/store"
	"github.com/mfelder/turnstile/internal/version"
)

// defaultWaitTimeout applies when a wait request omits timeoutMs.
const defaultWaitTimeout = 30 * time.Second

// Server is the turnstile gateway HTTP + WebSocket server.
type Server struct {
	cfg       config.GatewayConfig
	agentID   string
	scheduler *runtime.Scheduler
	repo      store.SessionRepository
	log       *logging.Logger

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a gateway server around the scheduler and repository.
func New(cfg config.GatewayConfig, agentID string, scheduler *runtime.Scheduler, repo store.SessionRepository, log *logging.Logger) *Server {
	return &Server{
		cfg:       cfg,
		agentID:   agentID,
		scheduler: scheduler,
		repo:      repo,
		log:       log.Sub("gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Loopback-only deployment; browser origins are not enforced.
				return true
			},
		},
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening. It blocks until the context is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/message", s.handleMessage)
	mux.HandleFunc("POST /api/wait", s.handleWait)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /ws/chat", s.handleChat)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.log.Info().Str("addr", ln.Addr().String()).Str("bind", s.cfg.Bind).Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleMessage accepts an inbound message and schedules its run.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	key, err := s.sessionKey(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	handle := s.scheduler.Start(agent.Request{Key: key, Text: req.Text})

	// The HTTP caller gets the run id; the event stream is drained so the
	// bounded channel never blocks the run.
	go func() {
		for range handle.Events {
		}
	}()

	s.log.Debug().Str("runId", handle.RunID).Str("key", key.String()).Msg("message accepted")
	writeJSON(w, http.StatusAccepted, MessageResponse{RunID: handle.RunID, AcceptedAt: handle.AcceptedAt})
}

// handleWait blocks for a run result up to the requested timeout.
func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID     string `json:"runId"`
		TimeoutMS int    `json:"timeoutMs,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RunID == "" {
		writeError(w, http.StatusBadRequest, "runId is required")
		return
	}

	timeout := defaultWaitTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}

	result := s.scheduler.Wait(req.RunID, timeout)
	writeJSON(w, http.StatusOK, WaitResponse{RunID: result.RunID, Status: string(result.Status), Message: result.Message})
}

// handleSessions returns the session index.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	entries, err := s.repo.ListAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []store.SessionIndexEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleStatus reports basic server state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    version.Version,
		"uptimeSec":  int(time.Since(s.startedAt).Seconds()),
		"activeRuns": s.scheduler.Active(),
	})
}

// handleChat upgrades to WebSocket: the client sends one MessageRequest and
// receives the run's event frames until the run ends.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var req MessageRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.log.Warn().Err(err).Msg("failed to read chat request")
		return
	}

	key, err := s.sessionKey(req)
	if err != nil {
		conn.WriteJSON(ErrorResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		conn.WriteJSON(ErrorResponse{Error: "text is required"})
		return
	}

	handle := s.scheduler.Start(agent.Request{Key: key, Text: req.Text})
	s.log.Debug().Str("runId", handle.RunID).Msg("chat run started")

	for ev := range handle.Events {
		frame, ok := frameFor(ev)
		if !ok {
			continue
		}
		if err := conn.WriteJSON(frame); err != nil {
			s.log.Debug().Err(err).Str("runId", handle.RunID).Msg("chat client gone; draining run")
			for range handle.Events {
			}
			return
		}
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run complete"))
}

// sessionKey builds and validates the session key for a request.
func (s *Server) sessionKey(req MessageRequest) (domain.SessionKey, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = s.agentID
	}
	channel := req.Channel
	if channel == "" {
		channel = "gateway"
	}
	peerType := req.PeerType
	if peerType == "" {
		peerType = string(domain.PeerDM)
	}
	key := domain.SessionKey{
		AgentID:  agentID,
		Channel:  channel,
		PeerType: domain.PeerType(peerType),
		PeerID:   req.PeerID,
		ThreadID: req.ThreadID,
	}
	if err := key.Validate(); err != nil {
		return domain.SessionKey{}, err
	}
	return key, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
