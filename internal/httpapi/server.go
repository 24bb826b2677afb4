package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"circles_go/internal/hub"
	"circles_go/sdk"
)

// Controller is the slice of sdk.Controller the API drives.
type Controller interface {
	StartReading(ctx context.Context, device string) (*sdk.Session, error)
	StopReading(await bool) error
	Current() *sdk.Session
}

type Server struct {
	addr     string
	ctrl     Controller
	hub      *hub.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
	http     *http.Server

	startTimeout time.Duration
}

func New(addr string, ctrl Controller, h *hub.Hub, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		addr: addr,
		ctrl: ctrl,
		hub:  h,
		log:  logger.With().Str("component", "http").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		http: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		startTimeout: sdk.DefaultOptions().StartTimeout(),
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/reading/start", s.handleStart)
	mux.HandleFunc("/reading/stop", s.handleStop)
	mux.HandleFunc("/ws", s.handleWS)
	return s
}

// SetStartTimeout bounds each /reading/start call.
func (s *Server) SetStartTimeout(d time.Duration) {
	if d > 0 {
		s.startTimeout = d
	}
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("http listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "circles-reader",
		"reading": s.ctrl.Current() != nil,
	})
}

type snapshotResponse struct {
	OK       bool               `json:"ok"`
	Session  *sdk.Session       `json:"session,omitempty"`
	Snapshot *sdk.SnapshotEvent `json:"snapshot,omitempty"`
	Errors   []sdk.ErrorEvent   `json:"errors,omitempty"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}
	resp := snapshotResponse{OK: true, Session: s.ctrl.Current(), Errors: s.hub.RecentErrors()}
	if snap, ok := s.hub.Latest(); ok {
		resp.Snapshot = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}

	var payload struct {
		Device string `json:"device"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json"})
		return
	}

	s.hub.Reset()
	ctx, cancel := context.WithTimeout(r.Context(), s.startTimeout)
	defer cancel()
	session, err := s.ctrl.StartReading(ctx, strings.TrimSpace(payload.Device))
	if err != nil {
		re := sdk.AsReaderError(err)
		s.log.Warn().Err(err).Str("device", payload.Device).Msg("start reading failed")
		writeJSON(w, statusFor(re), map[string]any{"ok": false, "kind": re.KindString(), "error": re.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session": session})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}

	var payload struct {
		Await bool `json:"await"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json"})
			return
		}
	}

	if err := s.ctrl.StopReading(payload.Await); err != nil {
		re := sdk.AsReaderError(err)
		writeJSON(w, statusFor(re), map[string]any{"ok": false, "kind": re.KindString(), "error": re.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleWS streams hub events as JSON text frames until the client leaves.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := s.hub.Subscribe(hub.DefaultBuffer)
	defer s.hub.Unsubscribe(events)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if snap, ok := s.hub.Latest(); ok {
		if err := writeEvent(conn, hub.Event{Name: sdk.EventUpdatedTags, Snapshot: &snap}); err != nil {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Debug().Err(err).Msg("websocket write failed")
				}
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev hub.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(ev)
}

func statusFor(re *sdk.ReaderError) int {
	switch re.Kind {
	case sdk.KindIncorrectHostname:
		return http.StatusBadRequest
	case sdk.KindCouldNotConnect, sdk.KindLostConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
