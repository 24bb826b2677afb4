package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"circles_go/internal/hub"
	"circles_go/sdk"
)

// Commands understood by the control socket.
const (
	CmdStart    = "start"
	CmdStop     = "stop"
	CmdStatus   = "status"
	CmdSnapshot = "snapshot"
)

// Controller is the slice of sdk.Controller the socket drives.
type Controller interface {
	StartReading(ctx context.Context, device string) (*sdk.Session, error)
	StopReading(await bool) error
	Current() *sdk.Session
}

type Request struct {
	Type   string `cbor:"type"`
	Device string `cbor:"device,omitempty"`
	Await  bool   `cbor:"await,omitempty"`
}

type Response struct {
	OK       bool               `cbor:"ok"`
	Action   string             `cbor:"action,omitempty"`
	Kind     string             `cbor:"kind,omitempty"`
	Error    string             `cbor:"error,omitempty"`
	Reading  bool               `cbor:"reading"`
	Session  *sdk.Session       `cbor:"session,omitempty"`
	Snapshot *sdk.SnapshotEvent `cbor:"snapshot,omitempty"`
	Errors   []sdk.ErrorEvent   `cbor:"errors,omitempty"`
}

type Server struct {
	socketPath string
	ctrl       Controller
	hub        *hub.Hub
	log        zerolog.Logger

	startTimeout time.Duration
}

func New(socketPath string, ctrl Controller, h *hub.Hub, logger zerolog.Logger) *Server {
	return &Server{
		socketPath: strings.TrimSpace(socketPath),
		ctrl:       ctrl,
		hub:        h,
		log:        logger.With().Str("component", "ipc").Logger(),

		startTimeout: sdk.DefaultOptions().StartTimeout(),
	}
}

// SetStartTimeout bounds each start request; keep it below the client's
// request timeout.
func (s *Server) SetStartTimeout(d time.Duration) {
	if d > 0 {
		s.startTimeout = d
	}
}

// Run listens until ctx is cancelled. An empty socket path disables it.
func (s *Server) Run(ctx context.Context) error {
	if s.socketPath == "" || s.ctrl == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return err
	}
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = ln.Close()
		_ = os.Remove(s.socketPath)
	}()
	_ = os.Chmod(s.socketPath, 0o666)
	s.log.Info().Str("socket", s.socketPath).Msg("ipc listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			time.Sleep(100 * time.Millisecond)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		var req Request
		if err := readFrame(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug().Err(err).Msg("ipc read failed")
				_ = writeFrame(conn, Response{OK: false, Error: "invalid frame"})
			}
			return
		}
		if err := writeFrame(conn, s.handleRequest(ctx, req)); err != nil {
			s.log.Debug().Err(err).Msg("ipc write failed")
			return
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	typ := strings.ToLower(strings.TrimSpace(req.Type))

	switch typ {
	case CmdStatus:
		return s.status(typ)

	case CmdSnapshot:
		resp := s.status(typ)
		if snap, ok := s.hub.Latest(); ok {
			resp.Snapshot = &snap
		}
		resp.Errors = s.hub.RecentErrors()
		return resp

	case CmdStart:
		s.hub.Reset()
		startCtx, cancel := context.WithTimeout(ctx, s.startTimeout)
		session, err := s.ctrl.StartReading(startCtx, strings.TrimSpace(req.Device))
		cancel()
		if err != nil {
			return failure(typ, err)
		}
		return Response{OK: true, Action: typ, Reading: true, Session: session}

	case CmdStop:
		if err := s.ctrl.StopReading(req.Await); err != nil {
			return failure(typ, err)
		}
		return s.status(typ)
	}

	return Response{
		OK:    false,
		Error: fmt.Sprintf("unsupported type: %s", req.Type),
	}
}

func (s *Server) status(action string) Response {
	session := s.ctrl.Current()
	return Response{OK: true, Action: action, Reading: session != nil, Session: session}
}

func failure(action string, err error) Response {
	re := sdk.AsReaderError(err)
	return Response{OK: false, Action: action, Kind: re.KindString(), Error: re.Error()}
}
