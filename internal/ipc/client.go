package ipc

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Call sends one request over the control socket and waits for the reply.
// The deadline comes from ctx, or timeout when ctx has none.
func Call(ctx context.Context, socketPath string, req Request, timeout time.Duration) (Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return Response{}, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(timeout)
	}
	_ = conn.SetDeadline(deadline)

	if err := writeFrame(conn, req); err != nil {
		return Response{}, fmt.Errorf("send %s: %w", req.Type, err)
	}
	var resp Response
	if err := readFrame(conn, &resp); err != nil {
		return Response{}, fmt.Errorf("read %s reply: %w", req.Type, err)
	}
	return resp, nil
}

// Ping reports whether a server answers on socketPath.
func Ping(socketPath string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	resp, err := Call(ctx, socketPath, Request{Type: CmdStatus}, timeout)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("status failed: %s", resp.Error)
	}
	return nil
}
