package sdk

import (
	"context"
	"fmt"

	"circles_go/internal/protocol/llrp"
)

// handshake waits for the ReaderEventNotification reporting a successful
// connection attempt, then flushes whatever a prior session left buffered.
func (r *LLRPReader) handshake(ctx context.Context) error {
	// The reader may report errors before it accepts the connection; those
	// are retried like any other frame.
	_, err := waitFor(ctx, r, false, func(n *llrp.ReaderEventNotification, _ uint32) bool {
		ca := n.Data.ConnectionAttempt
		if ca == nil {
			return false
		}
		if ca.Status != llrp.ConnectionSuccess {
			r.log.Warn().Uint16("status", uint16(ca.Status)).Msg("connection attempt not accepted yet")
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	_ = r.conn.Flush()
	return nil
}

// awaitBody reads frames until one of type T passes match, which also sees
// the message id. Keepalives are answered, an ERROR_MESSAGE fails the wait
// and other frames are skipped.
func awaitBody[T llrp.Body](ctx context.Context, r *LLRPReader, match func(T, uint32) bool) (T, error) {
	return waitFor(ctx, r, true, match)
}

func waitFor[T llrp.Body](ctx context.Context, r *LLRPReader, failOnError bool, match func(T, uint32) bool) (T, error) {
	var zero T
	for {
		select {
		case <-ctx.Done():
			return zero, unknownError(ctx.Err(), "waiting for %T", zero)
		case f, ok := <-r.conn.Inbox():
			if !ok {
				return zero, unknownError(r.conn.Err(), "connection closed while waiting for %T", zero)
			}
			if want, ok := f.Body.(T); ok {
				if match == nil || match(want, f.Message.ID) {
					return want, nil
				}
				continue
			}
			switch b := f.Body.(type) {
			case *llrp.Keepalive:
				if err := r.ackKeepalive(f.Message.ID); err != nil {
					return zero, unknownError(err, "keepalive ack")
				}
			case *llrp.ErrorMessage:
				if failOnError {
					return zero, unknownError(nil, "reader error message: %s", b.Status)
				}
				r.log.Warn().Stringer("status", b.Status).Msg("reader error message, still waiting")
			default:
				r.log.Debug().Stringer("type", f.Message.Type).Msg("skipping frame")
			}
		}
	}
}

// exchange sends req and waits for the response of type T, which must
// carry a success status.
func exchange[T llrp.StatusResponse](ctx context.Context, r *LLRPReader, req llrp.Body) (T, error) {
	var zero T
	if _, err := r.conn.Send(req); err != nil {
		return zero, unknownError(err, "send %s", req.Type())
	}
	resp, err := awaitBody[T](ctx, r, nil)
	if err != nil {
		return zero, err
	}
	if status := resp.Result(); !status.Success() {
		return zero, &ReaderError{
			Kind:    KindUnknown,
			Device:  r.device,
			Message: fmt.Sprintf("%s failed with %s: %+v", req.Type(), status, resp),
		}
	}
	return resp, nil
}

func (r *LLRPReader) ackKeepalive(id uint32) error {
	return r.conn.SendWithID(id, &llrp.KeepaliveAck{})
}

// Close stops reading without waiting, says goodbye and closes the socket.
// Errors are logged, never returned.
func (r *LLRPReader) Close() error {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.stop(false); err != nil {
		r.log.Debug().Err(err).Msg("stop on close")
	}
	if _, err := r.conn.Send(&llrp.CloseConnection{}); err != nil {
		r.log.Debug().Err(err).Msg("close connection request")
	}
	if err := r.conn.Close(); err != nil {
		r.log.Debug().Err(err).Msg("socket close")
	}
	r.log.Info().Msg("reader closed")
	return nil
}
