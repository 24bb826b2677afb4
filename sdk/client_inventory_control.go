package sdk

import (
	"context"
	"time"

	"circles_go/internal/protocol/llrp"
	"circles_go/internal/reader"
)

// StartReading starts the inventory plan and spawns the dispatch loop. A
// running session is stopped first; failing to stop it is only logged.
func (r *LLRPReader) StartReading() error {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	r.mu.Lock()
	closed := r.closed
	active := r.session != nil
	r.mu.Unlock()
	if closed {
		return unknownError(reader.ErrClosed, "start reading")
	}
	if active {
		if err := r.stop(true); err != nil {
			r.log.Warn().Err(err).Msg("stopping previous session failed")
		}
	}

	r.joinDraining()

	if _, err := r.conn.Send(&llrp.StartROSpec{ROSpecID: ROSpecID}); err != nil {
		return unknownError(err, "start rospec")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &dispatchSession{
		cancel:  cancel,
		done:    make(chan struct{}),
		stopAck: make(chan llrp.LLRPStatus, 1),
	}
	r.mu.Lock()
	r.session = s
	r.mu.Unlock()

	go r.dispatch(ctx, s)
	r.log.Info().Msg("reading started")
	return nil
}

// StopReading sends StopROSpec. With await the device confirmation is
// received before the dispatch loop is torn down, bounded by ConfirmTimeout.
func (r *LLRPReader) StopReading(await bool) error {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	return r.stop(await)
}

func (r *LLRPReader) stop(await bool) error {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.mu.Unlock()

	id := r.conn.NextID()
	if s != nil {
		s.pendingStop.Store(id)
	}
	if err := r.conn.SendWithID(id, &llrp.StopROSpec{ROSpecID: ROSpecID}); err != nil {
		if s != nil {
			s.cancel()
			<-s.done
		}
		return unknownError(err, "stop rospec")
	}

	if !await {
		if s != nil {
			s.cancel()
			r.draining = s.done
		}
		r.log.Info().Msg("reading stopped")
		return nil
	}

	var (
		status llrp.LLRPStatus
		err    error
	)
	if s != nil {
		status, err = r.awaitStopAck(s, id)
		s.cancel()
		<-s.done
	} else {
		status, err = r.awaitStopDirect(id, r.opts.ConfirmTimeout)
	}
	if err != nil {
		return err
	}
	if !status.Success() {
		return &ReaderError{Kind: KindUnknown, Device: r.device, Message: "STOP_ROSPEC failed with " + status.String()}
	}
	r.log.Info().Msg("reading stopped, confirmed by reader")
	return nil
}

// joinDraining waits briefly for a loop cancelled by StopReading(false), so
// it cannot take inbox frames meant for the next session.
func (r *LLRPReader) joinDraining() {
	if r.draining == nil {
		return
	}
	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case <-r.draining:
	case <-timer.C:
		r.log.Warn().Msg("previous dispatch loop still running")
	}
	r.draining = nil
}

// awaitStopAck waits for the dispatch loop to hand over the confirmation.
// If the loop already exited the inbox is read directly.
func (r *LLRPReader) awaitStopAck(s *dispatchSession, id uint32) (llrp.LLRPStatus, error) {
	deadline := time.Now().Add(r.opts.ConfirmTimeout)
	timer := time.NewTimer(r.opts.ConfirmTimeout)
	defer timer.Stop()

	select {
	case status := <-s.stopAck:
		return status, nil
	case <-s.done:
		select {
		case status := <-s.stopAck:
			return status, nil
		default:
		}
		return r.awaitStopDirect(id, time.Until(deadline))
	case <-timer.C:
		return llrp.LLRPStatus{}, &ReaderError{
			Kind:    KindUnknown,
			Device:  r.device,
			Message: "no STOP_ROSPEC_RESPONSE within " + r.opts.ConfirmTimeout.String(),
		}
	}
}

func (r *LLRPReader) awaitStopDirect(id uint32, timeout time.Duration) (llrp.LLRPStatus, error) {
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	resp, err := awaitBody(ctx, r, func(_ *llrp.StopROSpecResponse, got uint32) bool {
		return got == id
	})
	if err != nil {
		return llrp.LLRPStatus{}, err
	}
	return resp.Status, nil
}
