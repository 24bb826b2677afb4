package sdk

import (
	"context"
	"sync/atomic"
	"time"

	"circles_go/internal/protocol/llrp"
	"circles_go/internal/reader"
	"circles_go/internal/tags"
)

// dispatchSession is one StartReading..StopReading lifetime.
type dispatchSession struct {
	cancel      context.CancelFunc
	done        chan struct{}
	stopAck     chan llrp.LLRPStatus
	pendingStop atomic.Uint32
}

// dispatch consumes the inbox. It wakes at least every pollInterval so the
// snapshot and liveness checks run even when the reader is silent.
func (r *LLRPReader) dispatch(ctx context.Context, s *dispatchSession) {
	defer close(s.done)

	agg := tags.NewAggregator(r.opts.HistoryWindows)
	refresh := r.opts.RefreshInterval
	liveness := r.opts.LivenessTimeout()
	lastEmit := time.Now()
	lastSeen := lastEmit

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	inbox := r.conn.Inbox()

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-inbox:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				r.log.Warn().Err(r.conn.Err()).Msg("connection closed by reader")
				r.endSession(s)
				r.sink.EmitError(NewErrorEvent("", &ReaderError{Kind: KindLostConnection, Device: r.device, Err: r.conn.Err()}))
				return
			}
			alive, err := r.handleFrame(f, agg, s)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.log.Error().Err(err).Msg("dispatch stopped")
				r.endSession(s)
				r.sink.EmitError(NewErrorEvent("", err))
				return
			}
			if alive {
				lastSeen = time.Now()
			}
		case <-ticker.C:
		}

		now := time.Now()
		if now.Sub(lastEmit) >= refresh {
			r.sink.EmitSnapshot(SnapshotEvent{When: now, Tags: agg.Finalize()})
			lastEmit = now
		}
		if now.Sub(lastSeen) > liveness {
			r.log.Warn().Dur("silence", now.Sub(lastSeen)).Msg("liveness timeout")
			r.endSession(s)
			r.sink.EmitError(NewErrorEvent("", &ReaderError{Kind: KindLostConnection, Device: r.device}))
			return
		}
	}
}

// endSession returns the reader to idle when the loop gives up on s. A
// session already replaced by StopReading is left alone.
func (r *LLRPReader) endSession(s *dispatchSession) {
	r.mu.Lock()
	if r.session == s {
		r.session = nil
	}
	r.mu.Unlock()
}

// handleFrame reports whether f counts as a sign of life.
func (r *LLRPReader) handleFrame(f reader.Frame, agg *tags.Aggregator, s *dispatchSession) (bool, error) {
	switch b := f.Body.(type) {
	case *llrp.ROAccessReport:
		for _, td := range b.Tags {
			tag, err := tags.FromReport(td.EPC, td.AntennaID, td.PeakRSSI)
			if err != nil {
				r.log.Debug().Err(err).Msg("ignoring tag report")
				continue
			}
			agg.Merge(tag)
		}
		return true, nil
	case *llrp.Keepalive:
		if err := r.ackKeepalive(f.Message.ID); err != nil {
			return false, unknownError(err, "keepalive ack")
		}
		return true, nil
	case *llrp.StopROSpecResponse:
		if f.Message.ID != s.pendingStop.Load() {
			r.log.Debug().Uint32("id", f.Message.ID).Msg("stale stop confirmation")
			return false, nil
		}
		select {
		case s.stopAck <- b.Status:
		default:
		}
		return false, nil
	case *llrp.StartROSpecResponse:
		if !b.Status.Success() {
			r.log.Warn().Stringer("status", b.Status).Msg("reader rejected START_ROSPEC")
		}
		return false, nil
	default:
		r.log.Debug().Stringer("type", f.Message.Type).Msg("ignoring frame")
		return false, nil
	}
}
