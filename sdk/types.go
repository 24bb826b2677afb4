package sdk

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"circles_go/internal/protocol/llrp"
	"circles_go/internal/reader"
	"circles_go/internal/tags"
)

const (
	DefaultRefreshInterval    = 500 * time.Millisecond
	DefaultLivenessMultiplier = 10
	DefaultConnectTimeout     = 5 * time.Second
	DefaultConfirmTimeout     = 5 * time.Second

	// ROSpecID is the id of the single inventory plan installed on the reader.
	ROSpecID uint32 = 1234

	pollInterval = 100 * time.Millisecond
	drainTimeout = 250 * time.Millisecond
)

// Reader is the control surface shared by the LLRP and mock backends.
type Reader interface {
	StartReading() error
	// StopReading halts the inventory. With await it blocks until the
	// device confirmed the stop; without it returns right after sending.
	StopReading(await bool) error
	Close() error
}

// Options tunes a reader backend. Zero values take the defaults.
type Options struct {
	Port               int
	RefreshInterval    time.Duration
	LivenessMultiplier int
	HistoryWindows     int
	ConnectTimeout     time.Duration
	ConfirmTimeout     time.Duration
	// ZebraDwell enables the vendor dwell-time extension when positive.
	ZebraDwell time.Duration
	Dial       reader.DialFunc
	Logger     *zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		Port:               llrp.DefaultPort,
		RefreshInterval:    DefaultRefreshInterval,
		LivenessMultiplier: DefaultLivenessMultiplier,
		HistoryWindows:     tags.DefaultHistoryWindows,
		ConnectTimeout:     DefaultConnectTimeout,
		ConfirmTimeout:     DefaultConfirmTimeout,
	}
}

func normalizeOptions(o Options) Options {
	d := DefaultOptions()
	if o.Port <= 0 {
		o.Port = d.Port
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = d.RefreshInterval
	}
	if o.LivenessMultiplier <= 0 {
		o.LivenessMultiplier = d.LivenessMultiplier
	}
	if o.HistoryWindows <= 0 {
		o.HistoryWindows = d.HistoryWindows
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = d.ConfirmTimeout
	}
	if o.ZebraDwell < 0 {
		o.ZebraDwell = 0
	}
	return o
}

// LivenessTimeout is how long the link may stay silent before it is lost.
func (o Options) LivenessTimeout() time.Duration {
	return time.Duration(o.LivenessMultiplier) * o.RefreshInterval
}

// StartTimeout bounds a whole session start: the dial plus the connection
// and configuration handshakes.
func (o Options) StartTimeout() time.Duration {
	return o.ConnectTimeout + 2*o.ConfirmTimeout
}

// KeepalivePeriod is the heartbeat requested from the reader.
func (o Options) KeepalivePeriod() time.Duration {
	return o.RefreshInterval / 2
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return log.Logger
}

func (o Options) transport() reader.Options {
	return reader.Options{
		Port:            o.Port,
		FallbackTimeout: o.ConnectTimeout,
		Dial:            o.Dial,
		Logger:          o.Logger,
	}
}
