package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"

	"circles_go/internal/hub"
	"circles_go/internal/tags"
	"circles_go/sdk"
)

type screen int

const (
	screenReader screen = iota
	screenTags
	screenLogs
	screenHelp
)

var screens = []struct {
	name   string
	screen screen
}{
	{name: "Reader", screen: screenReader},
	{name: "Tags", screen: screenTags},
	{name: "Logs", screen: screenLogs},
	{name: "Help", screen: screenHelp},
}

// Controller is what the TUI drives; *sdk.Controller satisfies it.
type Controller interface {
	StartReading(ctx context.Context, device string) (*sdk.Session, error)
	StopReading(await bool) error
	Current() *sdk.Session
	Mock() bool
}

type startFinishedMsg struct {
	Device  string
	Session *sdk.Session
	Err     error
}

type stopFinishedMsg struct {
	Await bool
	Err   error
}

type hubEventMsg struct {
	Event hub.Event
}

type hubClosedMsg struct{}

// Model is the app state.
type Model struct {
	ctrl           Controller
	events         <-chan hub.Event
	connectTimeout time.Duration

	activeScreen screen
	input        textinput.Model
	editing      bool

	session  *sdk.Session
	starting bool
	stopping bool

	tags         []tags.Tag
	lastSnapshot time.Time
	snapshots    int
	errs         []sdk.ErrorEvent

	status    string
	logs      []string
	logScroll int
	tagScroll int

	width  int
	height int
}

const (
	maxLogs   = 240
	maxErrors = 50
)
