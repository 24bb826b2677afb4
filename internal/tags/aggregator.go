package tags

// DefaultHistoryWindows is how many finalized windows stay visible.
const DefaultHistoryWindows = 15

// Aggregator turns a raw detection stream into smoothed snapshots. A tag seen
// in any of the last N windows stays in the emitted snapshot.
// It is not safe for concurrent use; one session goroutine owns it.
type Aggregator struct {
	window  TagsMap
	history []TagsMap
	size    int
	next    int
}

func NewAggregator(windows int) *Aggregator {
	if windows <= 0 {
		windows = DefaultHistoryWindows
	}
	return &Aggregator{
		window:  make(TagsMap),
		history: make([]TagsMap, 0, windows),
		size:    windows,
	}
}

func (a *Aggregator) Merge(t Tag) {
	a.window.Add(t)
}

// Finalize closes the current window, evicting the oldest one when the ring
// is full, and returns a fresh strongest-wins map over all retained windows.
func (a *Aggregator) Finalize() TagsMap {
	closed := a.window
	a.window = make(TagsMap)
	if len(a.history) < a.size {
		a.history = append(a.history, closed)
	} else {
		a.history[a.next] = closed
	}
	a.next = (a.next + 1) % a.size
	return Merge(a.history...)
}

// Window returns a copy of the open window.
func (a *Aggregator) Window() TagsMap {
	return a.window.Clone()
}

func (a *Aggregator) HistoryLen() int {
	return len(a.history)
}
