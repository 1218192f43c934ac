package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type debouncer struct {
	delay  time.Duration
	events map[string]ChangeEvent
	timer  *time.Timer
	mutex  sync.Mutex
	logger *slog.Logger
	closed bool
}

func newDebouncer(delay time.Duration, logger *slog.Logger) *debouncer {
	return &debouncer{
		delay:  delay,
		events: make(map[string]ChangeEvent),
		logger: logger,
	}
}

// add records event and restarts the quiet period. handler runs once the
// period passes without further events.
func (d *debouncer) add(event ChangeEvent, handler Handler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return
	}
	d.events[event.Path] = event
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.flush(handler)
	})
}

func (d *debouncer) flush(handler Handler) {
	d.mutex.Lock()
	if len(d.events) == 0 || d.closed {
		d.mutex.Unlock()
		return
	}
	changed := make([]string, 0, len(d.events))
	for path := range d.events {
		changed = append(changed, path)
	}
	d.events = make(map[string]ChangeEvent)
	d.mutex.Unlock()

	sort.Strings(changed)
	if err := handler(changed); err != nil {
		d.logger.Error("change handler failed", "files", len(changed), "error", err)
	}
}

func (d *debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.closed = true
}
