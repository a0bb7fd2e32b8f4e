package ik

import (
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceInterval = 30 * time.Millisecond

// debouncer collects events until none have arrived for the interval, then
// hands the batch to callback on its own goroutine.
type debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	events   []fsnotify.Event
	callback func([]fsnotify.Event)
}

func newDebouncer(interval time.Duration, callback func([]fsnotify.Event)) *debouncer {
	return &debouncer{interval: interval, callback: callback}
}

func (d *debouncer) addEvent(evt fsnotify.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	events := d.events
	d.events = nil
	d.mu.Unlock()
	if len(events) > 0 {
		d.callback(events)
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.events = nil
}

// mergeEvents folds a batch into one event per file, combining operations.
// The result keeps the order in which files first appeared.
func mergeEvents(events []fsnotify.Event) []fsnotify.Event {
	index := make(map[string]int, len(events))
	var merged []fsnotify.Event
	for _, evt := range events {
		if i, ok := index[evt.Name]; ok {
			merged[i].Op |= evt.Op
			continue
		}
		index[evt.Name] = len(merged)
		merged = append(merged, evt)
	}
	return merged
}

func getIsDir(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.IsDir()
}
