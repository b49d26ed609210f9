package pipeline

import (
	"sync"
	"time"
)

// Progress is one report sent to the caller.
type Progress struct {
	RunID   string    `json:"run_id"`
	Stage   Stage     `json:"stage"`
	Current int       `json:"current"`
	Total   int       `json:"total"`
	Percent float64   `json:"percent"`
	Message string    `json:"message"`
	Level   string    `json:"level"`
	At      time.Time `json:"at"`
}

type Reporter interface {
	Report(p Progress)
}

type ReporterFunc func(p Progress)

func (f ReporterFunc) Report(p Progress) { f(p) }

type nopReporter struct{}

func (nopReporter) Report(Progress) {}

// Reporters fans a report out to several reporters in order.
type Reporters []Reporter

func (rs Reporters) Report(p Progress) {
	for _, r := range rs {
		if r != nil {
			r.Report(p)
		}
	}
}

// DefaultEventLimit is the number of lines kept by an EventLog.
const DefaultEventLimit = 20

// EventLog keeps the most recent progress and error lines of a run.
type EventLog struct {
	mu     sync.Mutex
	limit  int
	events []Progress
}

func NewEventLog(limit int) *EventLog {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	return &EventLog{limit: limit}
}

func (l *EventLog) Report(p Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, p)
	if over := len(l.events) - l.limit; over > 0 {
		l.events = append(l.events[:0], l.events[over:]...)
	}
}

func (l *EventLog) Events() []Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Progress(nil), l.events...)
}

func percent(done float64, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := done / float64(total) * 100
	if p > 100 {
		p = 100
	}
	return p
}
