// Package events carries the progress stream consumed by UI layers.
package events

import (
	"log/slog"
	"sync"
	"time"
)

type EventKind string

const (
	EventConnecting   EventKind = "connecting"
	EventAnalyzing    EventKind = "analyzing"
	EventFileStart    EventKind = "file_start"
	EventFileProgress EventKind = "file_progress"
	EventFileComplete EventKind = "file_complete"
	EventFileError    EventKind = "file_error"
	EventComplete     EventKind = "complete"
	EventError        EventKind = "error"
	EventCancelled    EventKind = "cancelled"
)

// ProgressEvent is one emission on the sync progress stream.
// Progress and FileProgress are percentages in [0, 100]; Timestamp is epoch millis.
type ProgressEvent struct {
	ProjectID    string    `json:"project_id"`
	Event        EventKind `json:"event"`
	File         string    `json:"file,omitempty"`
	Progress     int       `json:"progress"`
	FileProgress int       `json:"file_progress"`
	BytesSent    int64     `json:"bytes_sent"`
	BytesTotal   int64     `json:"bytes_total"`
	Message      string    `json:"message,omitempty"`
	Timestamp    int64     `json:"timestamp"`
}

type Emitter interface {
	Emit(ev ProgressEvent)
}

// Stamp fills the timestamp if the producer did not.
func Stamp(ev ProgressEvent) ProgressEvent {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	return ev
}

// NopEmitter discards events.
type NopEmitter struct{}

func (NopEmitter) Emit(ProgressEvent) {}

// ChanEmitter buffers events on a channel for a UI consumer. When the buffer
// is full the event is dropped rather than stalling a transfer worker.
// Emit after Close is a silent no-op, so producers need not be quiesced
// before the consumer closes the stream.
type ChanEmitter struct {
	ch     chan ProgressEvent
	mu     sync.RWMutex
	closed bool
}

func NewChanEmitter(buffer int) *ChanEmitter {
	return &ChanEmitter{ch: make(chan ProgressEvent, buffer)}
}

func (e *ChanEmitter) Emit(ev ProgressEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- Stamp(ev):
	default:
	}
}

func (e *ChanEmitter) Events() <-chan ProgressEvent {
	return e.ch
}

func (e *ChanEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}

// SlogEmitter renders the stream through the default logger; per-chunk
// file_progress emissions are logged at debug to keep the output readable.
type SlogEmitter struct{}

func (SlogEmitter) Emit(ev ProgressEvent) {
	ev = Stamp(ev)
	attrs := []any{"project", ev.ProjectID, "progress", ev.Progress}
	if ev.File != "" {
		attrs = append(attrs, "file", ev.File)
	}
	if ev.Message != "" {
		attrs = append(attrs, "message", ev.Message)
	}

	switch ev.Event {
	case EventFileProgress:
		slog.Debug(string(ev.Event), append(attrs, "sent", ev.BytesSent, "total", ev.BytesTotal)...)
	case EventFileError, EventError:
		slog.Error(string(ev.Event), attrs...)
	default:
		slog.Info(string(ev.Event), attrs...)
	}
}
