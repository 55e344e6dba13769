package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanEmitter_DeliversAndStamps(t *testing.T) {
	e := NewChanEmitter(4)
	e.Emit(ProgressEvent{ProjectID: "p1", Event: EventFileStart, File: "a.txt"})

	ev := <-e.Events()
	assert.Equal(t, EventFileStart, ev.Event)
	assert.NotZero(t, ev.Timestamp)
}

func TestChanEmitter_DropsWhenFull(t *testing.T) {
	e := NewChanEmitter(1)
	e.Emit(ProgressEvent{Event: EventFileStart})
	e.Emit(ProgressEvent{Event: EventFileComplete}) // buffer full, dropped
	e.Close()

	var kinds []EventKind
	for ev := range e.Events() {
		kinds = append(kinds, ev.Event)
	}
	assert.Equal(t, []EventKind{EventFileStart}, kinds)
}

func TestChanEmitter_EmitAfterCloseIsNoOp(t *testing.T) {
	e := NewChanEmitter(4)
	e.Close()

	require.NotPanics(t, func() {
		e.Emit(ProgressEvent{Event: EventFileComplete})
	})
	require.NotPanics(t, e.Close)

	_, open := <-e.Events()
	assert.False(t, open)
}
