package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func turnsOf(events []Event) []int {
	out := make([]int, len(events))
	for i, ev := range events {
		out[i] = ev.Turns
	}
	return out
}

func TestHistoryWraps(t *testing.T) {
	h := newHistory(3)
	assert.Empty(t, h.events())

	h.add(Event{Turns: 1})
	h.add(Event{Turns: 2})
	assert.Equal(t, []int{1, 2}, turnsOf(h.events()))
	assert.Equal(t, 2, h.len())

	h.add(Event{Turns: 3})
	h.add(Event{Turns: 4})
	h.add(Event{Turns: 5})
	assert.Equal(t, []int{3, 4, 5}, turnsOf(h.events()))
	assert.Equal(t, 3, h.len())
}

func TestHistoryZeroSize(t *testing.T) {
	h := newHistory(0)
	h.add(Event{Turns: 1})
	assert.Empty(t, h.events())
	assert.Zero(t, h.len())
}

func TestSubscribeReplaysHistory(t *testing.T) {
	hub := NewHub(4, nil)
	hub.Publish(Event{Turns: 1})
	hub.Publish(Event{Turns: 2})
	hub.Publish(Event{Turns: 3})

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	// History keeps half the buffer.
	assert.Equal(t, 2, (<-sub.Events()).Turns)
	assert.Equal(t, 3, (<-sub.Events()).Turns)

	hub.Publish(Event{Turns: 4})
	assert.Equal(t, 4, (<-sub.Events()).Turns)
}
