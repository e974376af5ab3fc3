package feed

// history is a fixed-size ring of the latest events. When full, new events
// overwrite the oldest. Callers synchronize access.
type history struct {
	buf  []Event
	head int // next write position
	full bool
}

func newHistory(size int) *history {
	if size <= 0 {
		return &history{}
	}
	return &history{buf: make([]Event, size)}
}

func (h *history) add(ev Event) {
	if len(h.buf) == 0 {
		return
	}
	h.buf[h.head] = ev
	h.head = (h.head + 1) % len(h.buf)
	if h.head == 0 {
		h.full = true
	}
}

// events returns the stored events oldest first.
func (h *history) events() []Event {
	if !h.full {
		return append([]Event(nil), h.buf[:h.head]...)
	}
	out := make([]Event, 0, len(h.buf))
	out = append(out, h.buf[h.head:]...)
	return append(out, h.buf[:h.head]...)
}

func (h *history) len() int {
	if h.full {
		return len(h.buf)
	}
	return h.head
}
