package office

// HistorySize is the number of recent events kept for display.
const HistorySize = 12

// History is a bounded ring of the most recent entries, newest first.
type History struct {
	buf   [HistorySize]Record
	start int // index of the newest record
	n     int
}

// Push adds r as the newest record, evicting the oldest when full.
func (h *History) Push(r Record) {
	h.start = (h.start - 1 + HistorySize) % HistorySize
	h.buf[h.start] = r
	if h.n < HistorySize {
		h.n++
	}
}

func (h *History) Len() int { return h.n }

// Items returns a copy of the records, newest first.
func (h *History) Items() []Record {
	out := make([]Record, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%HistorySize]
	}
	return out
}
