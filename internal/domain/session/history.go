package session

// History is a fixed-capacity ring of output chunks. The oldest chunk is
// dropped when a new one arrives at capacity. Not safe for concurrent use.
type History struct {
	chunks [][]byte
	start  int
	count  int
}

// NewHistory creates a ring holding at most capacity chunks.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{chunks: make([][]byte, capacity)}
}

// Append stores chunk as the newest entry.
func (h *History) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	capacity := len(h.chunks)
	if h.count < capacity {
		h.chunks[(h.start+h.count)%capacity] = chunk
		h.count++
		return
	}
	h.chunks[h.start] = chunk
	h.start = (h.start + 1) % capacity
}

// Len returns the number of stored chunks.
func (h *History) Len() int {
	return h.count
}

// Tail concatenates the newest n chunks in arrival order.
func (h *History) Tail(n int) []byte {
	if n > h.count || n <= 0 {
		n = h.count
	}
	first := h.count - n

	size := 0
	for i := first; i < h.count; i++ {
		size += len(h.at(i))
	}

	out := make([]byte, 0, size)
	for i := first; i < h.count; i++ {
		out = append(out, h.at(i)...)
	}
	return out
}

func (h *History) at(i int) []byte {
	return h.chunks[(h.start+i)%len(h.chunks)]
}
