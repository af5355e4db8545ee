package connection

import "time"

const writeTimeout = 5 * time.Second

// Enqueue hands a frame to the write pump without ever blocking the
// caller. A full queue drops the oldest frame first: pose broadcast is a
// latest-wins stream, not a reliable log. Enqueue on a closed handler is
// a no-op.
func (h *Handler) Enqueue(frame []byte) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.send <- frame:
	default:
		select {
		case <-h.send:
		default:
		}
		select {
		case h.send <- frame:
		default:
		}
	}
}

// writePump drains the send queue onto the socket. A write failure closes
// the socket, which wakes the read loop and triggers teardown.
func (h *Handler) writePump() {
	for {
		select {
		case frame := <-h.send:
			_ = h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := h.conn.Write(frame); err != nil {
				_ = h.conn.Close()
				return
			}
		case <-h.done:
			return
		}
	}
}
