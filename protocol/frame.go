package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/Tnze/go-mc/net/packet"
)

// DefaultMaxFrameBytes bounds a frame body when no explicit limit is
// configured. Generous for snapshots of a few hundred players.
const DefaultMaxFrameBytes = 64 << 10

// FrameReader decodes messages from a byte stream. It never assumes one
// transport read holds one message: frames are reassembled across
// arbitrarily fragmented reads.
type FrameReader struct {
	r   packet.DecodeReader
	max int
}

// NewFrameReader wraps r with a frame decoder. max bounds the declared
// body length of any frame; values <= 0 select DefaultMaxFrameBytes.
func NewFrameReader(r io.Reader, max int) *FrameReader {
	if max <= 0 {
		max = DefaultMaxFrameBytes
	}
	dr, ok := r.(packet.DecodeReader)
	if !ok {
		dr = bufio.NewReader(r)
	}
	return &FrameReader{r: dr, max: max}
}

// Read blocks until one complete message has been decoded. An io.EOF at a
// frame boundary means the peer closed cleanly and is returned as-is;
// decode failures inside a recovered frame are ErrMalformed, and a
// declared length beyond the limit is ErrOversized, reported before any
// body-sized allocation happens.
func (fr *FrameReader) Read() (Message, error) {
	var length packet.VarInt
	if err := length.Decode(fr.r); err != nil {
		if isTransportErr(err) {
			return nil, err
		}
		return nil, malformedf("frame length: %v", err)
	}
	if length < 0 {
		return nil, malformedf("negative frame length %d", length)
	}
	if int(length) > fr.max {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrOversized, length, fr.max)
	}
	body, err := packet.ReadNBytes(fr.r, int(length))
	if err != nil {
		return nil, fmt.Errorf("frame body: %w", err)
	}
	return decodeBody(body)
}

// isTransportErr separates I/O failures from decode failures so that a
// read timeout or a closed peer is never reported as Malformed.
func isTransportErr(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

// Decode parses exactly one frame from b. Unlike FrameReader.Read there is
// no more data coming, so any truncation is ErrMalformed.
func Decode(b []byte, max int) (Message, error) {
	m, err := NewFrameReader(bytes.NewReader(b), max).Read()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, malformedf("truncated frame")
		}
		return nil, err
	}
	return m, nil
}
