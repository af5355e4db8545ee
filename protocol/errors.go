package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks a frame that cannot be decoded: truncated data,
	// a bad varint, an unknown tag, or trailing garbage.
	ErrMalformed = errors.New("protocol: malformed message")

	// ErrOversized marks a frame whose declared length exceeds the
	// configured maximum. The declared size is never allocated.
	ErrOversized = errors.New("protocol: oversized frame")
)

func malformedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrMalformed}, args...)...)
}

// IsProtocolError reports whether err is a decode failure rather than a
// transport failure. Handlers drop the offending connection either way but
// log the two differently.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrOversized)
}
