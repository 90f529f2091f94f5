package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single video frame. Anything larger is treated as a
// corrupt stream rather than an allocation request.
const MaxFrameSize = 8 << 20 // 8 MiB

// EncodeFrame prefixes a JPEG frame with its 4-byte little-endian length.
func EncodeFrame(jpeg []byte) []byte {
	out := make([]byte, 4+len(jpeg))
	binary.LittleEndian.PutUint32(out[:4], uint32(len(jpeg)))
	copy(out[4:], jpeg)
	return out
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, jpeg []byte) error {
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(jpeg)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(jpeg); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one length-prefixed frame from r. It never returns
// a partial frame: either the full prefixed length arrives or an error does.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(prefix[:])
	if n == 0 {
		return nil, fmt.Errorf("zero-length frame")
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("frame length %d exceeds limit %d", n, MaxFrameSize)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, fmt.Errorf("short frame: %w", err)
	}
	return frame, nil
}
