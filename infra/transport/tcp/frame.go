package tcp

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kilianp07/robodelivery/core/transport"
)

const headerLen = 4

// writeFrame writes payload prefixed with its length as a big-endian uint32.
// Header and payload go out in a single Write.
func writeFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, headerLen+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[headerLen:], payload)
	_, err := w.Write(buf)
	return err
}

// readFrame reads one length-prefixed frame. A frame announcing more than limit
// bytes yields ErrFrameTooLarge; the stream cannot be resynchronised after it.
func readFrame(r io.Reader, limit int) ([]byte, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if uint64(n) > uint64(limit) {
		return nil, fmt.Errorf("%w: peer announced %d bytes, limit %d", transport.ErrFrameTooLarge, n, limit)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return payload, nil
}
