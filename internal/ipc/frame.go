package ipc

import (
	"encoding/binary"
	"io"

	"github.com/wrale/fantuner/internal/apperr"
)

// MaxFrameBytes is the largest payload a frame may carry. Frames
// exceeding this, or whose declared length is non-positive, abort the
// connection.
const MaxFrameBytes = 1 << 20

// ReadFrame reads one length-prefixed frame from r: a 4-byte
// little-endian length followed by that many bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length == 0 || length > MaxFrameBytes {
		return nil, apperr.New("ipc.ReadFrame", apperr.FrameInvalid, "frame length out of bounds")
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteFrame writes payload as one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 || len(payload) > MaxFrameBytes {
		return apperr.New("ipc.WriteFrame", apperr.FrameInvalid, "frame length out of bounds")
	}

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
