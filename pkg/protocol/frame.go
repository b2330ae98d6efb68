package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
)

// DefaultMaxFrameSize caps a single frame read from the bulk stream.
const DefaultMaxFrameSize = 16 * 1024 * 1024

var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// WriteFrame writes payload preceded by its 4-byte big-endian length.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))

	bufs := net.Buffers{hdr[:], payload}
	_, err := bufs.WriteTo(w)
	return err
}

// ReadFrame reads one length-prefixed frame. A stream that ends cleanly
// before the header returns io.EOF; one that ends inside a frame returns
// io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if maxSize > 0 && uint64(n) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// WriteMessage encodes msg and writes it as one frame.
func WriteMessage(w io.Writer, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

// ReadMessage reads one frame and decodes it.
func ReadMessage(r io.Reader, maxSize int) (Message, error) {
	data, err := ReadFrame(r, maxSize)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
