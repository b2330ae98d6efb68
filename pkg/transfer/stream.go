package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rescp17/lanpeer/pkg/protocol"
)

// PacketSender writes control datagrams. *net.UDPConn implements it.
type PacketSender interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

func sendDatagram(conn PacketSender, msg protocol.Message, to *net.UDPAddr) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := conn.WriteToUDP(data, to); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Type(), to, err)
	}
	return nil
}

func writeMessage(conn net.Conn, msg protocol.Message, timeout time.Duration) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	if err := protocol.WriteMessage(conn, msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type(), err)
	}
	return nil
}

func writeChunk(conn net.Conn, data []byte, timeout time.Duration) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	return protocol.WriteFrame(conn, data)
}

func readFrame(conn net.Conn, maxSize int, timeout time.Duration) ([]byte, error) {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	return protocol.ReadFrame(conn, maxSize)
}

// readBodyFrame reads a frame that must exist; a stream ending at a frame
// boundary is reported as io.ErrUnexpectedEOF.
func readBodyFrame(conn net.Conn, maxSize int, timeout time.Duration) ([]byte, error) {
	data, err := readFrame(conn, maxSize, timeout)
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	return data, err
}

// readMessageAs reads one frame and requires it to decode as T.
func readMessageAs[T protocol.Message](conn net.Conn, maxSize int, timeout time.Duration) (T, error) {
	var zero T
	data, err := readFrame(conn, maxSize, timeout)
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", zero.Type(), err)
	}
	return protocol.DecodeAs[T](data)
}

// pace sleeps for d unless ctx ends first.
func pace(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
