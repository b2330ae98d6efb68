package transfer

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/rescp17/lanpeer/internal/util"
	"github.com/rescp17/lanpeer/pkg/concurrency"
	"github.com/rescp17/lanpeer/pkg/fileInfo"
	"github.com/rescp17/lanpeer/pkg/protocol"
)

var (
	ErrHashMismatch  = errors.New("hash mismatch")
	ErrRejected      = errors.New("offer rejected")
	ErrTimeout       = errors.New("offer timed out")
	ErrInvalidOffer  = errors.New("invalid offer")
	ErrStopped       = errors.New("transfer engine stopped")
	ErrOversize      = errors.New("received more bytes than offered")
	ErrShortTransfer = errors.New("received fewer bytes than offered")
)

// ErrorCategory groups failures for logging and metrics.
type ErrorCategory int

const (
	CategoryNone ErrorCategory = iota
	CategoryTransient
	CategoryDecode
	CategoryHandshake
	CategoryIntegrity
	CategoryConnection
	CategoryPrecondition
	CategoryUnknown
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryTransient:
		return "transient"
	case CategoryDecode:
		return "decode"
	case CategoryHandshake:
		return "handshake"
	case CategoryIntegrity:
		return "integrity"
	case CategoryConnection:
		return "connection"
	case CategoryPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// Categorize maps err onto an ErrorCategory. Wrapped sentinels are matched
// first, then network error types, then well-known message fragments.
func Categorize(err error) ErrorCategory {
	if err == nil {
		return CategoryNone
	}

	switch {
	case errors.Is(err, ErrHashMismatch), errors.Is(err, ErrOversize), errors.Is(err, ErrShortTransfer):
		return CategoryIntegrity
	case errors.Is(err, protocol.ErrDecode), errors.Is(err, protocol.ErrUnexpectedType),
		errors.Is(err, protocol.ErrFrameTooLarge):
		return CategoryDecode
	case errors.Is(err, ErrRejected), errors.Is(err, ErrTimeout), errors.Is(err, ErrInvalidOffer),
		errors.Is(err, concurrency.ErrBusy):
		return CategoryHandshake
	case errors.Is(err, fileInfo.ErrIsDir), errors.Is(err, fileInfo.ErrNotRegular),
		errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission), errors.Is(err, util.ErrNoFreeName):
		return CategoryPrecondition
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CategoryTransient
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return CategoryConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CategoryConnection
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection reset", "connection refused", "broken pipe", "network unreachable"} {
		if strings.Contains(msg, pattern) {
			return CategoryConnection
		}
	}
	for _, pattern := range []string{"no space left", "disk full", "permission denied"} {
		if strings.Contains(msg, pattern) {
			return CategoryPrecondition
		}
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporary") {
		return CategoryTransient
	}
	return CategoryUnknown
}

// LogResult logs a finished transfer at a level matching its outcome.
func LogResult(r Result) {
	fields := []any{
		"id", r.ID,
		"direction", r.Direction.String(),
		"peer", r.Peer,
		"fileName", r.FileName,
		"status", r.Status.String(),
		"bytes", r.Bytes,
	}

	switch r.Status {
	case StatusSucceeded:
		slog.Info("Transfer completed", append(fields, "path", r.Path)...)
	case StatusRejected, StatusTimedOut:
		slog.Warn("Transfer not started", append(fields, "reason", r.Reason)...)
	default:
		slog.Error("Transfer failed", append(fields, "reason", r.Reason, "category", Categorize(r.Err).String())...)
	}
}
