package transfer

import (
	"time"
)

type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

type Status int

const (
	StatusSucceeded Status = iota
	StatusRejected
	StatusTimedOut
	StatusHashMismatch
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusRejected:
		return "rejected"
	case StatusTimedOut:
		return "timed_out"
	case StatusHashMismatch:
		return "hash_mismatch"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	ReasonCompleted    = "completed"
	ReasonRejected     = "rejected"
	ReasonTimeout      = "timeout"
	ReasonHashMismatch = "hash mismatch"
	reasonFailedPrefix = "transfer failed: "
)

// Result is the final outcome of one offer, delivered exactly once.
type Result struct {
	ID        string
	Direction Direction
	Status    Status
	Reason    string
	Peer      string // ip:port of the other side's control socket
	FileName  string
	Path      string // local path: source on send, destination on receive
	MimeType  string
	Bytes     int64
	Elapsed   time.Duration
	Err       error
}

func (r Result) Succeeded() bool { return r.Status == StatusSucceeded }

// Callback receives the outcome of an offer.
type Callback func(Result)

// Progress is reported after every chunk.
type Progress struct {
	ID          string
	Direction   Direction
	FileName    string
	Bytes       int64
	Total       int64
	Chunks      int
	TotalChunks int
}

type ProgressFunc func(Progress)

func (r Result) withSuccess() Result {
	r.Status = StatusSucceeded
	r.Reason = ReasonCompleted
	r.Err = nil
	return r
}

func (r Result) withRejected(err error) Result {
	r.Status = StatusRejected
	r.Reason = ReasonRejected
	r.Err = err
	return r
}

func (r Result) withTimeout() Result {
	r.Status = StatusTimedOut
	r.Reason = ReasonTimeout
	r.Err = ErrTimeout
	return r
}

func (r Result) withHashMismatch() Result {
	r.Status = StatusHashMismatch
	r.Reason = ReasonHashMismatch
	r.Err = ErrHashMismatch
	return r
}

func (r Result) withFailure(err error) Result {
	r.Status = StatusFailed
	r.Reason = reasonFailedPrefix + err.Error()
	r.Err = err
	return r
}
