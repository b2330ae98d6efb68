package transfer

// OfferState tracks an outgoing offer from the sender's side.
type OfferState int

const (
	OfferIdle OfferState = iota
	OfferSent
	OfferAccepted
	OfferRejected
	OfferTimedOut
)

func (s OfferState) String() string {
	switch s {
	case OfferIdle:
		return "idle"
	case OfferSent:
		return "offer_sent"
	case OfferAccepted:
		return "accepted"
	case OfferRejected:
		return "rejected"
	case OfferTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

func (s OfferState) IsTerminal() bool {
	return s == OfferAccepted || s == OfferRejected || s == OfferTimedOut
}

func (s OfferState) CanTransitionTo(next OfferState) bool {
	switch s {
	case OfferIdle:
		return next == OfferSent
	case OfferSent:
		return next == OfferAccepted || next == OfferRejected || next == OfferTimedOut
	default:
		return false
	}
}

// SessionState tracks an incoming offer from the receiver's side.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionOfferReceived
	SessionAcceptSent
	SessionRejectSent
	SessionTransferring
	SessionCompleted
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionOfferReceived:
		return "offer_received"
	case SessionAcceptSent:
		return "accept_sent"
	case SessionRejectSent:
		return "reject_sent"
	case SessionTransferring:
		return "transferring"
	case SessionCompleted:
		return "completed"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s SessionState) IsTerminal() bool {
	return s == SessionRejectSent || s == SessionCompleted || s == SessionFailed
}

func (s SessionState) CanTransitionTo(next SessionState) bool {
	switch s {
	case SessionIdle:
		return next == SessionOfferReceived
	case SessionOfferReceived:
		return next == SessionAcceptSent || next == SessionRejectSent || next == SessionFailed
	case SessionAcceptSent:
		return next == SessionTransferring || next == SessionFailed
	case SessionTransferring:
		return next == SessionCompleted || next == SessionFailed
	default:
		return false
	}
}
