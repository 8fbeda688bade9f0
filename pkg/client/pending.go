package client

import "time"

// Status is the delivery state of a pending message.
type Status int

const (
	// StatusIdle means the message was created but not yet attempted.
	StatusIdle Status = iota

	// StatusSending means a send attempt is in flight, waiting for the
	// server's echo.
	StatusSending

	// StatusSent means the server's broadcast echoed the message back.
	// Terminal; the message leaves the pending table.
	StatusSent

	// StatusFailed means the last attempt failed and an automatic retry
	// may be scheduled.
	StatusFailed

	// StatusExhausted means the automatic retry budget is spent. Only
	// ManualRetry leaves this state.
	StatusExhausted
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSending:
		return "sending"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	case StatusExhausted:
		return "failed-exhausted"
	default:
		return "unknown"
	}
}

// pending tracks one outbound message until the server echoes it back.
// All fields are guarded by the client mutex.
type pending struct {
	id      string
	kind    string
	content string
	fileKey string

	status    Status
	retries   int
	lastErr   error
	createdAt time.Time

	// retryTimer drives the next automatic attempt; ackTimer bounds the
	// wait for the server echo. Every competing transition stops them.
	retryTimer *time.Timer
	ackTimer   *time.Timer
}

// stopTimers cancels any scheduled retry or echo deadline.
func (p *pending) stopTimers() {
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
	if p.ackTimer != nil {
		p.ackTimer.Stop()
		p.ackTimer = nil
	}
}
