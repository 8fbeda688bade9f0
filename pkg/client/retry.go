/*
This file implements the delivery state machine and retry scheduler. Each
outbound message moves idle → sending → sent | failed | failed-exhausted.
A failure schedules an automatic retry on an exponential table until the
retry budget (default 3) is spent; manual retry resets the budget and wins
over any scheduled attempt. Reconnecting re-attempts every failed message
once, staggered, without consuming the budget.
*/
package client

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind values accepted by Send and SendFile.
const (
	KindText  = "text"
	KindImage = "image"
)

// Send submits a text message to the current room and returns its client
// message id. Delivery progress is reported on the Updates channel; the
// call itself only fails when the client is closed.
func (c *Client) Send(content string) (string, error) {
	return c.submit(KindText, content, "")
}

// SendFile submits an image message referencing an already-uploaded file.
func (c *Client) SendFile(content, fileKey string) (string, error) {
	return c.submit(KindImage, content, fileKey)
}

func (c *Client) submit(kind, content, fileKey string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrClosed
	}

	p := &pending{
		id:        uuid.NewString(),
		kind:      kind,
		content:   content,
		fileKey:   fileKey,
		status:    StatusIdle,
		createdAt: time.Now(),
	}
	c.pendings[p.id] = p

	c.attemptSendLocked(p)
	return p.id, nil
}

// ManualRetry cancels any scheduled automatic attempt for the message,
// resets its retry budget, and re-attempts immediately. It works from both
// failed and failed-exhausted.
func (c *Client) ManualRetry(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	p, ok := c.pendings[id]
	if !ok {
		return ErrUnknownMessage
	}

	p.stopTimers()
	p.retries = 0
	c.attemptSendLocked(p)
	return nil
}

// Pending reports the status and retry count of an in-flight message. The
// second return is false once the message was sent or never existed.
func (c *Client) Pending(id string) (Status, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pendings[id]
	if !ok {
		return StatusSent, 0, false
	}
	return p.status, p.retries, true
}

// attemptSendLocked writes the message frame and arms the echo deadline.
// Without a live connection it fails immediately, never touching the
// socket. Caller holds mu.
func (c *Client) attemptSendLocked(p *pending) {
	p.status = StatusSending
	p.lastErr = nil
	c.emitUpdateLocked(p)

	err := c.writeFrameLocked(outboundFrame{
		Type:            "message",
		Content:         p.content,
		MessageType:     p.kind,
		ClientMessageID: p.id,
		FileKey:         p.fileKey,
	})
	if err != nil {
		c.failLocked(p, err)
		return
	}

	id := p.id
	p.ackTimer = time.AfterFunc(c.opts.AckTimeout, func() {
		c.onAckTimeout(id)
	})
}

// failLocked records a failed attempt and either schedules the next
// automatic retry or, with the budget spent, parks the message in the
// terminal failed-exhausted state. Caller holds mu.
func (c *Client) failLocked(p *pending, err error) {
	p.stopTimers()
	p.lastErr = err

	if p.retries >= c.opts.MaxRetries {
		p.status = StatusExhausted
		c.logger.Warn().
			Str("client_message_id", p.id).
			Int("retries", p.retries).
			Err(err).
			Msg("Delivery retries exhausted")
		c.emitUpdateLocked(p)
		return
	}

	p.status = StatusFailed
	c.emitUpdateLocked(p)

	// Without a connection a timed retry cannot succeed; the message waits
	// for resendFailedLocked on the next reconnect instead.
	if errors.Is(err, ErrNotConnected) {
		return
	}

	delay := backoff(c.opts.RetryBase, c.opts.RetryCap, p.retries)
	id := p.id
	p.retryTimer = time.AfterFunc(delay, func() {
		c.autoRetry(id)
	})
}

// autoRetry is the scheduled-retry callback. It consumes one unit of the
// retry budget. A message that moved on in the meantime (sent, manual
// retry, close) is left alone.
func (c *Client) autoRetry(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	p, ok := c.pendings[id]
	if !ok || p.status != StatusFailed {
		return
	}

	p.retryTimer = nil
	p.retries++
	c.attemptSendLocked(p)
}

// onAckTimeout fires when the server echo never arrived for an in-flight
// attempt.
func (c *Client) onAckTimeout(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	p, ok := c.pendings[id]
	if !ok || p.status != StatusSending {
		return
	}

	p.ackTimer = nil
	c.failLocked(p, ErrAckTimeout)
}

// resendFailedLocked re-attempts every failed (not exhausted) message
// once after a reconnect, staggered so a burst does not hit the fresh
// connection at once. The re-attempts do not consume the retry budget.
// Caller holds mu.
func (c *Client) resendFailedLocked() {
	i := 0
	for _, p := range c.pendings {
		if p.status != StatusFailed {
			continue
		}

		p.stopTimers()
		i++
		id := p.id
		p.retryTimer = time.AfterFunc(time.Duration(i)*c.opts.ResendStagger, func() {
			c.resendOne(id)
		})
	}
}

// resendOne is the staggered post-reconnect callback for one message.
func (c *Client) resendOne(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	p, ok := c.pendings[id]
	if !ok || p.status != StatusFailed {
		return
	}

	p.retryTimer = nil
	c.attemptSendLocked(p)
}

// markSentLocked finalizes a pending message matched by the server echo.
// Caller holds mu.
func (c *Client) markSentLocked(id string) {
	p, ok := c.pendings[id]
	if !ok {
		return
	}

	p.stopTimers()
	p.status = StatusSent
	p.lastErr = nil
	c.emitUpdateLocked(p)
	delete(c.pendings, id)
}
