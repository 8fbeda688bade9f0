/*
This file implements automatic reconnection: exponential backoff with a
cap, a bounded attempt budget ending in a terminal reconnect_failed state,
and a manual override that resets the budget and dials immediately.
*/
package client

import (
	"context"
	"time"
)

// scheduleReconnectLocked arms the next reconnection attempt, or moves to
// the terminal reconnect_failed state once the budget is spent. Caller
// holds mu.
func (c *Client) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}
	if c.reconnectAttempts >= c.opts.MaxReconnectAttempts {
		c.logger.Warn().
			Int("attempts", c.reconnectAttempts).
			Msg("Reconnection budget exhausted")
		c.setStateLocked(StateReconnectFailed, nil)
		return
	}

	delay := backoff(c.opts.ReconnectBase, c.opts.ReconnectCap, c.reconnectAttempts)
	c.reconnectAttempts++
	c.logger.Info().
		Dur("delay", delay).
		Int("attempt", c.reconnectAttempts).
		Msg("Scheduling reconnect")

	c.reconnectTimer = time.AfterFunc(delay, c.reconnect)
}

// reconnect performs one reconnection attempt. A failed dial feeds back
// into scheduleReconnectLocked, continuing the backoff table.
func (c *Client) reconnect() {
	c.mu.Lock()
	c.reconnectTimer = nil
	if c.closed || c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateConnecting, nil)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	w, err := c.opts.Dialer.Dial(ctx, c.dialURL())
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		if w != nil {
			w.Close()
		}
		return
	}
	if err != nil {
		c.setStateLocked(StateDisconnected, err)
		c.scheduleReconnectLocked()
		return
	}

	c.adoptWireLocked(w)
}

// ManualReconnect cancels any scheduled attempt, resets the attempt
// counter, and dials immediately. It is the only way out of
// reconnect_failed.
func (c *Client) ManualReconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnectAttempts = 0
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.reconnect()
	return nil
}

// backoff returns min(base << attempt, cap), guarding against shift
// overflow.
func backoff(base, cap time.Duration, attempt int) time.Duration {
	if attempt > 30 {
		return cap
	}

	d := base << uint(attempt)
	if d > cap || d <= 0 {
		return cap
	}
	return d
}
