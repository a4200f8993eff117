/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package sidechannel

import (
	"errors"
	"io"
	"sync"

	"github.com/sabouaram/memcon/ipcerr"
	"github.com/sabouaram/memcon/log"
	"github.com/sabouaram/memcon/logic"
)

// Handler receives the decoded control frames of one channel. All methods
// run on the channel's single reactor goroutine, strictly one at a time
// and in transport order; implementations must not block it.
//
// OnError terminates the dispatch stream: no further callback follows it.
type Handler interface {
	OnConnection(p ConnectionPayload)
	OnAckConnection(p AckPayload)
	OnStartListening()
	OnStopListening()
	OnNotification(dropped *logic.DroppedInformation)
	OnShutdown()
	OnTermination()
	OnError(code ipcerr.CodeError)
}

// Channel frames typed control messages over a Transport and dispatches
// incoming frames to a Handler from a dedicated reactor goroutine.
type Channel struct {
	tr  Transport
	log log.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// NewChannel wraps tr. The channel does not read until Start.
func NewChannel(tr Transport, l log.Logger) *Channel {
	if l == nil {
		l = log.Discard()
	}
	return &Channel{tr: tr, log: l}
}

// Start launches the reactor goroutine dispatching to h. It may be called
// at most once.
func (c *Channel) Start(h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("channel already started")
	}
	if c.closed {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("channel already closed")
	}

	c.started = true
	c.wg.Add(1)
	go c.reactor(h)
	return nil
}

// Close stops reception and releases the transport. After Close returns,
// the reactor goroutine has exited and no callback is running.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.tr.Close()
	c.wg.Wait()
	return err
}

// SendConnection emits the handshake frame offering both regions.
func (c *Channel) SendConnection(p ConnectionPayload) error {
	return c.send(Frame{Type: TypeConnection, Connection: &p})
}

// SendAckConnection answers a handshake with the client queue.
func (c *Channel) SendAckConnection(p AckPayload) error {
	return c.send(Frame{Type: TypeAckConnection, Ack: &p})
}

// SendStartListening asks the peer to emit wake-up notifications.
func (c *Channel) SendStartListening() error {
	return c.send(Frame{Type: TypeStartListening})
}

// SendStopListening reverts the peer to polling.
func (c *Channel) SendStopListening() error {
	return c.send(Frame{Type: TypeStopListening})
}

// SendNotification emits one wake-up carrying the coalesced drops.
func (c *Channel) SendNotification(dropped *logic.DroppedInformation) error {
	return c.send(Frame{Type: TypeNotification, Dropped: dropped})
}

// SendShutdown announces a server-wide shutdown.
func (c *Channel) SendShutdown() error {
	return c.send(Frame{Type: TypeShutdown})
}

// SendTermination announces this connection is ending.
func (c *Channel) SendTermination() error {
	return c.send(Frame{Type: TypeTermination})
}

func (c *Channel) send(f Frame) error {
	b, err := EncodeFrame(f)
	if err != nil {
		return ipcerr.CodeProtocolError.Error(err)
	}

	if err = c.tr.Send(b); err != nil {
		return mapTransportError(err)
	}

	return nil
}

// reactor is the single dispatch context: it reads frames in order and
// invokes exactly one Handler callback at a time.
func (c *Channel) reactor(h Handler) {
	defer c.wg.Done()

	for {
		raw, err := c.tr.Recv()
		if err != nil {
			c.dispatchError(h, err)
			return
		}

		f, err := DecodeFrameBytes(raw)
		if err != nil {
			c.log.WithField("error", err.Error()).Warn("undecodable control frame")
			h.OnError(ipcerr.CodeProtocolError)
			return
		}

		switch f.Type {
		case TypeConnection:
			if f.Connection == nil {
				h.OnError(ipcerr.CodeProtocolError)
				return
			}
			h.OnConnection(*f.Connection)
		case TypeAckConnection:
			if f.Ack == nil {
				h.OnError(ipcerr.CodeProtocolError)
				return
			}
			h.OnAckConnection(*f.Ack)
		case TypeStartListening:
			h.OnStartListening()
		case TypeStopListening:
			h.OnStopListening()
		case TypeNotification:
			h.OnNotification(f.Dropped)
		case TypeShutdown:
			h.OnShutdown()
		case TypeTermination:
			h.OnTermination()
		default:
			h.OnError(ipcerr.CodeProtocolError)
			return
		}
	}
}

// dispatchError translates a transport failure into at most one OnError.
// A locally closed channel ends the stream silently.
func (c *Channel) dispatchError(h Handler, err error) {
	if errors.Is(err, io.ErrClosedPipe) {
		return
	}

	if errors.Is(err, ErrPeerCrashed) {
		h.OnError(ipcerr.CodePeerCrashedError)
		return
	}

	if errors.Is(err, io.EOF) {
		h.OnError(ipcerr.CodePeerDisconnectedError)
		return
	}

	h.OnError(ipcerr.CodeProtocolError)
}

func mapTransportError(err error) error {
	switch {
	case errors.Is(err, ErrPeerCrashed):
		return ipcerr.CodePeerCrashedError.Error(err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
		return ipcerr.CodePeerDisconnectedError.Error(err)
	default:
		return ipcerr.CodeProtocolError.Error(err)
	}
}
