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
)

// ErrPeerCrashed is returned by a Transport whose peer process ended
// abnormally, as opposed to closing its endpoint.
var ErrPeerCrashed = errors.New("sidechannel: peer process ended abnormally")

// Transport is the reliable, in-order, local duplex the control frames
// travel over. Send delivers one whole frame; Recv blocks for the next
// one. A clean peer close surfaces io.EOF from Recv, an abnormal peer end
// surfaces ErrPeerCrashed.
type Transport interface {
	Send(frame []byte) error
	Recv() ([]byte, error)
	Close() error
}

// pipeEnd is one endpoint of an in-process Transport pair.
type pipeEnd struct {
	out chan<- []byte
	in  <-chan []byte

	mu      sync.Mutex
	closed  chan struct{}
	peer    *pipeEnd
	crashed bool
}

// NewPipe returns two connected in-process Transports. Frames written to
// one end arrive at the other in order. Closing an end makes the peer's
// Recv return io.EOF once the in-flight frames are drained; Crash makes it
// return ErrPeerCrashed instead.
func NewPipe() (Transport, Transport) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)

	a := &pipeEnd{out: ab, in: ba, closed: make(chan struct{})}
	b := &pipeEnd{out: ba, in: ab, closed: make(chan struct{})}
	a.peer = b
	b.peer = a

	return a, b
}

func (p *pipeEnd) Send(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)

	// Check closure first: select picks among ready cases at random, and
	// the buffered send is usually ready even after either end closed.
	select {
	case <-p.closed:
		return io.ErrClosedPipe
	case <-p.peer.closed:
		if p.peer.isCrashed() {
			return ErrPeerCrashed
		}
		return io.ErrClosedPipe
	default:
	}

	select {
	case <-p.closed:
		return io.ErrClosedPipe
	case <-p.peer.closed:
		if p.peer.isCrashed() {
			return ErrPeerCrashed
		}
		return io.ErrClosedPipe
	case p.out <- cp:
		return nil
	}
}

func (p *pipeEnd) Recv() ([]byte, error) {
	// Drain frames already queued even when the peer has gone: the
	// transport is in-order and reliable up to the close point.
	select {
	case f := <-p.in:
		return f, nil
	default:
	}

	select {
	case f := <-p.in:
		return f, nil
	case <-p.closed:
		return nil, io.ErrClosedPipe
	case <-p.peer.closed:
		select {
		case f := <-p.in:
			return f, nil
		default:
		}
		if p.peer.isCrashed() {
			return nil, ErrPeerCrashed
		}
		return nil, io.EOF
	}
}

func (p *pipeEnd) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

// Crash simulates an abnormal peer end: the other endpoint observes
// ErrPeerCrashed instead of a clean EOF.
func (p *pipeEnd) Crash() {
	p.mu.Lock()
	p.crashed = true
	p.mu.Unlock()
	_ = p.Close()
}

func (p *pipeEnd) isCrashed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.crashed
}
